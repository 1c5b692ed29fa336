package pg

import (
	"context"
	"database/sql"
	"errors"

	"staffdesk.org/internal/auth"
	"staffdesk.org/internal/ids"
)

func (s *Store) RoleByName(ctx context.Context, name string) (auth.Role, error) {
	var r auth.Role
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, created_at from roles where name = $1
	`, name).Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Role{}, err
	}
	return r, nil
}

func (s *Store) ListRoleNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `select name from roles order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.RoleWithUsage, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.created_at, count(ur.user_id)
		from roles r
		left join user_roles ur on ur.role_id = r.id
		group by r.id, r.name, r.description, r.created_at
		order by r.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.RoleWithUsage
	for rows.Next() {
		var r auth.RoleWithUsage
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UsageCount); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) CreateRole(ctx context.Context, name, description string) (auth.Role, error) {
	r := auth.Role{ID: ids.New(), Name: name, Description: description}
	err := s.db.QueryRowContext(ctx, `
		insert into roles(id, name, description) values($1, $2, $3)
		returning created_at
	`, r.ID, r.Name, r.Description).Scan(&r.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Role{}, auth.ErrConflict
		}
		return auth.Role{}, err
	}
	return r, nil
}

func (s *Store) UpdateRole(ctx context.Context, oldName, name, description string) error {
	res, err := s.db.ExecContext(ctx, `
		update roles set name = $2, description = $3 where name = $1
	`, oldName, name, description)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// DeleteRole deletes the named role unless a user still holds it. The usage
// check and the delete share a transaction, with the role row locked, so a
// concurrent assignment cannot land between check and act.
func (s *Store) DeleteRole(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var roleID string
	err = tx.QueryRowContext(ctx, `select id from roles where name = $1 for update`, name).Scan(&roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	if err != nil {
		return err
	}

	var usage int
	if err := tx.QueryRowContext(ctx, `select count(*) from user_roles where role_id = $1`, roleID).Scan(&usage); err != nil {
		return err
	}
	if usage > 0 {
		return &auth.RoleInUseError{Name: name, Count: usage}
	}

	if _, err := tx.ExecContext(ctx, `delete from roles where id = $1`, roleID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.name from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ReplaceUserRoles swaps the user's assignment set for the named roles inside
// one transaction. Names that match no role insert nothing and are skipped.
func (s *Store) ReplaceUserRoles(ctx context.Context, userID string, roleNames []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id = $1`, userID); err != nil {
		return err
	}
	for _, name := range roleNames {
		_, err := tx.ExecContext(ctx, `
			insert into user_roles(user_id, role_id)
			select $1, id from roles where name = $2
		`, userID, name)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return auth.ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}
