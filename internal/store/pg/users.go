package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"staffdesk.org/internal/auth"
	"staffdesk.org/internal/ids"
)

func (s *Store) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	var u auth.User
	err := s.db.QueryRowContext(ctx, `
		select id, email, name, password from users where email = $1
	`, email).Scan(&u.ID, &u.Email, &u.Name, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

// ListUsers returns every user with its aggregated role-name set in a single
// query. string_agg keeps the read free of per-user role lookups.
func (s *Store) ListUsers(ctx context.Context) ([]auth.UserWithRoles, error) {
	rows, err := s.db.QueryContext(ctx, `
		select u.id, u.email, u.name,
		       coalesce(string_agg(r.name, ',' order by r.name), '')
		from users u
		left join user_roles ur on ur.user_id = u.id
		left join roles r on r.id = ur.role_id
		group by u.id, u.email, u.name
		order by u.email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.UserWithRoles
	for rows.Next() {
		var (
			u     auth.UserWithRoles
			roles string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &roles); err != nil {
			return nil, err
		}
		u.Roles = splitRoleList(roles)
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, email, name, password string) (auth.User, error) {
	u := auth.User{ID: ids.New(), Email: email, Name: name, Password: password}
	_, err := s.db.ExecContext(ctx, `
		insert into users(id, email, name, password) values($1, $2, $3, $4)
	`, u.ID, u.Email, u.Name, u.Password)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.ErrConflict
		}
		return auth.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, userID, name string, password *string) error {
	var (
		res sql.Result
		err error
	)
	if password != nil {
		res, err = s.db.ExecContext(ctx, `
			update users set name = $2, password = $3 where id = $1
		`, userID, name, *password)
	} else {
		res, err = s.db.ExecContext(ctx, `
			update users set name = $2 where id = $1
		`, userID, name)
	}
	if err != nil {
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

// DeleteUserByEmail removes the user together with its role assignments and
// sessions in one transaction.
func (s *Store) DeleteUserByEmail(ctx context.Context, email string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var userID string
	err = tx.QueryRowContext(ctx, `select id from users where email = $1`, email).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from sessions where user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from users where id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListCredentials(ctx context.Context) ([]auth.Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, email, password from users order by email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []auth.Credential
	for rows.Next() {
		var c auth.Credential
		if err := rows.Scan(&c.UserID, &c.Email, &c.Password); err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (s *Store) UpdatePassword(ctx context.Context, userID, password string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set password = $2 where id = $1
	`, userID, password)
	if err != nil {
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

func splitRoleList(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
