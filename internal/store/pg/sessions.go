package pg

import (
	"context"
	"database/sql"
	"errors"

	"staffdesk.org/internal/auth"
)

func (s *Store) CreateSession(ctx context.Context, token, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions(id, user_id) values($1, $2)
	`, token, userID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}

// SessionIdentity resolves a token to the owning user and its role set in a
// single joined read. This runs on every identity-bearing request, so it
// stays one round trip. The inner join makes a session whose user is gone
// resolve to not-found.
func (s *Store) SessionIdentity(ctx context.Context, token string) (auth.Identity, error) {
	var (
		id    auth.Identity
		roles string
	)
	err := s.db.QueryRowContext(ctx, `
		select u.id, u.email, u.name,
		       coalesce(string_agg(r.name, ',' order by r.name), '')
		from sessions s
		join users u on u.id = s.user_id
		left join user_roles ur on ur.user_id = u.id
		left join roles r on r.id = ur.role_id
		where s.id = $1
		group by u.id, u.email, u.name
	`, token).Scan(&id.UserID, &id.Email, &id.Name, &roles)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, err
	}
	id.Roles = splitRoleList(roles)
	return id, nil
}

// DeleteSession is idempotent; destroying an unknown token is not an error.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where id = $1`, token)
	return err
}
