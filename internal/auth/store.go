package auth

import "context"

// Store describes the persistence operations required by the auth subsystem.
// Implementations must use parameterized queries only and map driver errors
// to the sentinel errors of this package (ErrNotFound, ErrConflict,
// ErrRoleInUse). The handle is constructed explicitly and injected; nothing
// in this package reaches for ambient state.
type Store interface {
	// Users.
	UserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]UserWithRoles, error)
	CreateUser(ctx context.Context, email, name, password string) (User, error)
	UpdateUser(ctx context.Context, userID, name string, password *string) error
	DeleteUserByEmail(ctx context.Context, email string) error

	// Roles.
	RoleByName(ctx context.Context, name string) (Role, error)
	ListRoleNames(ctx context.Context) ([]string, error)
	ListRoles(ctx context.Context) ([]RoleWithUsage, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	UpdateRole(ctx context.Context, oldName, name, description string) error
	DeleteRole(ctx context.Context, name string) error

	// Role assignments.
	UserRoles(ctx context.Context, userID string) ([]string, error)
	ReplaceUserRoles(ctx context.Context, userID string, roleNames []string) error

	// Sessions.
	CreateSession(ctx context.Context, token, userID string) error
	SessionIdentity(ctx context.Context, token string) (Identity, error)
	DeleteSession(ctx context.Context, token string) error

	// Credential rows, used by the offline password migration.
	ListCredentials(ctx context.Context) ([]Credential, error)
	UpdatePassword(ctx context.Context, userID, password string) error
}
