package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service provides the session, account and role-assignment operations built
// on top of an injected Store.
type Service struct {
	store      Store
	bcryptCost int
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithBcryptCost overrides the work factor used for new password hashes.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) error {
		if cost > 0 {
			s.bcryptCost = cost
		}
		return nil
	}
}

// NewService constructs a Service with optional configuration.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	svc := &Service{store: store, bcryptCost: DefaultBcryptCost}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// NormalizeEmail applies the account email policy: emails are trimmed and
// lower-cased at the service boundary, so lookups are effectively
// case-insensitive while the store compares exact strings.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Login verifies the credentials and creates a session. Unknown email and
// wrong password both surface as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, Identity, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return "", Identity{}, ErrInvalidCredentials
	}
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", Identity{}, ErrInvalidCredentials
		}
		return "", Identity{}, err
	}
	if !VerifyPassword(password, user.Password) {
		return "", Identity{}, ErrInvalidCredentials
	}
	token, err := NewSessionToken()
	if err != nil {
		return "", Identity{}, err
	}
	if err := s.store.CreateSession(ctx, token, user.ID); err != nil {
		return "", Identity{}, err
	}
	roles, err := s.store.UserRoles(ctx, user.ID)
	if err != nil {
		return "", Identity{}, err
	}
	return token, Identity{UserID: user.ID, Email: user.Email, Name: user.Name, Roles: roles}, nil
}

// Resolve maps a session token to the owning user and its current role set.
// An unknown or destroyed token is not an error: it returns ok=false, the
// expected case for anonymous visitors. A session whose owning user has been
// deleted resolves the same way.
func (s *Service) Resolve(ctx context.Context, token string) (Identity, bool, error) {
	if token == "" {
		return Identity{}, false, nil
	}
	id, err := s.store.SessionIdentity(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, false, nil
		}
		return Identity{}, false, err
	}
	return id, true, nil
}

// Logout destroys the session. Destroying an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// ListUsers returns all users paired with their role-name sets.
func (s *Service) ListUsers(ctx context.Context) ([]UserWithRoles, error) {
	return s.store.ListUsers(ctx)
}

// CreateUser creates an account with a hashed password and assigns the named
// roles. A duplicate email surfaces as ErrConflict.
func (s *Service) CreateUser(ctx context.Context, email, name, password string, roleNames []string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if password == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return User{}, err
	}
	user, err := s.store.CreateUser(ctx, email, name, hash)
	if err != nil {
		return User{}, err
	}
	if len(roleNames) > 0 {
		if err := s.SetRoles(ctx, user.ID, roleNames); err != nil {
			return User{}, err
		}
	}
	return user, nil
}

// UpdateUser updates the account addressed by email. An empty password keeps
// the stored credential; a non-empty one is hashed before storage. The role
// set is fully replaced by roleNames on every call.
func (s *Service) UpdateUser(ctx context.Context, email, name, password string, roleNames []string) error {
	email = NormalizeEmail(email)
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	var hashed *string
	if password != "" {
		h, err := HashPassword(password, s.bcryptCost)
		if err != nil {
			return err
		}
		hashed = &h
	}
	if err := s.store.UpdateUser(ctx, user.ID, name, hashed); err != nil {
		return err
	}
	return s.SetRoles(ctx, user.ID, roleNames)
}

// DeleteUser removes the account along with its role assignments and any
// sessions it owns.
func (s *Service) DeleteUser(ctx context.Context, email string) error {
	return s.store.DeleteUserByEmail(ctx, NormalizeEmail(email))
}

// SetRoles replaces the user's entire assignment set with exactly the roles
// named, resolved by name against the store. Unknown role names are silently
// skipped. The replacement is atomic: concurrent readers observe either the
// old set or the new one, never a partial state. A fixed roleNames argument
// makes the operation idempotent.
func (s *Service) SetRoles(ctx context.Context, userID string, roleNames []string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.ReplaceUserRoles(ctx, userID, dedupeNames(roleNames))
}

// RoleNames lists all role names, for populating assignment forms.
func (s *Service) RoleNames(ctx context.Context) ([]string, error) {
	return s.store.ListRoleNames(ctx)
}

// ListRoles returns all roles with their current usage counts.
func (s *Service) ListRoles(ctx context.Context) ([]RoleWithUsage, error) {
	return s.store.ListRoles(ctx)
}

// CreateRole creates a role. A duplicate name surfaces as ErrConflict.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return s.store.CreateRole(ctx, name, strings.TrimSpace(description))
}

// UpdateRole renames a role and/or replaces its description.
func (s *Service) UpdateRole(ctx context.Context, oldName, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return s.store.UpdateRole(ctx, strings.TrimSpace(oldName), name, strings.TrimSpace(description))
}

// DeleteRole deletes the named role. It fails with ErrRoleInUse while any
// user holds the role; the usage check and the delete run in one transaction
// so a concurrent assignment cannot slip between them.
func (s *Service) DeleteRole(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	return s.store.DeleteRole(ctx, name)
}

// MigratePasswords rewrites every credential that is not yet in bcrypt form
// with a hash of its current plaintext value. Rows already hashed are left
// untouched, which makes the pass idempotent: a second run performs zero
// writes. Intended for the one-shot offline migration job, not the running
// service.
func (s *Service) MigratePasswords(ctx context.Context) (migrated, skipped int, err error) {
	creds, err := s.store.ListCredentials(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, c := range creds {
		if IsHashed(c.Password) {
			skipped++
			continue
		}
		hash, err := HashPassword(c.Password, s.bcryptCost)
		if err != nil {
			return migrated, skipped, fmt.Errorf("hash password for %s: %w", c.Email, err)
		}
		if err := s.store.UpdatePassword(ctx, c.UserID, hash); err != nil {
			return migrated, skipped, fmt.Errorf("update password for %s: %w", c.Email, err)
		}
		migrated++
	}
	return migrated, skipped, nil
}

func dedupeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
