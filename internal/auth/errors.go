package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested user, role or session does not exist.
	ErrNotFound = errors.New("auth: not found")
	// ErrConflict indicates a duplicate email or role name on create.
	ErrConflict = errors.New("auth: already exists")
	// ErrRoleInUse indicates a role cannot be deleted while users hold it.
	ErrRoleInUse = errors.New("auth: role in use")
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// that login failures cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidInput indicates a malformed or missing argument.
	ErrInvalidInput = errors.New("auth: invalid input")
)

// RoleInUseError carries the usage count alongside the ErrRoleInUse
// condition so callers can report how many users still hold the role.
type RoleInUseError struct {
	Name  string
	Count int
}

func (e *RoleInUseError) Error() string {
	return fmt.Sprintf("auth: role %q held by %d user(s)", e.Name, e.Count)
}

// Is lets errors.Is(err, ErrRoleInUse) match the typed form.
func (e *RoleInUseError) Is(target error) bool { return target == ErrRoleInUse }
