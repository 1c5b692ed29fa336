package auth

import "time"

// User is a stored account record. Password holds either a bcrypt hash or,
// for rows created before the hash migration ran, the legacy plaintext value.
type User struct {
	ID       string
	Email    string
	Name     string
	Password string
}

// UserWithRoles pairs a user with the names of the roles currently assigned
// to it. Produced by a single aggregated read, never by per-user lookups.
type UserWithRoles struct {
	ID    string
	Email string
	Name  string
	Roles []string
}

// Role is a named permission bucket.
type Role struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// RoleWithUsage carries a role together with the number of users holding it.
type RoleWithUsage struct {
	Role
	UsageCount int
}

// Session is a persisted bearer token owned by a user. Sessions carry no
// expiry; they remain valid until explicitly destroyed.
type Session struct {
	ID     string
	UserID string
}

// Credential is the narrow projection used by the offline password migration.
type Credential struct {
	UserID   string
	Email    string
	Password string
}
