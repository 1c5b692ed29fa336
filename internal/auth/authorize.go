package auth

// Identity is the (user, role set) snapshot produced by resolving a session
// token. It is built once per request and passed explicitly; handlers never
// reach back into the store for role checks.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Roles  []string
}

// HasRole reports whether the identity holds the named role.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize decides whether a resolved identity may proceed to an operation
// gated on requiredRole. It allows iff an identity is present and its role
// set contains requiredRole. The caller decides the user-visible consequence
// of a deny; this function is side-effect-free.
func Authorize(id *Identity, requiredRole string) bool {
	if id == nil {
		return false
	}
	return id.HasRole(requiredRole)
}
