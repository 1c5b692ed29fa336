package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"staffdesk.org/internal/auth"
)

// memStore is an in-memory auth.Store backing the handler tests.
type memStore struct {
	users     map[string]auth.User
	roles     map[string]auth.Role
	userRoles map[string][]string
	sessions  map[string]string
	nextID    int
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]auth.User),
		roles:     make(map[string]auth.Role),
		userRoles: make(map[string][]string),
		sessions:  make(map[string]string),
	}
}

func (m *memStore) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *memStore) seedUser(t *testing.T, email, name, password string, roles ...string) auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	u := auth.User{ID: m.id(), Email: email, Name: name, Password: hash}
	m.users[email] = u
	for _, r := range roles {
		if _, ok := m.roles[r]; !ok {
			m.roles[r] = auth.Role{ID: m.id(), Name: r}
		}
	}
	m.userRoles[u.ID] = roles
	return u
}

func (m *memStore) UserByEmail(_ context.Context, email string) (auth.User, error) {
	u, ok := m.users[email]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

func (m *memStore) ListUsers(context.Context) ([]auth.UserWithRoles, error) {
	out := make([]auth.UserWithRoles, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, auth.UserWithRoles{ID: u.ID, Email: u.Email, Name: u.Name, Roles: m.userRoles[u.ID]})
	}
	return out, nil
}

func (m *memStore) CreateUser(_ context.Context, email, name, password string) (auth.User, error) {
	if _, ok := m.users[email]; ok {
		return auth.User{}, auth.ErrConflict
	}
	u := auth.User{ID: m.id(), Email: email, Name: name, Password: password}
	m.users[email] = u
	return u, nil
}

func (m *memStore) UpdateUser(_ context.Context, userID, name string, password *string) error {
	for email, u := range m.users {
		if u.ID == userID {
			u.Name = name
			if password != nil {
				u.Password = *password
			}
			m.users[email] = u
			return nil
		}
	}
	return auth.ErrNotFound
}

func (m *memStore) DeleteUserByEmail(_ context.Context, email string) error {
	u, ok := m.users[email]
	if !ok {
		return auth.ErrNotFound
	}
	delete(m.users, email)
	delete(m.userRoles, u.ID)
	for token, uid := range m.sessions {
		if uid == u.ID {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (m *memStore) RoleByName(_ context.Context, name string) (auth.Role, error) {
	r, ok := m.roles[name]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	return r, nil
}

func (m *memStore) ListRoleNames(context.Context) ([]string, error) {
	names := make([]string, 0, len(m.roles))
	for name := range m.roles {
		names = append(names, name)
	}
	return names, nil
}

func (m *memStore) ListRoles(context.Context) ([]auth.RoleWithUsage, error) {
	out := make([]auth.RoleWithUsage, 0, len(m.roles))
	for name, r := range m.roles {
		out = append(out, auth.RoleWithUsage{Role: r, UsageCount: m.usage(name)})
	}
	return out, nil
}

func (m *memStore) usage(name string) int {
	n := 0
	for _, assigned := range m.userRoles {
		for _, r := range assigned {
			if r == name {
				n++
			}
		}
	}
	return n
}

func (m *memStore) CreateRole(_ context.Context, name, description string) (auth.Role, error) {
	if _, ok := m.roles[name]; ok {
		return auth.Role{}, auth.ErrConflict
	}
	r := auth.Role{ID: m.id(), Name: name, Description: description}
	m.roles[name] = r
	return r, nil
}

func (m *memStore) UpdateRole(_ context.Context, oldName, name, description string) error {
	r, ok := m.roles[oldName]
	if !ok {
		return auth.ErrNotFound
	}
	if name != oldName {
		if _, exists := m.roles[name]; exists {
			return auth.ErrConflict
		}
		delete(m.roles, oldName)
	}
	r.Name = name
	r.Description = description
	m.roles[name] = r
	return nil
}

func (m *memStore) DeleteRole(_ context.Context, name string) error {
	if _, ok := m.roles[name]; !ok {
		return auth.ErrNotFound
	}
	if usage := m.usage(name); usage > 0 {
		return &auth.RoleInUseError{Name: name, Count: usage}
	}
	delete(m.roles, name)
	return nil
}

func (m *memStore) UserRoles(_ context.Context, userID string) ([]string, error) {
	return m.userRoles[userID], nil
}

func (m *memStore) ReplaceUserRoles(_ context.Context, userID string, roleNames []string) error {
	assigned := make([]string, 0, len(roleNames))
	for _, name := range roleNames {
		if _, ok := m.roles[name]; ok {
			assigned = append(assigned, name)
		}
	}
	m.userRoles[userID] = assigned
	return nil
}

func (m *memStore) CreateSession(_ context.Context, token, userID string) error {
	m.sessions[token] = userID
	return nil
}

func (m *memStore) SessionIdentity(_ context.Context, token string) (auth.Identity, error) {
	userID, ok := m.sessions[token]
	if !ok {
		return auth.Identity{}, auth.ErrNotFound
	}
	for _, u := range m.users {
		if u.ID == userID {
			return auth.Identity{UserID: u.ID, Email: u.Email, Name: u.Name, Roles: m.userRoles[u.ID]}, nil
		}
	}
	return auth.Identity{}, auth.ErrNotFound
}

func (m *memStore) DeleteSession(_ context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

func (m *memStore) ListCredentials(context.Context) ([]auth.Credential, error) {
	out := make([]auth.Credential, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, auth.Credential{UserID: u.ID, Email: u.Email, Password: u.Password})
	}
	return out, nil
}

func (m *memStore) UpdatePassword(_ context.Context, userID, password string) error {
	for email, u := range m.users {
		if u.ID == userID {
			u.Password = password
			m.users[email] = u
			return nil
		}
	}
	return auth.ErrNotFound
}

func newTestApp(t *testing.T, store *memStore, opts ...Option) http.Handler {
	t.Helper()
	svc, err := auth.NewService(store, auth.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	return New(svc, ReadyProbe{}, "test", opts...).Handler()
}

// loginAs performs the form login and returns the session cookie.
func loginAs(t *testing.T, h http.Handler, email, password string) *http.Cookie {
	t.Helper()
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestLoginLogoutFlow(t *testing.T) {
	store := newMemStore()
	store.seedUser(t, "admin@example.com", "Ada", "s3cret", "admin")
	h := newTestApp(t, store)

	cookie := loginAs(t, h, "admin@example.com", "s3cret")
	require.True(t, cookie.HttpOnly)
	require.Equal(t, "/", cookie.Path)
	require.Zero(t, cookie.MaxAge, "session cookie must not carry an expiry")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Welcome back, Ada!")

	req = httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Empty(t, store.sessions, "logout must destroy the server-side session")

	// The old cookie no longer resolves.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), "Welcome to Staffdesk.")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := newMemStore()
	store.seedUser(t, "admin@example.com", "Ada", "s3cret", "admin")
	h := newTestApp(t, store)

	for _, creds := range []url.Values{
		{"email": {"admin@example.com"}, "password": {"wrong"}},
		{"email": {"nobody@example.com"}, "password": {"whatever"}},
	} {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(creds.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/login?error="+url.QueryEscape("Invalid credentials"), rec.Header().Get("Location"))
	}
	require.Empty(t, store.sessions)
}

func TestLoginRateLimit(t *testing.T) {
	store := newMemStore()
	h := newTestApp(t, store, WithLoginRateLimit(2, 1))

	form := url.Values{"email": {"x@example.com"}, "password": {"pw"}}
	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)

	// A different client address still gets through.
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "10.0.0.10:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestAdminGate(t *testing.T) {
	store := newMemStore()
	store.seedUser(t, "admin@example.com", "Ada", "s3cret", "admin")
	store.seedUser(t, "user@example.com", "Uma", "s3cret", "user")
	h := newTestApp(t, store)

	wantLocation := "/login?error=" + url.QueryEscape("Admin access required")

	// Anonymous.
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, wantLocation, rec.Header().Get("Location"))
	require.Equal(t, "admin", rec.Header().Get("X-Auth-Required"))

	// Authenticated but not admin.
	userCookie := loginAs(t, h, "user@example.com", "s3cret")
	req = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.AddCookie(userCookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, wantLocation, rec.Header().Get("Location"))

	// Admin.
	adminCookie := loginAs(t, h, "admin@example.com", "s3cret")
	req = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.AddCookie(adminCookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "user@example.com")
}

func adminPost(t *testing.T, h http.Handler, cookie *http.Cookie, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminUserManagement(t *testing.T) {
	store := newMemStore()
	store.seedUser(t, "admin@example.com", "Ada", "s3cret", "admin", "user")
	h := newTestApp(t, store)
	cookie := loginAs(t, h, "admin@example.com", "s3cret")

	rec := adminPost(t, h, cookie, "/admin/users/create", url.Values{
		"email":    {"new@example.com"},
		"name":     {"New Person"},
		"password": {"pw123"},
		"roles":    {"user"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/admin/users?success="+url.QueryEscape("User created"), rec.Header().Get("Location"))
	created := store.users["new@example.com"]
	require.True(t, auth.IsHashed(created.Password))
	require.Equal(t, []string{"user"}, store.userRoles[created.ID])

	// Duplicate email.
	rec = adminPost(t, h, cookie, "/admin/users/create", url.Values{
		"email":    {"new@example.com"},
		"name":     {"Dup"},
		"password": {"pw"},
	})
	require.Equal(t, "/admin/users?error="+url.QueryEscape("User already exists"), rec.Header().Get("Location"))

	// Update keeps the password when the field is blank.
	before := store.users["new@example.com"].Password
	rec = adminPost(t, h, cookie, "/admin/users/update", url.Values{
		"email": {"new@example.com"},
		"name":  {"Renamed"},
		"roles": {"user"},
	})
	require.Equal(t, "/admin/users?success="+url.QueryEscape("User updated"), rec.Header().Get("Location"))
	require.Equal(t, before, store.users["new@example.com"].Password)
	require.Equal(t, "Renamed", store.users["new@example.com"].Name)

	rec = adminPost(t, h, cookie, "/admin/users/delete", url.Values{"email": {"new@example.com"}})
	require.Equal(t, "/admin/users?success="+url.QueryEscape("User deleted"), rec.Header().Get("Location"))
	require.NotContains(t, store.users, "new@example.com")

	rec = adminPost(t, h, cookie, "/admin/users/delete", url.Values{"email": {"new@example.com"}})
	require.Equal(t, "/admin/users?error="+url.QueryEscape("User not found"), rec.Header().Get("Location"))
}

func TestAdminRoleManagement(t *testing.T) {
	store := newMemStore()
	store.seedUser(t, "admin@example.com", "Ada", "s3cret", "admin")
	store.seedUser(t, "one@example.com", "One", "pw", "admin")
	h := newTestApp(t, store)
	cookie := loginAs(t, h, "admin@example.com", "s3cret")

	rec := adminPost(t, h, cookie, "/admin/roles/create", url.Values{
		"name":        {"auditor"},
		"description": {"read-only access"},
	})
	require.Equal(t, "/admin/roles?success="+url.QueryEscape("Role created"), rec.Header().Get("Location"))

	rec = adminPost(t, h, cookie, "/admin/roles/create", url.Values{"name": {"auditor"}})
	require.Equal(t, "/admin/roles?error="+url.QueryEscape("Role already exists"), rec.Header().Get("Location"))

	rec = adminPost(t, h, cookie, "/admin/roles/update", url.Values{
		"oldName":     {"auditor"},
		"name":        {"reviewer"},
		"description": {"renamed"},
	})
	require.Equal(t, "/admin/roles?success="+url.QueryEscape("Role updated"), rec.Header().Get("Location"))
	require.Contains(t, store.roles, "reviewer")

	// The admin role is held by both seeded users.
	rec = adminPost(t, h, cookie, "/admin/roles/delete", url.Values{"name": {"admin"}})
	require.Equal(t, "/admin/roles?error="+url.QueryEscape("Cannot delete role: 2 user(s) assigned"), rec.Header().Get("Location"))
	require.Contains(t, store.roles, "admin")

	rec = adminPost(t, h, cookie, "/admin/roles/delete", url.Values{"name": {"reviewer"}})
	require.Equal(t, "/admin/roles?success="+url.QueryEscape("Role deleted"), rec.Header().Get("Location"))
	require.NotContains(t, store.roles, "reviewer")
}

func TestLoginPageShowsFlash(t *testing.T) {
	h := newTestApp(t, newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/login?error="+url.QueryEscape("Admin access required"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Admin access required")
}

func TestOperationalEndpoints(t *testing.T) {
	h := newTestApp(t, newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health["status"])
	require.Equal(t, "staffdesk", health["service"])

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/data", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.True(t, payload.Success)
}

func TestRequestHardeningHeaders(t *testing.T) {
	h := newTestApp(t, newMemStore())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	// Inbound request ids are honored.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "rid-42", rec.Header().Get("X-Request-ID"))
}
