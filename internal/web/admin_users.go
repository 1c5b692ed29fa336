package web

import (
	"errors"
	"net/http"
	"net/url"

	"staffdesk.org/internal/audit"
	"staffdesk.org/internal/auth"
)

func (a *App) adminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.svc.ListUsers(r.Context())
	if err != nil {
		a.failurePage(w, r)
		return
	}
	roles, err := a.svc.RoleNames(r.Context())
	if err != nil {
		a.failurePage(w, r)
		return
	}
	data := newPageData(r, "User Management")
	data.Users = users
	data.AvailableRoles = roles
	a.render(w, "admin-users", data)
}

func (a *App) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectUsers(w, r, "error", "Invalid form data")
		return
	}
	email := r.PostFormValue("email")
	name := r.PostFormValue("name")
	password := r.PostFormValue("password")
	roles := r.PostForm["roles"]

	user, err := a.svc.CreateUser(r.Context(), email, name, password, roles)
	switch {
	case errors.Is(err, auth.ErrConflict):
		redirectUsers(w, r, "error", "User already exists")
	case errors.Is(err, auth.ErrInvalidInput):
		redirectUsers(w, r, "error", "Invalid form data")
	case err != nil:
		a.failurePage(w, r)
	default:
		_ = audit.LogEvent(r.Context(), "user.create", map[string]any{
			"email": user.Email,
			"roles": roles,
		})
		redirectUsers(w, r, "success", "User created")
	}
}

func (a *App) updateUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectUsers(w, r, "error", "Invalid form data")
		return
	}
	email := r.PostFormValue("email")
	name := r.PostFormValue("name")
	password := r.PostFormValue("password")
	roles := r.PostForm["roles"]

	err := a.svc.UpdateUser(r.Context(), email, name, password, roles)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		redirectUsers(w, r, "error", "User not found")
	case errors.Is(err, auth.ErrInvalidInput):
		redirectUsers(w, r, "error", "Invalid form data")
	case err != nil:
		a.failurePage(w, r)
	default:
		_ = audit.LogEvent(r.Context(), "user.update", map[string]any{
			"email":            auth.NormalizeEmail(email),
			"roles":            roles,
			"password_changed": password != "",
		})
		redirectUsers(w, r, "success", "User updated")
	}
}

func (a *App) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectUsers(w, r, "error", "Invalid form data")
		return
	}
	email := r.PostFormValue("email")

	err := a.svc.DeleteUser(r.Context(), email)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		redirectUsers(w, r, "error", "User not found")
	case err != nil:
		a.failurePage(w, r)
	default:
		_ = audit.LogEvent(r.Context(), "user.delete", map[string]any{
			"email": auth.NormalizeEmail(email),
		})
		redirectUsers(w, r, "success", "User deleted")
	}
}

func redirectUsers(w http.ResponseWriter, r *http.Request, kind, msg string) {
	http.Redirect(w, r, "/admin/users?"+kind+"="+url.QueryEscape(msg), http.StatusSeeOther)
}
