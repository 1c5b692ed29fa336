package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"staffdesk.org/internal/audit"
	"staffdesk.org/internal/auth"
)

func (a *App) adminRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.svc.ListRoles(r.Context())
	if err != nil {
		a.failurePage(w, r)
		return
	}
	data := newPageData(r, "Role Management")
	data.Roles = roles
	a.render(w, "admin-roles", data)
}

func (a *App) createRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectRoles(w, r, "error", "Invalid form data")
		return
	}
	name := r.PostFormValue("name")
	description := r.PostFormValue("description")

	role, err := a.svc.CreateRole(r.Context(), name, description)
	switch {
	case errors.Is(err, auth.ErrConflict):
		redirectRoles(w, r, "error", "Role already exists")
	case errors.Is(err, auth.ErrInvalidInput):
		redirectRoles(w, r, "error", "Invalid form data")
	case err != nil:
		a.failurePage(w, r)
	default:
		_ = audit.LogEvent(r.Context(), "role.create", map[string]any{"name": role.Name})
		redirectRoles(w, r, "success", "Role created")
	}
}

func (a *App) updateRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectRoles(w, r, "error", "Invalid form data")
		return
	}
	oldName := r.PostFormValue("oldName")
	name := r.PostFormValue("name")
	description := r.PostFormValue("description")

	err := a.svc.UpdateRole(r.Context(), oldName, name, description)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		redirectRoles(w, r, "error", "Role not found")
	case errors.Is(err, auth.ErrConflict):
		redirectRoles(w, r, "error", "Role already exists")
	case errors.Is(err, auth.ErrInvalidInput):
		redirectRoles(w, r, "error", "Invalid form data")
	case err != nil:
		a.failurePage(w, r)
	default:
		_ = audit.LogEvent(r.Context(), "role.update", map[string]any{
			"old_name": oldName,
			"name":     name,
		})
		redirectRoles(w, r, "success", "Role updated")
	}
}

func (a *App) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectRoles(w, r, "error", "Invalid form data")
		return
	}
	name := r.PostFormValue("name")

	err := a.svc.DeleteRole(r.Context(), name)
	var inUse *auth.RoleInUseError
	switch {
	case errors.As(err, &inUse):
		redirectRoles(w, r, "error", fmt.Sprintf("Cannot delete role: %d user(s) assigned", inUse.Count))
	case errors.Is(err, auth.ErrNotFound):
		redirectRoles(w, r, "error", "Role not found")
	case errors.Is(err, auth.ErrInvalidInput):
		redirectRoles(w, r, "error", "Invalid form data")
	case err != nil:
		a.failurePage(w, r)
	default:
		_ = audit.LogEvent(r.Context(), "role.delete", map[string]any{"name": name})
		redirectRoles(w, r, "success", "Role deleted")
	}
}

func redirectRoles(w http.ResponseWriter, r *http.Request, kind, msg string) {
	http.Redirect(w, r, "/admin/roles?"+kind+"="+url.QueryEscape(msg), http.StatusSeeOther)
}
