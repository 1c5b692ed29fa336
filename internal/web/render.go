package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"

	"staffdesk.org/internal/auth"
	"staffdesk.org/internal/obs"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// pageData is the view model shared by all templates. Page-specific fields
// stay zero-valued where unused.
type pageData struct {
	Title      string
	Identity   *auth.Identity
	IsLoggedIn bool
	IsAdmin    bool
	Error      string
	Success    string

	Message        string
	Description    string
	Items          []string
	Users          []auth.UserWithRoles
	AvailableRoles []string
	Roles          []auth.RoleWithUsage
}

// newPageData seeds the view model with the request's resolved identity.
func newPageData(r *http.Request, title string) pageData {
	d := pageData{
		Title:   title,
		Error:   r.URL.Query().Get("error"),
		Success: r.URL.Query().Get("success"),
	}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		d.Identity = id
		d.IsLoggedIn = true
		d.IsAdmin = id.HasRole("admin")
	}
	return d
}

func (a *App) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		obs.LogEvent(map[string]any{
			"level":    "error",
			"msg":      "template render failed",
			"template": name,
			"error":    err.Error(),
		})
	}
}

// failurePage is the generic response to a store failure: the request fails,
// nothing is retried, no internals leak to the client.
func (a *App) failurePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_ = pages.ExecuteTemplate(w, "error", pageData{Title: "Error"})
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
