package web

import (
	"fmt"
	"net/http"
	"time"
)

func (a *App) home(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, "Home")
	if data.Identity != nil {
		data.Message = fmt.Sprintf("Welcome back, %s!", data.Identity.Name)
	} else {
		data.Message = "Welcome to Staffdesk."
	}
	data.Items = []string{"Accounts", "Roles", "Sessions"}
	a.render(w, "home", data)
}

func (a *App) about(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, "About")
	data.Description = "Staffdesk is a small administrative console for managing user accounts and role assignments."
	a.render(w, "about", data)
}

// resourcePage renders one of the static resource pages, identity-aware for
// the navigation bar.
func (a *App) resourcePage(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.render(w, "resource", newPageData(r, title))
	}
}

func (a *App) apiData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"timestamp": time.Now().UTC().Format(time.RFC3339)},
	})
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "staffdesk",
		"version": a.version,
	})
}

func (a *App) readyz(w http.ResponseWriter, r *http.Request) {
	if err := a.probe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
