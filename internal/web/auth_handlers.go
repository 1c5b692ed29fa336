package web

import (
	"errors"
	"net/http"
	"net/url"

	"staffdesk.org/internal/audit"
	"staffdesk.org/internal/auth"
)

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, "login", newPageData(r, "Login"))
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error="+url.QueryEscape("Invalid credentials"), http.StatusSeeOther)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	token, id, err := a.svc.Login(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			_ = audit.LogEvent(r.Context(), "auth.login_failed", map[string]any{
				"email": auth.NormalizeEmail(email),
			})
			http.Redirect(w, r, "/login?error="+url.QueryEscape("Invalid credentials"), http.StatusSeeOther)
			return
		}
		a.failurePage(w, r)
		return
	}

	setSessionCookie(w, token)
	ctx := auth.ContextWithIdentity(r.Context(), id)
	_ = audit.LogEvent(ctx, "auth.login", map[string]any{"email": id.Email})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		if err := a.svc.Logout(r.Context(), c.Value); err != nil {
			a.failurePage(w, r)
			return
		}
		_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// setSessionCookie installs the bearer token. No Max-Age: the cookie lives
// for the browsing session, and the server-side record until logout.
func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
