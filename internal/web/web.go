package web

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"staffdesk.org/internal/auth"
	"staffdesk.org/internal/obs"
)

// ReadyProbe pings the backing store for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// App is the HTTP layer: server-rendered pages on top of the auth service.
type App struct {
	svc          *auth.Service
	probe        ReadyProbe
	version      string
	loginLimiter *ipLimiter
}

// Option configures App behavior.
type Option func(*App)

// WithLoginRateLimit overrides the per-IP token bucket guarding POST /login.
func WithLoginRateLimit(burst, perSecond int) Option {
	return func(a *App) {
		if burst > 0 && perSecond > 0 {
			a.loginLimiter = newIPLimiter(burst, perSecond)
		}
	}
}

// New constructs the HTTP layer.
func New(svc *auth.Service, probe ReadyProbe, version string, opts ...Option) *App {
	a := &App{
		svc:          svc,
		probe:        probe,
		version:      version,
		loginLimiter: newIPLimiter(5, 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler assembles the router with the full middleware chain.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logging)
	r.Use(SecurityHeaders)
	r.Use(MaxBodyBytes(1 << 20))
	r.Use(a.withIdentity)

	// Public pages.
	r.Get("/", a.home)
	r.Get("/about", a.about)
	r.Get("/resources/documentation", a.resourcePage("Documentation"))
	r.Get("/resources/tutorials", a.resourcePage("Tutorials"))
	r.Get("/resources/support", a.resourcePage("Support"))

	// Authentication.
	r.Get("/login", a.loginPage)
	r.With(a.loginLimiter.Middleware).Post("/login", a.login)
	r.Get("/logout", a.logout)

	// Admin surface, gated on the admin role.
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(a.requireRole("admin"))
		ar.Get("/users", a.adminUsers)
		ar.Post("/users/create", a.createUser)
		ar.Post("/users/update", a.updateUser)
		ar.Post("/users/delete", a.deleteUser)
		ar.Get("/roles", a.adminRoles)
		ar.Post("/roles/create", a.createRole)
		ar.Post("/roles/update", a.updateRole)
		ar.Post("/roles/delete", a.deleteRole)
	})

	// JSON API for same-page widgets; CORS kept open for local tooling.
	r.Route("/api", func(ar chi.Router) {
		ar.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		ar.Get("/data", a.apiData)
	})

	// Operational endpoints.
	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)
	r.Handle("/metrics", obs.Handler())

	// Embedded static assets.
	r.Handle("/static/*", staticHandler())

	return obs.Instrument(r)
}
