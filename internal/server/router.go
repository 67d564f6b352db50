package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/terraconstructs/classgrid/internal/authz"
	"github.com/terraconstructs/classgrid/internal/session"
)

// SessionService is the reconciler surface the HTTP consumers use.
type SessionService interface {
	Current() session.Snapshot
	Watch(ctx context.Context) <-chan session.Snapshot
	Login(ctx context.Context, s session.Session) error
	Logout(ctx context.Context) error
}

// Registrar writes a profile and installs the session.
type Registrar interface {
	Register(ctx context.Context, s session.Session) error
}

// Scheduler is the upstream scheduling service.
type Scheduler interface {
	SubmitParameters(ctx context.Context, params json.RawMessage) (json.RawMessage, error)
	ListPending(ctx context.Context) (json.RawMessage, error)
	Approve(ctx context.Context, id string) (json.RawMessage, error)
	Reject(ctx context.Context, id, comment string) (json.RawMessage, error)
	SelectTimetable(ctx context.Context, id string) (json.RawMessage, error)
}

// RouterOptions controls the construction of the HTTP router.
// Sessions is required; the other services are mounted only when set.
type RouterOptions struct {
	Sessions      SessionService
	Registrar     Registrar
	Gate          *authz.Gate
	Scheduler     Scheduler
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, and
// the session and scheduling handlers mounted.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", HandleSession(opts.Sessions, opts.Gate))
		r.Post("/login", HandleLogin(opts.Sessions))
		r.Post("/logout", HandleLogout(opts.Sessions))
		r.Get("/events", HandleSessionEvents(opts.Sessions))
		if opts.Registrar != nil {
			r.Post("/register", HandleRegister(opts.Registrar))
		}
	})

	if opts.Scheduler != nil && opts.Gate != nil {
		MountScheduler(r, opts.Sessions, opts.Gate, opts.Scheduler)
	}

	return r
}
