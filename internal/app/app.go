// Package app wires the session core to its stores, identity provider and
// consumers. An App is built once per process and closed on exit; nothing
// in it is global.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/terraconstructs/classgrid/internal/authz"
	"github.com/terraconstructs/classgrid/internal/cachestore"
	"github.com/terraconstructs/classgrid/internal/client"
	"github.com/terraconstructs/classgrid/internal/config"
	"github.com/terraconstructs/classgrid/internal/db/bunx"
	"github.com/terraconstructs/classgrid/internal/identity"
	"github.com/terraconstructs/classgrid/internal/migrations"
	"github.com/terraconstructs/classgrid/internal/profilestore"
	"github.com/terraconstructs/classgrid/internal/server"
	"github.com/terraconstructs/classgrid/internal/session"
	"github.com/terraconstructs/classgrid/internal/telemetry"
	"github.com/uptrace/bun"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

// App holds the process-wide collaborators.
type App struct {
	Config     *config.Config
	ProfileDB  *bun.DB
	Profiles   *profilestore.BunStore
	Provider   session.IdentityProvider
	OIDC       *identity.OIDCProvider
	Reconciler *session.Reconciler
	Registrar  *session.Registrar
	Gate       *authz.Gate
	Scheduler  *client.Client

	closers []func() error
}

type options struct {
	provider    session.IdentityProvider
	prompt      func(*oidc.DeviceAuthorizationResponse)
	autoMigrate bool
	telemetry   bool
	policy      map[string][]string
}

// Option configures New.
type Option func(*options)

// WithProvider replaces the configured identity provider.
func WithProvider(p session.IdentityProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithDevicePrompt sets how device authorization instructions are shown.
func WithDevicePrompt(fn func(*oidc.DeviceAuthorizationResponse)) Option {
	return func(o *options) { o.prompt = fn }
}

// WithAutoMigrate applies pending schema migrations on start.
func WithAutoMigrate() Option {
	return func(o *options) { o.autoMigrate = true }
}

// WithTelemetry initializes OpenTelemetry from the observability config.
func WithTelemetry() Option {
	return func(o *options) { o.telemetry = true }
}

// WithPolicy overrides the role policy of the gate.
func WithPolicy(policy map[string][]string) Option {
	return func(o *options) { o.policy = policy }
}

// New builds an App. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg}
	if err := a.build(ctx, o); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, o options) error {
	cfg := a.Config

	if o.telemetry {
		shutdown, err := telemetry.Init(ctx, cfg.Observability)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { return shutdown(context.Background()) })
	}

	db, err := OpenDB(ctx, cfg.ProfileDatabaseURL, cfg.MaxDBConnections, o.autoMigrate)
	if err != nil {
		return err
	}
	a.ProfileDB = db
	a.closers = append(a.closers, func() error { return bunx.Close(db) })
	a.Profiles = profilestore.NewBunStore(db)

	store, err := a.cacheStore(ctx, o.autoMigrate)
	if err != nil {
		return err
	}

	a.Provider = o.provider
	if a.Provider == nil {
		if a.Provider, err = a.identityProvider(ctx, o.prompt); err != nil {
			return err
		}
	}

	a.Reconciler, err = session.New(a.Provider, a.Profiles, session.NewCache(store),
		session.WithProfileMemo(cfg.ProfileMemoSize))
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.Reconciler.Close)
	a.Registrar = session.NewRegistrar(a.Profiles, a.Reconciler)

	if a.Gate, err = authz.NewGate(o.policy); err != nil {
		return err
	}
	if cfg.SchedulerURL != "" {
		a.Scheduler = client.New(cfg.SchedulerURL, a.Reconciler)
	}
	return nil
}

// OpenDB connects to dsn and optionally applies migrations.
func OpenDB(ctx context.Context, dsn string, maxConns int, migrate bool) (*bun.DB, error) {
	db, err := bunx.NewDB(ctx, dsn, maxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if migrate {
		if _, err := migrations.Apply(ctx, db); err != nil {
			_ = bunx.Close(db)
			return nil, err
		}
	}
	return db, nil
}

func (a *App) cacheStore(ctx context.Context, migrate bool) (session.Store, error) {
	cfg := a.Config.Cache
	switch cfg.Backend {
	case config.CacheBackendMemory:
		return cachestore.NewMemoryStore(), nil
	case config.CacheBackendSQL:
		db := a.ProfileDB
		if cfg.DatabaseURL != a.Config.ProfileDatabaseURL {
			var err error
			db, err = OpenDB(ctx, cfg.DatabaseURL, a.Config.MaxDBConnections, migrate)
			if err != nil {
				return nil, fmt.Errorf("session cache: %w", err)
			}
			a.closers = append(a.closers, func() error { return bunx.Close(db) })
		}
		return cachestore.NewSQLStore(db, cfg.Namespace), nil
	default:
		return cachestore.NewFileStore(cfg.Path)
	}
}

func (a *App) identityProvider(ctx context.Context, prompt func(*oidc.DeviceAuthorizationResponse)) (session.IdentityProvider, error) {
	if err := a.Config.ValidateIdentity(); err != nil {
		return nil, err
	}
	if !a.Config.UsesOIDC() {
		return identity.NewStaticProvider(a.Config.BearerToken)
	}

	store, err := identity.NewFileCredentialStore(a.Config.OIDC.TokenPath)
	if err != nil {
		return nil, err
	}
	a.OIDC, err = identity.NewOIDCProvider(ctx, identity.OIDCConfig{
		Issuer:       a.Config.OIDC.Issuer,
		ClientID:     a.Config.OIDC.ClientID,
		ClientSecret: a.Config.OIDC.ClientSecret,
		Scopes:       a.Config.OIDC.Scopes,
		RoleClaim:    a.Config.OIDC.RoleClaim,
		Prompt:       prompt,
	}, store)
	if err != nil {
		return nil, err
	}
	return a.OIDC, nil
}

// Handler returns the HTTP consumer surface.
func (a *App) Handler() http.Handler {
	opts := server.RouterOptions{
		Sessions:  a.Reconciler,
		Registrar: a.Registrar,
		Gate:      a.Gate,
	}
	if a.Scheduler != nil {
		opts.Scheduler = a.Scheduler
	}
	return server.NewRouter(opts)
}

// Close releases everything New opened, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		log.Printf("app: close: %v", err)
		return err
	}
	return nil
}
