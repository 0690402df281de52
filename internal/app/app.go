// Package app builds the long-lived services behind every command from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/api"
	"github.com/JakeFAU/embedctl/internal/clock/system"
	"github.com/JakeFAU/embedctl/internal/config"
	"github.com/JakeFAU/embedctl/internal/embed"
	collyfetcher "github.com/JakeFAU/embedctl/internal/fetcher/colly"
	"github.com/JakeFAU/embedctl/internal/handler"
	"github.com/JakeFAU/embedctl/internal/id/uuid"
	"github.com/JakeFAU/embedctl/internal/policy/ratelimit"
	"github.com/JakeFAU/embedctl/internal/provider"
	memorypublisher "github.com/JakeFAU/embedctl/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/embedctl/internal/publisher/pubsub"
	"github.com/JakeFAU/embedctl/internal/sanitize"
	"github.com/JakeFAU/embedctl/internal/shortcode"
	gcsstorage "github.com/JakeFAU/embedctl/internal/storage/gcs"
	localstorage "github.com/JakeFAU/embedctl/internal/storage/local"
	memorystorage "github.com/JakeFAU/embedctl/internal/storage/memory"
	pgstore "github.com/JakeFAU/embedctl/internal/storage/postgres"
	redisstore "github.com/JakeFAU/embedctl/internal/storage/redis"
)

// ContentStore is a backend holding posts and the post-backed caches.
type ContentStore interface {
	embed.PostCache
	embed.PostResolver
	embed.TransientStore
	Site(ctx context.Context) (embed.Site, error)
}

// App holds the services commands use.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	resolver  *embed.Resolver
	manager   *embed.Manager
	providers *provider.Registry
	handlers  *handler.Registry
	ids       *uuid.Generator

	readyChecks []api.ReadyFunc
	closers     []closer
}

type closer struct {
	name string
	fn   func() error
}

// Components are prebuilt collaborators, used by tests to assemble an App without
// touching the network or a database.
type Components struct {
	Store      ContentStore
	Transients embed.TransientStore
	Fetcher    embed.Fetcher
	Discoverer embed.Discoverer
	Blobs      embed.BlobStore
	Publisher  embed.Publisher
	Clock      embed.Clock
}

// New builds an App from configuration, connecting to every configured backend.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	clock := system.New()

	store, err := a.setupStore(ctx, clock)
	if err != nil {
		a.Close()
		return nil, err
	}
	transients, err := a.setupTransients(ctx, store, clock)
	if err != nil {
		a.Close()
		return nil, err
	}
	blobs, err := a.setupExport(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.RequestTimeout(),
		RateLimiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.HTTP.RateLimitRPS,
			Burst: cfg.HTTP.RateLimitBurst,
		}),
	}, logger.Named("fetcher"))
	a.logger.Debug("using colly fetcher",
		zap.String("user_agent", cfg.HTTP.UserAgent),
		zap.Float64("rate_limit_rps", cfg.HTTP.RateLimitRPS),
	)

	if err := a.wire(ctx, Components{
		Store:      store,
		Transients: transients,
		Fetcher:    fetcher,
		Discoverer: fetcher,
		Blobs:      blobs,
		Publisher:  publisher,
		Clock:      clock,
	}); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// FromComponents builds an App around prebuilt collaborators.
func FromComponents(ctx context.Context, cfg config.Config, c Components, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	if c.Transients == nil {
		c.Transients = c.Store
	}
	if err := a.wire(ctx, c); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, c Components) error {
	if c.Store == nil {
		return errors.New("content store is required")
	}
	if c.Clock == nil {
		c.Clock = system.New()
	}

	defs, err := provider.Build(a.cfg.Providers.File, a.cfg.Providers.ReplaceDefaults)
	if err != nil {
		return fmt.Errorf("load providers: %w", err)
	}
	a.providers, err = provider.New(defs, c.Discoverer, a.logger.Named("providers"))
	if err != nil {
		return fmt.Errorf("build provider registry: %w", err)
	}
	a.logger.Debug("provider registry ready", zap.Int("providers", a.providers.Len()))
	a.handlers = handler.NewDefault()
	a.ids = uuid.New()

	homeURL := ""
	if site, err := c.Store.Site(ctx); err != nil {
		a.logger.Warn("site lookup failed", zap.Error(err))
	} else {
		homeURL = site.URL
	}

	cache := embed.NewCache(c.Store, c.Transients)
	a.resolver, err = embed.NewResolver(embed.Deps{
		Providers:  a.providers,
		Fetcher:    c.Fetcher,
		Cache:      cache,
		Transients: c.Transients,
		Posts:      c.Store,
		Handlers:   a.handlers,
		Sanitizer:  sanitize.New(),
		Shortcodes: shortcode.New(a.cfg.Embed.ContentWidth),
		Clock:      c.Clock,
	}, embed.Config{
		ContentWidth:      a.cfg.Embed.ContentWidth,
		CacheTTL:          a.cfg.Embed.CacheTTL,
		ResponseSizeLimit: a.cfg.Embed.ResponseSizeLimit,
		HomeURL:           homeURL,
	}, a.logger.Named("resolver"))
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	a.manager, err = embed.NewManager(embed.ManagerDeps{
		Cache:     cache,
		Posts:     c.Store,
		Resolver:  a.resolver,
		Blobs:     c.Blobs,
		Publisher: c.Publisher,
		IDs:       a.ids,
		Clock:     c.Clock,
	}, embed.ManagerConfig{
		CachePostTypes: a.cfg.Embed.CachePostTypes,
		Topic:          a.cfg.Events.Topic,
		ExportPrefix:   a.cfg.Export.Prefix,
	}, a.logger.Named("cache"))
	if err != nil {
		return fmt.Errorf("build cache manager: %w", err)
	}
	return nil
}

func (a *App) setupStore(ctx context.Context, clock embed.Clock) (ContentStore, error) {
	switch a.cfg.Store.Driver {
	case "postgres":
		a.logger.Info("using postgres content store", zap.String("table_prefix", a.cfg.DB.TablePrefix))
		store, err := pgstore.New(ctx, pgstore.Config{
			DSN:             a.cfg.DB.DSN,
			TablePrefix:     a.cfg.DB.TablePrefix,
			MaxConns:        a.cfg.DB.MaxConns,
			MinConns:        a.cfg.DB.MinConns,
			MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
		}, clock, a.logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		a.readyChecks = append(a.readyChecks, store.Ping)
		a.closers = append(a.closers, closer{name: "postgres", fn: func() error {
			store.Close()
			return nil
		}})
		return store, nil
	default:
		if a.cfg.Store.Fixtures == "" {
			a.logger.Info("using empty in-memory content store")
			return memorystorage.NewStore(embed.Site{}, clock), nil
		}
		fx, err := memorystorage.LoadFixtures(a.cfg.Store.Fixtures)
		if err != nil {
			return nil, fmt.Errorf("memory store init failed: %w", err)
		}
		a.logger.Info("using in-memory content store", zap.String("fixtures", a.cfg.Store.Fixtures), zap.Int("posts", len(fx.Posts)))
		return memorystorage.NewStoreFromFixtures(fx, clock), nil
	}
}

func (a *App) setupTransients(ctx context.Context, store ContentStore, clock embed.Clock) (embed.TransientStore, error) {
	if a.cfg.Transients.Driver != "redis" {
		return store, nil
	}
	a.logger.Info("using redis transients", zap.String("addr", a.cfg.Transients.RedisAddr))
	ts, err := redisstore.New(ctx, redisstore.Config{
		Addr:      a.cfg.Transients.RedisAddr,
		Password:  a.cfg.Transients.RedisPassword,
		DB:        a.cfg.Transients.RedisDB,
		KeyPrefix: a.cfg.Transients.RedisPrefix,
	}, clock, a.logger.Named("redis"))
	if err != nil {
		return nil, fmt.Errorf("redis transients init failed: %w", err)
	}
	a.readyChecks = append(a.readyChecks, ts.Ping)
	a.closers = append(a.closers, closer{name: "redis", fn: ts.Close})
	return ts, nil
}

func (a *App) setupExport(ctx context.Context) (embed.BlobStore, error) {
	switch a.cfg.Export.Driver {
	case "gcs":
		a.logger.Info("using GCS export backend", zap.String("bucket", a.cfg.Export.GCSBucket))
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: a.cfg.Export.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.closers = append(a.closers, closer{name: "gcs", fn: store.Close})
		return store, nil
	case "local":
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Export.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Debug("local export backend", zap.String("path", a.cfg.Export.BaseDir))
		return store, nil
	default:
		a.logger.Info("using in-memory export backend")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (embed.Publisher, error) {
	switch a.cfg.Events.Driver {
	case "pubsub":
		p, err := gcppublisher.New(ctx, a.cfg.Events.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.Events.ProjectID),
			zap.String("topic", a.cfg.Events.Topic),
		)
		a.closers = append(a.closers, closer{name: "pubsub", fn: p.Close})
		return p, nil
	case "memory":
		return memorypublisher.New(), nil
	default:
		return nil, nil
	}
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Resolver returns the embed resolver.
func (a *App) Resolver() *embed.Resolver {
	return a.resolver
}

// Manager returns the cache manager.
func (a *App) Manager() *embed.Manager {
	return a.manager
}

// Providers returns the provider registry.
func (a *App) Providers() *provider.Registry {
	return a.providers
}

// Handlers returns the embed handler registry.
func (a *App) Handlers() *handler.Registry {
	return a.handlers
}

// Ready pings every remote backend.
func (a *App) Ready(ctx context.Context) error {
	for _, check := range a.readyChecks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Server builds the proxy HTTP server.
func (a *App) Server() *api.Server {
	return api.NewServer(a.resolver, a.ids, a.logger.Named("api"),
		api.WithReadyCheck(a.Ready),
		api.WithRequestTimeout(a.cfg.RequestTimeout()+5*time.Second),
	)
}

// Serve runs the proxy server on port until ctx is canceled.
func (a *App) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.Server().Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Close releases every backend connection in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("close failed", zap.String("backend", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
