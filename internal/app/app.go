package app

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/fieldservice-sale/internal/domain/auth"
	"github.com/xenking/fieldservice-sale/internal/domain/env"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/message"
	"github.com/xenking/fieldservice-sale/internal/domain/sale"
	"github.com/xenking/fieldservice-sale/internal/handler"
	"github.com/xenking/fieldservice-sale/internal/storage/memory"
	"github.com/xenking/fieldservice-sale/internal/storage/postgres"
	"github.com/xenking/fieldservice-sale/pkg/health"
	"github.com/xenking/fieldservice-sale/pkg/httpmiddleware"
)

const (
	serviceName = "fieldservice-sale"
	version     = "1.0.0"
)

// backend is the storage selected by Config.Storage.
type backend struct {
	tx       sale.TxRunner
	repos    sale.Repositories
	messages message.Repository
	apikeys  auth.Repository
	close    func()
}

func openBackend(ctx context.Context, lg *zap.Logger, cfg *Config, h *health.Health) (*backend, error) {
	if cfg.Storage == StoragePostgres {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		h.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool),
			health.WithThresholds(cfg.Health.FailureThreshold, 1))

		db := postgres.New(pool)
		return &backend{
			tx:       db,
			repos:    db.Repositories(),
			messages: db.Messages(),
			apikeys:  db.APIKeys(),
			close:    pool.Close,
		}, nil
	}

	store := memory.New()
	for _, st := range fsm.DefaultStages() {
		if err := store.Stages().Upsert(ctx, st); err != nil {
			return nil, errors.Wrap(err, "seed stages")
		}
	}
	if cfg.DemoAPIKey != "" {
		if err := store.APIKeys().Upsert(ctx, auth.APIKeyInfo{
			ID:        "demo",
			KeyHash:   auth.HashKey([]byte(cfg.APIKeyPepper), cfg.DemoAPIKey),
			Name:      "demo",
			UserID:    "demo",
			CompanyID: "demo",
			Groups:    []string{env.GroupSaleUser, env.GroupFSMUser},
		}); err != nil {
			return nil, errors.Wrap(err, "register demo key")
		}
	}
	lg.Warn("Using in-memory storage, data is lost on restart")
	return &backend{
		tx:       store,
		repos:    store.Repositories(),
		messages: store.Messages(),
		apikeys:  store.APIKeys(),
		close:    func() {},
	}, nil
}

// NewRouter builds the chi router serving the API and health endpoints.
func NewRouter(svc *sale.Service, security *handler.SecurityHandler, h *health.Health) http.Handler {
	router := chi.NewRouter()
	api := humachi.New(router, handler.Config("Field Service Sale API", version))
	api.UseMiddleware(security.Middleware(api))
	handler.NewHandler(svc).Register(api)
	health.Register(api, h)
	return router
}

// wrap applies the HTTP middleware chain to router.
func wrap(ctx context.Context, cfg *Config, router http.Handler, m httpmiddleware.TelemetryProvider) http.Handler {
	routes, findRoute := httpmiddleware.ChiRoutes()
	return httpmiddleware.Wrap(router,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: httpmiddleware.ClientIP,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		routes,
		httpmiddleware.Instrument(serviceName, m),
		httpmiddleware.LogRequests(findRoute),
		httpmiddleware.Labeler(findRoute),
	)
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(cfg.Health.MaxGoroutines))

	b, err := openBackend(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer b.close()

	linker := sale.NewLinker(b.repos, message.NewChatter(b.messages),
		sale.WithMeterProvider(m.MeterProvider()),
	)
	svc := sale.NewService(b.tx, linker, b.repos, b.messages)
	security := handler.NewSecurityHandler(b.apikeys, []byte(cfg.APIKeyPepper))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           wrap(ctx, cfg, NewRouter(svc, security, healthSvc), m),
	}

	healthSvc.Start(ctx, cfg.Health.Interval)
	defer healthSvc.Stop()
	healthSvc.SetReady(true)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}
