package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aussiebroadwan/iha/internal/iha/authn"
	"github.com/aussiebroadwan/iha/internal/iha/authz"
	httpapi "github.com/aussiebroadwan/iha/internal/iha/http"
	"github.com/aussiebroadwan/iha/internal/iha/service"
	"github.com/aussiebroadwan/iha/internal/iha/store"
	"github.com/aussiebroadwan/iha/internal/iha/store/drivers/redis"
	"github.com/aussiebroadwan/iha/internal/iha/store/drivers/sqlite"
	"github.com/aussiebroadwan/iha/pkg/cryptox"
	"github.com/aussiebroadwan/iha/pkg/jwtx"
	"github.com/aussiebroadwan/iha/pkg/slogx"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application wires the stores, the authentication and authorization
// engines and the HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Lives until Shutdown; bounds the JWKS cache and upstream discovery.
	ctx    context.Context
	cancel context.CancelFunc

	db         store.Store
	codes      store.AuthorizationCodeStore
	redisCodes *redis.CodeStore // nil unless Redis is configured
	keyClients []string

	registry *prometheus.Registry
	manager  *authn.Manager
	tokens   *authz.TokenIssuer
	builder  *authz.Builder

	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		logger: slogx.New(slogx.Config{
			Service: "iha",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)
	if cfg.MasterKeyPath != "" {
		cryptox.SetMasterKeyPath(cfg.MasterKeyPath)
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.closeStores()
		cancel()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("iha starting", "port", app.cfg.Port, "issuer", app.cfg.Issuer, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down iha...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod.Std())
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.cancel()

	if err := app.closeStores(); err != nil {
		app.logger.Error("error closing stores", "error", err)
		return err
	}

	app.logger.Info("iha stopped")
	return nil
}

// Handler exposes the routed handler, e.g. for httptest.
func (app *Application) Handler() http.Handler { return app.router }

// OpenDatabase opens the SQLite store at path and applies migrations.
func OpenDatabase(path string) (*sqlite.Store, error) {
	dsn := path
	if !strings.Contains(path, ":memory:") {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, nil
}

// initDatabase opens the stores, applies migrations and seeds.
func (app *Application) initDatabase() error {
	db, err := OpenDatabase(app.cfg.DatabaseFile)
	if err != nil {
		return err
	}
	app.db = db
	app.codes = db.AuthorizationCodes()
	app.logger.Info("database migrations applied successfully")

	if app.cfg.RedisAddr != "" {
		codes, err := redis.NewCodeStore(app.ctx, redis.Config{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		if err != nil {
			_ = db.Close()
			return err
		}
		app.redisCodes = codes
		app.codes = codes
		app.logger.Info("authorization codes stored in redis", "addr", app.cfg.RedisAddr)
	}

	keyClients, err := Seed(app.ctx, db, app.cfg, app.logger)
	if err != nil {
		_ = app.closeStores()
		return fmt.Errorf("failed to seed database: %w", err)
	}
	app.keyClients = keyClients

	return nil
}

// initServices builds the authentication and authorization engines.
func (app *Application) initServices() error {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registry := authn.NewRegistry()
	registry.Add(authn.TypeUsername, &authn.UsernameProcessor{Users: app.db.Users()})
	registry.Add(authn.TypeClient, &authn.ClientProcessor{Clients: app.db.Clients()})
	for _, up := range app.cfg.Upstreams {
		p, err := authn.NewTokenProcessor(app.ctx, up.Issuer, up.ClientID, app.db.Users())
		if err != nil {
			return err
		}
		registry.Add(authn.TypeOAuth2, p)
		app.logger.Info("upstream provider trusted", "issuer", up.Issuer)
	}

	metrics, err := authn.NewMetricsHook(app.registry)
	if err != nil {
		return err
	}
	pipeline := authn.NewPipeline()
	if err := pipeline.Register(authn.AuditHook{}, metrics); err != nil {
		return err
	}
	app.manager = authn.NewManager(registry, pipeline)

	codec := jwtx.NewCodec()
	remote, err := jwtx.NewRemoteKeys(app.ctx, nil)
	if err != nil {
		return err
	}
	codec.Remote = remote

	app.tokens = &authz.TokenIssuer{
		Issuer: app.cfg.Issuer,
		Codec:  codec,
		Keys:   app.db.JwtConfigs(),
	}
	app.builder = authz.NewBuilder(app.tokens, app.codes, app.db.Users(), app.db.Approvals())
	app.builder.ApprovalTTL = app.cfg.ApprovalTTL.Std()

	app.housekeepingService = service.NewHousekeepingService(
		app.codes,
		app.logger,
		app.cfg.HousekeepingInterval.Std(),
		app.registry,
	)

	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.registry,
		app.logger,
	)

	router.Manager = app.manager
	router.Builder = app.builder
	router.Tokens = app.tokens
	router.KeyClients = app.keyClients
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

func (app *Application) closeStores() error {
	var result *multierror.Error
	if app.redisCodes != nil {
		result = multierror.Append(result, app.redisCodes.Close())
	}
	if app.db != nil {
		result = multierror.Append(result, app.db.Close())
	}
	return result.ErrorOrNil()
}
