// @title           Vision API
// @version         1.0
// @description     Multi-camera line crossing service.
// @description     Manages one decode pipeline per camera and reports vehicles crossing the configured lines.

// @contact.name   Jan Team
// @contact.url    https://github.com/janhq/jan-server

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8190
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token from Keycloak

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"jan-server/services/vision-api/internal/config"
	"jan-server/services/vision-api/internal/domain"
	"jan-server/services/vision-api/internal/domain/capture"
	"jan-server/services/vision-api/internal/domain/session"
	"jan-server/services/vision-api/internal/infrastructure/auth"
	"jan-server/services/vision-api/internal/infrastructure/cache"
	"jan-server/services/vision-api/internal/infrastructure/database"
	"jan-server/services/vision-api/internal/infrastructure/detector"
	"jan-server/services/vision-api/internal/infrastructure/devices"
	"jan-server/services/vision-api/internal/infrastructure/livefeed"
	"jan-server/services/vision-api/internal/infrastructure/logger"
	"jan-server/services/vision-api/internal/infrastructure/observability"
	"jan-server/services/vision-api/internal/infrastructure/repository/event"
	"jan-server/services/vision-api/internal/infrastructure/source"
	"jan-server/services/vision-api/internal/infrastructure/storage"
	"jan-server/services/vision-api/internal/infrastructure/store"
	"jan-server/services/vision-api/internal/interfaces/httpserver"
	"jan-server/services/vision-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/vision-api/internal/interfaces/httpserver/routes"
)

// Application holds the main application components.
type Application struct {
	cfg        *config.Config
	httpServer *httpserver.HTTPServer
	sessions   session.Service
	catalog    *devices.Catalog
	hub        *livefeed.Hub
	closers    []func() error
	log        zerolog.Logger
}

// NewApplication creates a new application instance.
func NewApplication(
	cfg *config.Config,
	httpServer *httpserver.HTTPServer,
	sessions session.Service,
	catalog *devices.Catalog,
	hub *livefeed.Hub,
	log zerolog.Logger,
) *Application {
	return &Application{
		cfg:        cfg,
		httpServer: httpServer,
		sessions:   sessions,
		catalog:    catalog,
		hub:        hub,
		log:        log,
	}
}

// Start loads devices, registers their sessions and serves HTTP until ctx is
// cancelled. Pipelines are drained before the HTTP server stops.
func (a *Application) Start(ctx context.Context) error {
	if err := a.boot(ctx); err != nil {
		return err
	}

	serveCtx, cancelServe := context.WithCancel(context.Background())
	defer cancelServe()
	errCh := make(chan error, 1)
	go func() { errCh <- a.httpServer.Run(serveCtx) }()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	a.shutdown()
	cancelServe()
	if runErr == nil {
		runErr = <-errCh
	}
	return runErr
}

func (a *Application) boot(ctx context.Context) error {
	cfg, err := a.catalog.Boot(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("device config unavailable, starting without devices")
		return nil
	}

	created, err := a.sessions.Initialize(ctx, cfg.Devices)
	if err != nil {
		return fmt.Errorf("initialize sessions: %w", err)
	}
	a.log.Info().Int("devices", len(cfg.Devices)).Int("sessions", created).Msg("sessions initialized")

	if !a.cfg.AutostartSessions {
		return nil
	}
	summaries, err := a.sessions.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		err := a.sessions.Start(ctx, s.SessionID)
		var cfgErr *session.ConfigurationError
		switch {
		case err == nil:
		case errors.As(err, &cfgErr):
			a.log.Warn().Str("session_id", s.SessionID).Err(err).Msg("skipping autostart, line geometry invalid")
		default:
			a.log.Error().Str("session_id", s.SessionID).Err(err).Msg("autostart failed")
		}
	}
	return nil
}

func (a *Application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.sessions.Clear(ctx); err != nil {
		a.log.Error().Err(err).Msg("failed to stop every pipeline")
	}
	a.hub.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("close dependency")
		}
	}
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize auth validator")
	}

	var closers []func() error
	checks := map[string]httpserver.ReadinessCheck{}

	// Crossing event persistence
	var repo capture.Repository
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(database.Config{
			DSN:             cfg.DatabaseURL,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			ConnMaxLifetime: cfg.DBConnLifetime,
			LogLevel:        gormlogger.Warn,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := database.AutoMigrate(ctx, db, log); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		closers = append(closers, func() error { return database.Close(db) })
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
		repo = event.NewPostgresRepository(db)
	} else {
		log.Warn().Msg("DB_POSTGRESQL_WRITE_DSN not set, crossing events are kept in memory")
		repo = event.NewInMemoryRepository(0)
	}

	// Recent captures cache and sync lock
	var (
		recent capture.RecentCache
		locker devices.Locker
	)
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.RecentCapturesSize, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		recent, locker = redisCache, redisCache
		closers = append(closers, redisCache.Close)
		checks["redis"] = redisCache.HealthCheck
	}

	frameStore, err := storage.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize frame storage")
	}

	hub := livefeed.NewHub(cfg.LiveFeedClientBuffer, log)
	captures := capture.NewService(repo, recent, hub, log)

	trackers := detector.NewClient(detector.ClientConfig{
		BaseURL:    cfg.DetectorURL,
		Timeout:    cfg.DetectorTimeout,
		Confidence: cfg.DetectorConfidence,
		Classes:    cfg.DetectorClasses,
	}, log)
	sources := source.NewFFmpegOpener(source.Config{
		FFmpegPath:  cfg.FFmpegPath,
		OpenTimeout: cfg.SourceOpenTimeout,
		FrameRate:   cfg.SourceFrameRate,
	}, log)

	sessions := domain.ProvideSessionService(
		store.NewMemoryStore(log),
		sources,
		trackers,
		frameStore,
		captures,
		hub,
		cfg,
		log,
	)

	catalog := devices.NewCatalog(devices.Options{
		File:      cfg.DevicesFile,
		VaultDir:  cfg.DevicesVaultDir,
		ServerURL: cfg.DeviceServerURL,
		Token:     cfg.DeviceServerToken,
		Timeout:   cfg.DetectorTimeout,
	}, locker, log)

	handlerProvider := handlers.NewProvider(sessions, sources, catalog, captures, frameStore, hub, log)
	routeProvider := routes.NewProvider(handlerProvider, authValidator)
	httpServer := httpserver.New(cfg, log, routeProvider, checks)

	app := NewApplication(cfg, httpServer, sessions, catalog, hub, log)
	app.closers = closers

	log.Info().
		Str("service", cfg.ServiceName).
		Int("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Str("frame_storage", cfg.FrameStorageProvider).
		Msg("starting application")

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
