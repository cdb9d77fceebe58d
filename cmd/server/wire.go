//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
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
	"jan-server/services/vision-api/internal/infrastructure/repository/event"
	"jan-server/services/vision-api/internal/infrastructure/source"
	"jan-server/services/vision-api/internal/infrastructure/storage"
	"jan-server/services/vision-api/internal/infrastructure/store"
	"jan-server/services/vision-api/internal/interfaces"
	"jan-server/services/vision-api/internal/interfaces/httpserver"
	"jan-server/services/vision-api/internal/interfaces/httpserver/handlers"
)

// ProviderSet is the wire provider set for the application.
var ProviderSet = wire.NewSet(
	// Infrastructure providers
	ProvideAuthValidator,
	ProvideEventRepository,
	ProvideRedisCache,
	ProvideRecentCache,
	ProvideLocker,
	ProvideFrameStore,
	ProvideHub,
	ProvideTrackerFactory,
	ProvideSourceOpener,
	ProvideSessionStore,
	ProvideCatalog,
	ProvideReadinessChecks,
	capture.NewService,

	// Interface bindings
	wire.Bind(new(session.FrameSink), new(storage.FrameStore)),
	wire.Bind(new(handlers.FrameLoader), new(storage.FrameStore)),
	wire.Bind(new(session.StatusSink), new(*livefeed.Hub)),
	wire.Bind(new(capture.Broadcaster), new(*livefeed.Hub)),
	wire.Bind(new(handlers.LiveFeed), new(*livefeed.Hub)),
	wire.Bind(new(session.EventSink), new(*capture.Service)),
	wire.Bind(new(handlers.CaptureQuerier), new(*capture.Service)),
	wire.Bind(new(handlers.DeviceCatalog), new(*devices.Catalog)),

	// Domain providers
	domain.ServiceProvider,

	// Interface providers
	interfaces.InterfacesProvider,

	// Application
	NewApplication,
)

// ProvideAuthValidator provides an auth validator.
func ProvideAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(ctx, cfg, log)
}

// ProvideEventRepository provides Postgres persistence, or memory when no DSN is set.
func ProvideEventRepository(ctx context.Context, cfg *config.Config, log zerolog.Logger) (capture.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		return event.NewInMemoryRepository(0), func() {}, nil
	}
	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	return event.NewPostgresRepository(db), func() { _ = database.Close(db) }, nil
}

// ProvideRedisCache provides the recent captures cache; nil when disabled.
func ProvideRedisCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*cache.RedisCache, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	c, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.RecentCapturesSize, log)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}

// ProvideRecentCache avoids handing out a typed nil.
func ProvideRecentCache(c *cache.RedisCache) capture.RecentCache {
	if c == nil {
		return nil
	}
	return c
}

// ProvideLocker avoids handing out a typed nil.
func ProvideLocker(c *cache.RedisCache) devices.Locker {
	if c == nil {
		return nil
	}
	return c
}

// ProvideFrameStore provides frame storage.
func ProvideFrameStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.FrameStore, error) {
	return storage.New(ctx, cfg, log)
}

// ProvideHub provides the live feed hub.
func ProvideHub(cfg *config.Config, log zerolog.Logger) *livefeed.Hub {
	return livefeed.NewHub(cfg.LiveFeedClientBuffer, log)
}

// ProvideTrackerFactory provides the detector sidecar client.
func ProvideTrackerFactory(cfg *config.Config, log zerolog.Logger) session.TrackerFactory {
	return detector.NewClient(detector.ClientConfig{
		BaseURL:    cfg.DetectorURL,
		Timeout:    cfg.DetectorTimeout,
		Confidence: cfg.DetectorConfidence,
		Classes:    cfg.DetectorClasses,
	}, log)
}

// ProvideSourceOpener provides the ffmpeg source opener.
func ProvideSourceOpener(cfg *config.Config, log zerolog.Logger) session.SourceOpener {
	return source.NewFFmpegOpener(source.Config{
		FFmpegPath:  cfg.FFmpegPath,
		OpenTimeout: cfg.SourceOpenTimeout,
		FrameRate:   cfg.SourceFrameRate,
	}, log)
}

// ProvideSessionStore provides a session store.
func ProvideSessionStore(log zerolog.Logger) session.Store {
	return store.NewMemoryStore(log)
}

// ProvideCatalog provides the device catalog.
func ProvideCatalog(cfg *config.Config, locker devices.Locker, log zerolog.Logger) *devices.Catalog {
	return devices.NewCatalog(devices.Options{
		File:      cfg.DevicesFile,
		VaultDir:  cfg.DevicesVaultDir,
		ServerURL: cfg.DeviceServerURL,
		Token:     cfg.DeviceServerToken,
		Timeout:   cfg.DetectorTimeout,
	}, locker, log)
}

// ProvideReadinessChecks provides the /readyz checks.
func ProvideReadinessChecks(c *cache.RedisCache) map[string]httpserver.ReadinessCheck {
	checks := map[string]httpserver.ReadinessCheck{}
	if c != nil {
		checks["redis"] = c.HealthCheck
	}
	return checks
}

// BuildApplication creates the application with all dependencies wired.
func BuildApplication(
	ctx context.Context,
	cfg *config.Config,
	log zerolog.Logger,
) (*Application, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
