package handlers

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/domain/session"
	"jan-server/services/vision-api/internal/infrastructure/devices"
)

// ErrCatalogUnavailable is returned when no device catalog is configured.
var ErrCatalogUnavailable = errors.New("device catalog is not configured")

// DeviceHandler exposes the device configuration.
type DeviceHandler struct {
	catalog DeviceCatalog
	service session.Service
	log     zerolog.Logger
}

func NewDeviceHandler(catalog DeviceCatalog, service session.Service, log zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{
		catalog: catalog,
		service: service,
		log:     log.With().Str("component", "device-handler").Logger(),
	}
}

// Current returns the loaded device document.
func (h *DeviceHandler) Current(ctx context.Context) (map[string]any, error) {
	if h.catalog == nil {
		return nil, ErrCatalogUnavailable
	}
	cfg, err := h.catalog.Current(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.Payload, nil
}

// Sync refetches the device document and registers sessions for new devices.
func (h *DeviceHandler) Sync(ctx context.Context) (map[string]any, error) {
	if h.catalog == nil {
		return nil, devices.ErrSyncUnavailable
	}
	cfg, err := h.catalog.Sync(ctx)
	if err != nil {
		return nil, err
	}
	created, err := h.service.Initialize(ctx, cfg.Devices)
	if err != nil {
		return nil, err
	}
	h.log.Info().Int("devices", len(cfg.Devices)).Int("created", created).Msg("sessions initialized from synced config")
	return cfg.Payload, nil
}
