package handlers

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/domain/session"
)

// Provider holds all HTTP handlers.
type Provider struct {
	Session *SessionHandler
	Feed    *FeedHandler
	Live    *LiveHandler
	Event   *EventHandler
	Device  *DeviceHandler
	Frame   *FrameHandler
}

// NewProvider creates a new handler provider.
func NewProvider(
	service session.Service,
	sources session.SourceOpener,
	catalog DeviceCatalog,
	captures CaptureQuerier,
	frames FrameLoader,
	hub LiveFeed,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Session: NewSessionHandler(service, catalog, hub),
		Feed:    NewFeedHandler(service, sources, log),
		Live:    NewLiveHandler(service, hub),
		Event:   NewEventHandler(captures),
		Device:  NewDeviceHandler(catalog, service, log),
		Frame:   NewFrameHandler(frames),
	}
}

// HandlerProvider provides all handlers for wire.
var HandlerProvider = wire.NewSet(
	NewProvider,
)
