package domain

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/config"
	"jan-server/services/vision-api/internal/domain/session"
)

// ProvideSessionService provides the session registry.
func ProvideSessionService(
	store session.Store,
	sources session.SourceOpener,
	trackers session.TrackerFactory,
	frames session.FrameSink,
	events session.EventSink,
	status session.StatusSink,
	cfg *config.Config,
	log zerolog.Logger,
) session.Service {
	return session.NewService(store, session.Dependencies{
		Sources:         sources,
		Trackers:        trackers,
		Frames:          frames,
		Events:          events,
		Status:          status,
		StopTimeout:     cfg.PipelineStopTimeout,
		TrackIdleFrames: cfg.PipelineTrackIdleSpan,
	}, log)
}

// ServiceProvider provides all domain services.
var ServiceProvider = wire.NewSet(
	ProvideSessionService,
)
