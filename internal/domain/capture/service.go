package capture

import (
	"context"

	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/domain/crossing"
	"jan-server/services/vision-api/internal/infrastructure/metrics"
	"jan-server/services/vision-api/internal/utils/eventid"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Repository persists crossing records.
type Repository interface {
	Insert(ctx context.Context, record Record) error
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// RecentCache keeps a bounded list of the newest records.
type RecentCache interface {
	Push(ctx context.Context, record Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Broadcaster fans notifications out to connected subscribers.
type Broadcaster interface {
	BroadcastCapture(n Notification)
}

// Service stores crossing events and fans them out. It is the event sink of
// every pipeline.
type Service struct {
	repo        Repository
	cache       RecentCache
	broadcaster Broadcaster
	log         zerolog.Logger
}

// NewService creates a capture service. cache and broadcaster may be nil.
func NewService(repo Repository, cache RecentCache, broadcaster Broadcaster, log zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		cache:       cache,
		broadcaster: broadcaster,
		log:         log.With().Str("component", "capture-service").Logger(),
	}
}

// Insert persists the event and returns its id. Cache and broadcast failures
// are logged only.
func (s *Service) Insert(ctx context.Context, event crossing.Event) (string, error) {
	record := FromEvent(eventid.New(), event)

	if err := s.repo.Insert(ctx, record); err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Push(ctx, record); err != nil {
			metrics.RecordSinkFailure("recent_cache")
			s.log.Warn().Err(err).Str("event_id", record.ID).Msg("failed to cache capture")
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastCapture(record.Notification())
	}

	s.log.Debug().
		Str("event_id", record.ID).
		Str("device_id", record.DeviceID).
		Str("direction", string(record.Direction)).
		Msg("capture stored")
	return record.ID, nil
}

// List returns persisted records, newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Record, error) {
	filter.Limit = clampLimit(filter.Limit)
	return s.repo.List(ctx, filter)
}

// Recent returns the newest cached records. Without a cache it is empty.
func (s *Service) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s.cache == nil {
		return []Record{}, nil
	}
	return s.cache.Recent(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
