package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/infrastructure/metrics"
	"jan-server/services/vision-api/internal/infrastructure/observability"
	"jan-server/services/vision-api/internal/utils/idgen"
)

// Service is the session registry.
type Service interface {
	// Initialize registers a stopped session per descriptor, skipping devices
	// that already have one. It returns the number of sessions created.
	Initialize(ctx context.Context, descriptors []Descriptor) (int, error)
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, id string) (*Session, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*Session, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// Clear stops every running pipeline and waits for each loop to drain.
	Clear(ctx context.Context) error
}

type service struct {
	store Store
	deps  Dependencies
	log   zerolog.Logger

	initMu sync.Mutex
}

// NewService creates a session registry backed by store.
func NewService(store Store, deps Dependencies, log zerolog.Logger) Service {
	deps.Logger = log
	return &service{
		store: store,
		deps:  deps,
		log:   log.With().Str("component", "session-registry").Logger(),
	}
}

func (s *service) Initialize(ctx context.Context, descriptors []Descriptor) (int, error) {
	ctx, span := observability.StartSessionSpan(ctx, "initialize", "")
	defer span.End()

	s.initMu.Lock()
	defer s.initMu.Unlock()

	created := 0
	for _, desc := range descriptors {
		if desc.DeviceID == "" {
			s.log.Warn().Str("device_name", desc.DeviceName).Msg("skipping device without id")
			continue
		}
		if _, err := s.store.GetByDevice(ctx, desc.DeviceID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			observability.RecordError(span, err)
			return created, err
		}

		id, err := idgen.SessionID()
		if err != nil {
			observability.RecordError(span, err)
			return created, fmt.Errorf("generate session id: %w", err)
		}

		sess := &Session{
			ID:         id,
			Descriptor: desc,
			Pipeline:   NewPipeline(id, desc, s.deps),
		}
		if err := s.store.Create(ctx, sess); err != nil {
			if errors.Is(err, ErrDeviceExists) {
				continue
			}
			observability.RecordError(span, err)
			return created, err
		}
		created++
		metrics.RegisteredSessions.Inc()

		s.log.Info().
			Str("session_id", id).
			Str("device_id", desc.DeviceID).
			Str("device_name", desc.DeviceName).
			Msg("session registered")
	}
	return created, nil
}

func (s *service) List(ctx context.Context) ([]Summary, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, sess.Pipeline.Summary())
	}
	return summaries, nil
}

func (s *service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

func (s *service) GetByDeviceID(ctx context.Context, deviceID string) (*Session, error) {
	return s.store.GetByDevice(ctx, deviceID)
}

func (s *service) Start(ctx context.Context, id string) error {
	return s.lifecycle(ctx, "start", id, (*Pipeline).Start)
}

func (s *service) Stop(ctx context.Context, id string) error {
	return s.lifecycle(ctx, "stop", id, (*Pipeline).Stop)
}

func (s *service) Restart(ctx context.Context, id string) error {
	return s.lifecycle(ctx, "restart", id, (*Pipeline).Restart)
}

func (s *service) Delete(ctx context.Context, id string) error {
	ctx, span := observability.StartSessionSpan(ctx, "delete", id)
	defer span.End()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := sess.Pipeline.Release(ctx); err != nil {
		observability.RecordError(span, err)
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		observability.RecordError(span, err)
		return err
	}
	metrics.RegisteredSessions.Dec()

	s.log.Info().Str("session_id", id).Str("device_id", sess.Descriptor.DeviceID).Msg("session deleted")
	return nil
}

func (s *service) Clear(ctx context.Context) error {
	ctx, span := observability.StartSessionSpan(ctx, "clear", "")
	defer span.End()

	sessions, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			if err := sess.Pipeline.Stop(ctx); err != nil && !errors.Is(err, ErrAlreadyStopped) {
				mu.Lock()
				errs = append(errs, fmt.Errorf("stop %s: %w", sess.ID, err))
				mu.Unlock()
			}
		}(sess)
	}
	wg.Wait()

	err = errors.Join(errs...)
	observability.RecordError(span, err)
	s.log.Info().Int("sessions", len(sessions)).Msg("all pipelines stopped")
	return err
}

func (s *service) lifecycle(ctx context.Context, op, id string, fn func(*Pipeline, context.Context) error) error {
	ctx, span := observability.StartSessionSpan(ctx, op, id)
	defer span.End()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(sess.Pipeline, ctx); err != nil {
		observability.RecordError(span, err)
		s.log.Warn().Err(err).Str("session_id", id).Str("operation", op).Msg("lifecycle operation rejected")
		return err
	}
	return nil
}
