package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/domain/crossing"
	"jan-server/services/vision-api/internal/infrastructure/metrics"
	"jan-server/services/vision-api/internal/utils/idgen"
	"jan-server/services/vision-api/internal/utils/redact"
)

const (
	defaultStopTimeout = 10 * time.Second
	trackerCloseBudget = 5 * time.Second
)

// Dependencies are the collaborators shared by every pipeline. Frames, Events
// and Status are optional.
type Dependencies struct {
	Sources         SourceOpener
	Trackers        TrackerFactory
	Frames          FrameSink
	Events          EventSink
	Status          StatusSink
	StopTimeout     time.Duration
	TrackIdleFrames uint64
	Clock           func() time.Time
	Logger          zerolog.Logger
}

// activation holds everything owned by one Start..Stopped cycle.
type activation struct {
	cancel   context.CancelFunc
	done     chan struct{}
	source   *closeOnceSource
	tracker  *closeOnceTracker
	detector *crossing.Detector
}

// Pipeline runs the decode loop of one session. Lifecycle calls are
// serialized; snapshots only take a short read lock.
type Pipeline struct {
	sessionID string
	desc      Descriptor
	deps      Dependencies
	log       zerolog.Logger
	feed      *FrameFeed

	opMu sync.Mutex

	mu       sync.RWMutex
	state    State
	lastErr  string
	current  *activation
	released bool

	frames atomic.Uint64
}

// NewPipeline returns a stopped pipeline for the descriptor.
func NewPipeline(sessionID string, desc Descriptor, deps Dependencies) *Pipeline {
	if deps.StopTimeout <= 0 {
		deps.StopTimeout = defaultStopTimeout
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Pipeline{
		sessionID: sessionID,
		desc:      desc,
		deps:      deps,
		feed:      NewFrameFeed(),
		state:     StateStopped,
		log: deps.Logger.With().
			Str("component", "pipeline").
			Str("session_id", sessionID).
			Str("device_id", desc.DeviceID).
			Logger(),
	}
}

// SessionID returns the owning session id.
func (p *Pipeline) SessionID() string { return p.sessionID }

// Descriptor returns the device descriptor the pipeline was built from.
func (p *Pipeline) Descriptor() Descriptor { return p.desc }

// Feed returns the latest-frame feed.
func (p *Pipeline) Feed() *FrameFeed { return p.feed }

// FrameCount returns frames processed in the current or last activation.
func (p *Pipeline) FrameCount() uint64 { return p.frames.Load() }

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Summary returns a point-in-time snapshot.
func (p *Pipeline) Summary() Summary {
	p.mu.RLock()
	state, lastErr := p.state, p.lastErr
	p.mu.RUnlock()

	return Summary{
		SessionID:  p.sessionID,
		DeviceID:   p.desc.DeviceID,
		DeviceName: p.desc.DeviceName,
		StreamURL:  p.desc.SourceURI,
		FrameCount: p.frames.Load(),
		Running:    state == StateRunning,
		State:      state,
		LastError:  lastErr,
	}
}

// Start validates geometry, acquires a fresh tracker, opens the source and
// launches the decode loop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	return p.start(ctx)
}

// Stop cancels the decode loop and waits for it, up to the stop timeout.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	return p.stop(ctx)
}

// Restart drains the current loop, if any, and starts a new activation with
// empty track history.
func (p *Pipeline) Restart(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.stop(ctx); err != nil && !errors.Is(err, ErrAlreadyStopped) {
		return err
	}
	return p.start(ctx)
}

// Release stops the pipeline if needed and drops all per-session state.
// A released pipeline cannot be started again.
func (p *Pipeline) Release(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.stop(ctx); err != nil && !errors.Is(err, ErrAlreadyStopped) {
		return err
	}

	p.mu.Lock()
	p.released = true
	p.mu.Unlock()
	p.feed.Close()
	p.feed.Reset()
	return nil
}

func (p *Pipeline) start(ctx context.Context) error {
	p.mu.RLock()
	state, released := p.state, p.released
	p.mu.RUnlock()

	if released {
		return ErrNotFound
	}
	if state != StateStopped {
		return ErrAlreadyRunning
	}

	geometry, err := crossing.NewGeometry(p.desc.HorizontalLine, p.desc.VerticalLine)
	if err != nil {
		return &ConfigurationError{SessionID: p.sessionID, Err: err}
	}

	p.setState(StateStarting, "")

	tracker, err := p.deps.Trackers.NewTracker(ctx, p.sessionID)
	if err != nil {
		p.setState(StateStopped, err.Error())
		return &TransientSinkError{Sink: "tracker", Err: err}
	}

	source, err := p.deps.Sources.Open(ctx, p.desc.SourceURI)
	if err != nil {
		closeTracker(tracker, p.log)
		p.setState(StateStopped, err.Error())
		p.log.Error().Err(err).Str("source_uri", redact.URI(p.desc.SourceURI)).Msg("failed to open source")
		return &SourceOpenError{URI: p.desc.SourceURI, Err: err}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	act := &activation{
		cancel:  cancel,
		done:    make(chan struct{}),
		source:  &closeOnceSource{FrameSource: source},
		tracker: &closeOnceTracker{Tracker: tracker},
		detector: crossing.NewDetector(
			crossing.Device{ID: p.desc.DeviceID, Name: p.desc.DeviceName},
			geometry,
			crossing.WithIdleEviction(p.deps.TrackIdleFrames),
			crossing.WithClock(p.deps.Clock),
		),
	}

	p.frames.Store(0)
	p.feed.Reset()

	p.mu.Lock()
	p.current = act
	prev := p.transitionLocked(StateRunning)
	p.mu.Unlock()
	recordTransition(prev, StateRunning)
	metrics.ActivePipelines.Inc()

	go p.run(loopCtx, act)

	p.log.Info().Str("source_uri", redact.URI(p.desc.SourceURI)).Msg("pipeline started")
	return nil
}

func (p *Pipeline) stop(ctx context.Context) error {
	p.mu.Lock()
	act := p.current
	if act == nil || p.state == StateStopped {
		p.mu.Unlock()
		return ErrAlreadyStopped
	}
	prev := p.transitionLocked(StateStopping)
	p.mu.Unlock()
	recordTransition(prev, StateStopping)

	act.cancel()

	timer := time.NewTimer(p.deps.StopTimeout)
	defer timer.Stop()

	select {
	case <-act.done:
		p.log.Info().Uint64("frames", p.frames.Load()).Msg("pipeline stopped")
		return nil
	case <-timer.C:
	}

	// The loop is stuck in a blocking call. Release its resources so the
	// call unblocks, and detach it from this pipeline.
	metrics.StopOverruns.Inc()
	p.log.Warn().Dur("timeout", p.deps.StopTimeout).Msg("decode loop did not stop in time, forcing release")

	if err := act.source.Close(); err != nil {
		p.log.Warn().Err(err).Msg("failed to close source")
	}
	closeTracker(act.tracker, p.log)

	p.detach(act)
	return nil
}

func (p *Pipeline) run(ctx context.Context, act *activation) {
	defer p.finish(act)

	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := act.source.Next(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
			case errors.Is(err, io.EOF):
				p.log.Info().Msg("source reached end of stream")
			default:
				p.log.Error().Err(err).Msg("source read failed")
				p.recordError(err)
			}
			return
		}

		p.processFrame(ctx, act, frame)
	}
}

func (p *Pipeline) processFrame(ctx context.Context, act *activation, frame []byte) {
	// a frame read after stop belongs to no activation
	if ctx.Err() != nil {
		return
	}
	n := p.frames.Add(1)
	metrics.RecordFrame(p.desc.DeviceID)

	frameID := idgen.FrameID(p.deps.Clock())
	if p.deps.Frames != nil {
		if err := p.deps.Frames.StoreFrame(ctx, frameID, frame); err != nil {
			p.sinkFailure(ctx, "frame", err)
		}
	}
	p.feed.Publish(frame)

	started := time.Now()
	boxes, err := act.tracker.Update(ctx, frame)
	metrics.TrackerLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		p.sinkFailure(ctx, "tracker", err)
		boxes = nil
	}
	if ctx.Err() != nil {
		return
	}

	for _, box := range boxes {
		obs := crossing.NewObservation(box, frameID)
		for _, event := range act.detector.Observe(obs, n) {
			p.emit(ctx, event)
		}
	}
	act.detector.EndFrame(n)
	metrics.OpenTracks.WithLabelValues(p.desc.DeviceID).Set(float64(act.detector.History().Tracks()))

	if p.deps.Status != nil && ctx.Err() == nil {
		p.deps.Status.Push(ctx, Status{
			SessionID:   p.sessionID,
			FrameNumber: n,
			Status:      StatusRunning,
		})
	}
}

func (p *Pipeline) emit(ctx context.Context, event crossing.Event) {
	metrics.RecordCrossing(p.desc.DeviceID, string(event.Direction))
	p.log.Info().
		Int64("track_id", event.TrackID).
		Str("direction", string(event.Direction)).
		Str("label", event.Representative.Label).
		Msg(event.Direction.Description())

	if p.deps.Events == nil {
		return
	}
	if _, err := p.deps.Events.Insert(ctx, event); err != nil {
		p.sinkFailure(ctx, "event", err)
	}
}

func (p *Pipeline) finish(act *activation) {
	if err := act.source.Close(); err != nil {
		p.log.Warn().Err(err).Msg("failed to close source")
	}
	closeTracker(act.tracker, p.log)

	p.detach(act)

	metrics.ActivePipelines.Dec()
	metrics.OpenTracks.DeleteLabelValues(p.desc.DeviceID)
	close(act.done)
}

func (p *Pipeline) sinkFailure(ctx context.Context, sink string, err error) {
	if ctx.Err() != nil {
		return
	}
	metrics.RecordSinkFailure(sink)
	p.log.Warn().Err(&TransientSinkError{Sink: sink, Err: err}).Uint64("frame", p.frames.Load()).Msg("sink call failed")
}

func (p *Pipeline) recordError(err error) {
	p.mu.Lock()
	p.lastErr = err.Error()
	p.mu.Unlock()
}

// detach moves the pipeline to Stopped if act is still its current activation.
func (p *Pipeline) detach(act *activation) {
	p.mu.Lock()
	if p.current != act {
		p.mu.Unlock()
		return
	}
	p.current = nil
	prev := p.transitionLocked(StateStopped)
	p.mu.Unlock()
	recordTransition(prev, StateStopped)
	p.feed.Close()
}

// setState records a transition. A non-empty lastErr replaces the stored error;
// entering Starting clears it.
func (p *Pipeline) setState(next State, lastErr string) {
	p.mu.Lock()
	prev := p.transitionLocked(next)
	if next == StateStarting {
		p.lastErr = ""
	}
	if lastErr != "" {
		p.lastErr = lastErr
	}
	p.mu.Unlock()
	recordTransition(prev, next)
}

func (p *Pipeline) transitionLocked(next State) State {
	prev := p.state
	p.state = next
	return prev
}

func recordTransition(prev, next State) {
	if prev != next {
		metrics.RecordTransition(string(prev), string(next))
	}
}

func closeTracker(t Tracker, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), trackerCloseBudget)
	defer cancel()
	if err := t.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to release tracker")
	}
}

type closeOnceSource struct {
	FrameSource
	once sync.Once
	err  error
}

func (s *closeOnceSource) Close() error {
	s.once.Do(func() {
		s.err = s.FrameSource.Close()
	})
	return s.err
}

type closeOnceTracker struct {
	Tracker
	once sync.Once
	err  error
}

func (t *closeOnceTracker) Close(ctx context.Context) error {
	t.once.Do(func() {
		t.err = t.Tracker.Close(ctx)
	})
	return t.err
}
