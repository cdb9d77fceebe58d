package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/vision-api/internal/domain/crossing"
	"jan-server/services/vision-api/internal/domain/session"
)

const waitFor = 2 * time.Second

type pipelineHarness struct {
	opener   *fakeOpener
	trackers *fakeTrackers
	events   *recordingEvents
	status   *recordingStatus
	deps     session.Dependencies
}

func newHarness(script [][]crossing.TrackedBox) *pipelineHarness {
	h := &pipelineHarness{
		opener:   newFakeOpener(),
		trackers: &fakeTrackers{script: script},
		events:   &recordingEvents{events: make(chan crossing.Event, 16)},
		status:   &recordingStatus{statuses: make(chan session.Status, 64)},
	}
	h.deps = session.Dependencies{
		Sources:     h.opener,
		Trackers:    h.trackers,
		Events:      h.events,
		Status:      h.status,
		StopTimeout: time.Second,
		Logger:      zerolog.Nop(),
	}
	return h
}

func (h *pipelineHarness) nextSource(t *testing.T) *fakeSource {
	t.Helper()
	select {
	case src := <-h.opener.opened:
		return src
	case <-time.After(waitFor):
		t.Fatal("source was not opened")
		return nil
	}
}

func (h *pipelineHarness) nextEvent(t *testing.T) crossing.Event {
	t.Helper()
	select {
	case ev := <-h.events.events:
		return ev
	case <-time.After(waitFor):
		t.Fatal("no crossing event")
		return crossing.Event{}
	}
}

func (h *pipelineHarness) waitStatus(t *testing.T, frame uint64) session.Status {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case st := <-h.status.statuses:
			if st.FrameNumber == frame {
				return st
			}
		case <-deadline:
			t.Fatalf("no status for frame %d", frame)
			return session.Status{}
		}
	}
}

func TestPipelineStartStop(t *testing.T) {
	h := newHarness(nil)
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	assert.Equal(t, session.StateStopped, p.State())
	require.NoError(t, p.Start(ctx))
	assert.Equal(t, session.StateRunning, p.State())

	src := h.nextSource(t)
	src.frames <- []byte("frame-1")
	src.frames <- []byte("frame-2")

	st := h.waitStatus(t, 2)
	assert.Equal(t, "vsess_1", st.SessionID)
	assert.Equal(t, session.StatusRunning, st.Status)
	assert.Equal(t, uint64(2), p.FrameCount())

	latest, ok := p.Feed().Latest()
	require.True(t, ok)
	assert.Equal(t, []byte("frame-2"), latest)

	require.NoError(t, p.Stop(ctx))
	assert.Equal(t, session.StateStopped, p.State())
	assert.True(t, src.isClosed())
	assert.True(t, h.trackers.last().closed.Load())

	assert.ErrorIs(t, p.Stop(ctx), session.ErrAlreadyStopped)
}

func TestPipelineStartRejectsRunning(t *testing.T) {
	h := newHarness(nil)
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	h.nextSource(t)

	assert.ErrorIs(t, p.Start(ctx), session.ErrAlreadyRunning)
	assert.Equal(t, 1, h.trackers.count())
	require.NoError(t, p.Stop(ctx))
}

func TestPipelineStartRejectsMissingGeometry(t *testing.T) {
	h := newHarness(nil)
	desc := validDescriptor("cam-1")
	desc.VerticalLine = crossing.LineSpec{}
	p := session.NewPipeline("vsess_1", desc, h.deps)

	err := p.Start(context.Background())
	var cfgErr *session.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "vsess_1", cfgErr.SessionID)
	assert.Equal(t, session.StateStopped, p.State())
	assert.Zero(t, h.trackers.count())
}

func TestPipelineStartSourceOpenFailure(t *testing.T) {
	h := newHarness(nil)
	h.opener.openFn = func(ctx context.Context, uri string) (session.FrameSource, error) {
		return nil, errors.New("connection refused")
	}
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)

	err := p.Start(context.Background())
	var openErr *session.SourceOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "rtsp://camera.local/cam-1", openErr.URI)
	assert.Equal(t, session.StateStopped, p.State())
	assert.True(t, h.trackers.last().closed.Load())
	assert.Equal(t, "connection refused", p.Summary().LastError)
}

func TestPipelineStartTrackerFailure(t *testing.T) {
	h := newHarness(nil)
	h.trackers.err = errors.New("detector offline")
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)

	err := p.Start(context.Background())
	var sinkErr *session.TransientSinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "tracker", sinkErr.Sink)
	assert.Equal(t, session.StateStopped, p.State())
}

func TestPipelineEmitsCrossing(t *testing.T) {
	h := newHarness([][]crossing.TrackedBox{
		{box(100, 300, 7, 0.6)},
		{box(100, 400, 7, 0.9)},
	})
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	src := h.nextSource(t)
	src.frames <- []byte("f1")
	src.frames <- []byte("f2")

	ev := h.nextEvent(t)
	assert.Equal(t, crossing.DirectionUpToDown, ev.Direction)
	assert.Equal(t, int64(7), ev.TrackID)
	assert.Equal(t, "cam-1", ev.Device.ID)
	assert.Equal(t, 0.9, ev.Representative.Confidence)
	assert.Equal(t, "car", ev.Representative.Label)
	assert.Len(t, ev.History, 2)
	assert.NotEmpty(t, ev.Representative.FrameID)

	require.NoError(t, p.Stop(ctx))
}

func TestPipelineRestartResetsHistory(t *testing.T) {
	h := newHarness([][]crossing.TrackedBox{
		{box(100, 300, 7, 0.8)},
		{box(100, 400, 7, 0.8)},
	})
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	src := h.nextSource(t)
	src.frames <- []byte("f1")
	src.frames <- []byte("f2")
	first := h.nextEvent(t)
	assert.Equal(t, int64(7), first.TrackID)

	require.NoError(t, p.Restart(ctx))
	assert.True(t, src.isClosed())
	assert.Equal(t, 2, h.trackers.count())
	assert.Equal(t, uint64(0), p.FrameCount())

	src = h.nextSource(t)
	src.frames <- []byte("f1")
	src.frames <- []byte("f2")
	second := h.nextEvent(t)
	assert.Equal(t, int64(7), second.TrackID)
	assert.Equal(t, crossing.DirectionUpToDown, second.Direction)

	require.NoError(t, p.Stop(ctx))
}

func TestPipelineRestartFromStopped(t *testing.T) {
	h := newHarness(nil)
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	require.NoError(t, p.Restart(ctx))
	h.nextSource(t)
	assert.Equal(t, session.StateRunning, p.State())
	require.NoError(t, p.Stop(ctx))
}

func TestPipelineEndOfStream(t *testing.T) {
	h := newHarness(nil)
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	src := h.nextSource(t)
	src.frames <- []byte("f1")
	close(src.frames)

	assert.Eventually(t, func() bool {
		return p.State() == session.StateStopped
	}, waitFor, 10*time.Millisecond)
	assert.True(t, src.isClosed())
	assert.True(t, h.trackers.last().closed.Load())
	assert.Equal(t, uint64(1), p.FrameCount())
	assert.ErrorIs(t, p.Stop(ctx), session.ErrAlreadyStopped)
}

func TestPipelineFrameSinkFailureIsNotFatal(t *testing.T) {
	h := newHarness(nil)
	frames := &failingFrames{}
	h.deps.Frames = frames
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	src := h.nextSource(t)
	src.frames <- []byte("f1")
	src.frames <- []byte("f2")

	h.waitStatus(t, 2)
	assert.Equal(t, int32(2), frames.calls.Load())
	assert.Equal(t, session.StateRunning, p.State())
	require.NoError(t, p.Stop(ctx))
}

func TestPipelineStopForcesStuckSource(t *testing.T) {
	h := newHarness(nil)
	stuck := newFakeSource()
	stuck.ignoreCtx = true
	h.opener.openFn = func(ctx context.Context, uri string) (session.FrameSource, error) {
		return stuck, nil
	}
	h.deps.StopTimeout = 50 * time.Millisecond
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Stop(ctx))

	assert.Equal(t, session.StateStopped, p.State())
	assert.True(t, stuck.isClosed())
	assert.True(t, h.trackers.last().closed.Load())
}

func TestPipelineReleaseBlocksStart(t *testing.T) {
	h := newHarness(nil)
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	h.nextSource(t)
	require.NoError(t, p.Release(ctx))
	assert.Equal(t, session.StateStopped, p.State())

	assert.ErrorIs(t, p.Start(ctx), session.ErrNotFound)
	// releasing a stopped pipeline is fine
	assert.NoError(t, p.Release(ctx))
}

func TestPipelineSummary(t *testing.T) {
	h := newHarness(nil)
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)

	sum := p.Summary()
	assert.Equal(t, "vsess_1", sum.SessionID)
	assert.Equal(t, "cam-1", sum.DeviceID)
	assert.Equal(t, "Gate cam-1", sum.DeviceName)
	assert.Equal(t, "rtsp://camera.local/cam-1", sum.StreamURL)
	assert.False(t, sum.Running)
	assert.Equal(t, session.StateStopped, sum.State)
}

func waitClosed(t *testing.T, ch <-chan []byte) {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("feed subscriber was not closed")
		}
	}
}

func TestPipelineStopClosesFeedSubscribers(t *testing.T) {
	h := newHarness(nil)
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	src := h.nextSource(t)
	frames, cancel := p.Feed().Subscribe()
	defer cancel()

	src.frames <- []byte("f1")
	require.NoError(t, p.Stop(ctx))
	waitClosed(t, frames)
}

func TestPipelineReleaseClosesFeedSubscribers(t *testing.T) {
	h := newHarness(nil)
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	h.nextSource(t)
	frames, cancel := p.Feed().Subscribe()
	defer cancel()

	require.NoError(t, p.Release(ctx))
	waitClosed(t, frames)
}

func TestPipelineEndOfStreamClosesFeedSubscribers(t *testing.T) {
	h := newHarness(nil)
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)

	require.NoError(t, p.Start(context.Background()))
	src := h.nextSource(t)
	frames, cancel := p.Feed().Subscribe()
	defer cancel()

	close(src.frames)
	waitClosed(t, frames)
	assert.Equal(t, session.StateStopped, p.State())
}

func TestPipelineIgnoresFrameReadAfterStop(t *testing.T) {
	h := newHarness(nil)
	h.deps.StopTimeout = 50 * time.Millisecond
	gated := &gatedSource{gate: make(chan struct{})}
	h.opener.openFn = func(context.Context, string) (session.FrameSource, error) {
		return gated, nil
	}
	p := session.NewPipeline("vsess_1", validDescriptor("cam-1"), h.deps)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Stop(ctx))
	require.Equal(t, session.StateStopped, p.State())

	// the detached loop wakes up with a frame it must drop
	close(gated.gate)
	assert.Never(t, func() bool { return p.FrameCount() != 0 }, 200*time.Millisecond, 10*time.Millisecond)
	_, ok := p.Feed().Latest()
	assert.False(t, ok)
}
