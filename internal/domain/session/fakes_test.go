package session_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"jan-server/services/vision-api/internal/domain/crossing"
	"jan-server/services/vision-api/internal/domain/session"
)

type fakeSource struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	ignoreCtx bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (s *fakeSource) Next(ctx context.Context) ([]byte, error) {
	if s.ignoreCtx {
		<-s.closed
		return nil, errors.New("source closed")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, errors.New("source closed")
	case frame, ok := <-s.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	}
}

func (s *fakeSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeOpener struct {
	openFn func(ctx context.Context, uri string) (session.FrameSource, error)
	opened chan *fakeSource
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{opened: make(chan *fakeSource, 16)}
}

func (o *fakeOpener) Open(ctx context.Context, uri string) (session.FrameSource, error) {
	if o.openFn != nil {
		return o.openFn(ctx, uri)
	}
	src := newFakeSource()
	o.opened <- src
	return src, nil
}

// fakeTracker replays one scripted box list per update call.
type fakeTracker struct {
	mu     sync.Mutex
	script [][]crossing.TrackedBox
	calls  int
	closed atomic.Bool
}

func (t *fakeTracker) Update(ctx context.Context, frame []byte) ([]crossing.TrackedBox, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.calls >= len(t.script) {
		t.calls++
		return nil, nil
	}
	boxes := t.script[t.calls]
	t.calls++
	return boxes, nil
}

func (t *fakeTracker) Close(ctx context.Context) error {
	t.closed.Store(true)
	return nil
}

type fakeTrackers struct {
	mu       sync.Mutex
	script   [][]crossing.TrackedBox
	err      error
	trackers []*fakeTracker
}

func (f *fakeTrackers) NewTracker(ctx context.Context, sessionID string) (session.Tracker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t := &fakeTracker{script: f.script}
	f.trackers = append(f.trackers, t)
	return t, nil
}

func (f *fakeTrackers) last() *fakeTracker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.trackers) == 0 {
		return nil
	}
	return f.trackers[len(f.trackers)-1]
}

func (f *fakeTrackers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.trackers)
}

type recordingEvents struct {
	events chan crossing.Event
}

func (r *recordingEvents) Insert(ctx context.Context, event crossing.Event) (string, error) {
	r.events <- event
	return "evt_test", nil
}

type recordingStatus struct {
	statuses chan session.Status
}

func (r *recordingStatus) Push(ctx context.Context, status session.Status) {
	select {
	case r.statuses <- status:
	default:
	}
}

type failingFrames struct {
	calls atomic.Int32
}

func (f *failingFrames) StoreFrame(ctx context.Context, frameID string, data []byte) error {
	f.calls.Add(1)
	return errors.New("bucket unavailable")
}

func box(cx, cy int, trackID int64, confidence float64) crossing.TrackedBox {
	return crossing.TrackedBox{
		Box:        crossing.BoundingBox{X1: cx - 10, Y1: cy - 10, X2: cx + 10, Y2: cy + 10},
		TrackID:    trackID,
		Confidence: confidence,
		ClassID:    2,
	}
}

func validDescriptor(deviceID string) session.Descriptor {
	return session.Descriptor{
		DeviceID:       deviceID,
		DeviceName:     "Gate " + deviceID,
		SourceURI:      "rtsp://camera.local/" + deviceID,
		HorizontalLine: crossing.LineSpec{Points: []crossing.Point{{X: 0, Y: 360}, {X: 1280, Y: 360}}},
		VerticalLine:   crossing.LineSpec{Points: []crossing.Point{{X: 640, Y: 0}, {X: 640, Y: 720}}},
	}
}

// gatedSource hands out one frame per gate signal and ignores cancellation,
// like a decoder blocked on the network.
type gatedSource struct {
	gate chan struct{}
}

func (s *gatedSource) Next(ctx context.Context) ([]byte, error) {
	<-s.gate
	return []byte("late"), nil
}

func (s *gatedSource) Close() error { return nil }
