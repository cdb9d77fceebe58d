package session

import (
	"context"

	"jan-server/services/vision-api/internal/domain/crossing"
)

// FrameSource yields encoded frames in source order. Next returns io.EOF when
// the stream ends.
type FrameSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// SourceOpener opens a video source by URI.
type SourceOpener interface {
	Open(ctx context.Context, uri string) (FrameSource, error)
}

// Tracker is a detector/tracker instance scoped to a single pipeline activation.
type Tracker interface {
	Update(ctx context.Context, frame []byte) ([]crossing.TrackedBox, error)
	Close(ctx context.Context) error
}

// TrackerFactory mints fresh tracker instances.
type TrackerFactory interface {
	NewTracker(ctx context.Context, sessionID string) (Tracker, error)
}

// FrameSink persists raw frames under an opaque frame id.
type FrameSink interface {
	StoreFrame(ctx context.Context, frameID string, data []byte) error
}

// EventSink receives every emitted crossing event.
type EventSink interface {
	Insert(ctx context.Context, event crossing.Event) (string, error)
}

// StatusSink receives best-effort per-frame status notifications.
type StatusSink interface {
	Push(ctx context.Context, status Status)
}
