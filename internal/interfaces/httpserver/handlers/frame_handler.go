package handlers

import "context"

// FrameLoader reads persisted frames.
type FrameLoader interface {
	LoadFrame(ctx context.Context, frameID string) ([]byte, string, error)
}

// FrameHandler serves frames referenced by crossing events.
type FrameHandler struct {
	frames FrameLoader
}

func NewFrameHandler(frames FrameLoader) *FrameHandler {
	return &FrameHandler{frames: frames}
}

func (h *FrameHandler) Load(ctx context.Context, frameID string) ([]byte, string, error) {
	return h.frames.LoadFrame(ctx, frameID)
}
