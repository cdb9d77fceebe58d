package handlers

import (
	"context"

	"jan-server/services/vision-api/internal/domain/capture"
)

// CaptureQuerier reads crossing events back.
type CaptureQuerier interface {
	List(ctx context.Context, filter capture.Filter) ([]capture.Record, error)
	Recent(ctx context.Context, limit int) ([]capture.Record, error)
}

// EventHandler serves persisted and recent crossing events.
type EventHandler struct {
	captures CaptureQuerier
}

func NewEventHandler(captures CaptureQuerier) *EventHandler {
	return &EventHandler{captures: captures}
}

func (h *EventHandler) List(ctx context.Context, deviceID string, limit int) ([]capture.Record, error) {
	return h.captures.List(ctx, capture.Filter{DeviceID: deviceID, Limit: limit})
}

func (h *EventHandler) Recent(ctx context.Context, limit int) ([]capture.Record, error) {
	return h.captures.Recent(ctx, limit)
}
