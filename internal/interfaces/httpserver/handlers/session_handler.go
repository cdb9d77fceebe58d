package handlers

import (
	"context"

	"jan-server/services/vision-api/internal/domain/session"
	"jan-server/services/vision-api/internal/infrastructure/devices"
)

// DeviceCatalog is the device configuration source.
type DeviceCatalog interface {
	Current(ctx context.Context) (devices.Config, error)
	Sync(ctx context.Context) (devices.Config, error)
}

// SessionCloser disconnects the push subscribers of a session.
type SessionCloser interface {
	CloseSession(sessionID string)
}

// SessionHandler handles session registry requests.
type SessionHandler struct {
	service session.Service
	catalog DeviceCatalog
	live    SessionCloser
}

// NewSessionHandler creates a session handler. catalog and live may be nil.
func NewSessionHandler(service session.Service, catalog DeviceCatalog, live SessionCloser) *SessionHandler {
	return &SessionHandler{service: service, catalog: catalog, live: live}
}

// List returns one row per configured device, overlaid with the live fields
// of its session. Sessions without a configured device follow in
// registration order. An unreadable device configuration only drops the
// static fields.
func (h *SessionHandler) List(ctx context.Context) ([]map[string]any, error) {
	summaries, err := h.service.List(ctx)
	if err != nil {
		return nil, err
	}

	var configured []session.Descriptor
	if h.catalog != nil {
		if cfg, err := h.catalog.Current(ctx); err == nil {
			configured = cfg.Devices
		}
	}

	rows := make([]map[string]any, 0, len(configured)+len(summaries))
	byDevice := make(map[string]map[string]any, len(configured))
	for _, d := range configured {
		row := staticFields(d)
		if _, dup := byDevice[d.DeviceID]; dup {
			continue
		}
		byDevice[d.DeviceID] = row
		rows = append(rows, row)
	}

	for _, s := range summaries {
		row, ok := byDevice[s.DeviceID]
		if !ok {
			row = map[string]any{}
			rows = append(rows, row)
		}
		row["session_id"] = s.SessionID
		row["device_id"] = s.DeviceID
		row["device_name"] = s.DeviceName
		row["stream_url"] = s.StreamURL
		row["frame_count"] = s.FrameCount
		row["running"] = s.Running
		row["status"] = string(s.State)
		if s.LastError != "" {
			row["last_error"] = s.LastError
		}
	}
	return rows, nil
}

func staticFields(d session.Descriptor) map[string]any {
	row := make(map[string]any, len(d.Metadata)+5)
	for k, v := range d.Metadata {
		row[k] = v
	}
	row["device_id"] = d.DeviceID
	row["device_name"] = d.DeviceName
	row["stream_url"] = d.SourceURI
	row["horizontal_line_points"] = d.HorizontalLine
	row["vertical_line_points"] = d.VerticalLine
	return row
}

// Initialize registers sessions for the descriptors.
func (h *SessionHandler) Initialize(ctx context.Context, descriptors []session.Descriptor) (created int, total int, err error) {
	created, err = h.service.Initialize(ctx, descriptors)
	if err != nil {
		return 0, 0, err
	}
	summaries, err := h.service.List(ctx)
	if err != nil {
		return created, 0, err
	}
	return created, len(summaries), nil
}

func (h *SessionHandler) Get(ctx context.Context, id string) (session.Summary, error) {
	sess, err := h.service.Get(ctx, id)
	if err != nil {
		return session.Summary{}, err
	}
	return sess.Pipeline.Summary(), nil
}

func (h *SessionHandler) Start(ctx context.Context, id string) error {
	return h.service.Start(ctx, id)
}

func (h *SessionHandler) Stop(ctx context.Context, id string) error {
	return h.service.Stop(ctx, id)
}

func (h *SessionHandler) Restart(ctx context.Context, id string) error {
	return h.service.Restart(ctx, id)
}

// Delete removes the session and disconnects its status subscribers.
func (h *SessionHandler) Delete(ctx context.Context, id string) error {
	if err := h.service.Delete(ctx, id); err != nil {
		return err
	}
	if h.live != nil {
		h.live.CloseSession(id)
	}
	return nil
}
