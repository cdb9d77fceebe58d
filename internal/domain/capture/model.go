package capture

import (
	"time"

	"jan-server/services/vision-api/internal/domain/crossing"
)

// Record is a persisted crossing event.
type Record struct {
	ID         string                 `json:"id"`
	DeviceID   string                 `json:"device_id"`
	DeviceName string                 `json:"device_name"`
	Timestamp  string                 `json:"timestamp"`
	Axis       crossing.Axis          `json:"axis"`
	Direction  crossing.Direction     `json:"direction"`
	TrackID    int64                  `json:"track_id"`
	ClassID    int                    `json:"class_id"`
	Label      string                 `json:"label"`
	Confidence float64                `json:"confidence"`
	FrameID    string                 `json:"frame_id"`
	Box        crossing.BoundingBox   `json:"bounding_box"`
	History    []crossing.Observation `json:"history,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Notification is the payload pushed to capture subscribers.
type Notification struct {
	DeviceName string  `json:"device_name"`
	DeviceID   string  `json:"device_id"`
	Timestamp  string  `json:"timestamp"`
	Direction  string  `json:"direction"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	FrameID    string  `json:"frame_id"`
}

// Filter narrows a List query.
type Filter struct {
	DeviceID string
	Limit    int
}

// FromEvent flattens an event around its representative observation.
func FromEvent(id string, ev crossing.Event) Record {
	rep := ev.Representative
	return Record{
		ID:         id,
		DeviceID:   ev.Device.ID,
		DeviceName: ev.Device.Name,
		Timestamp:  ev.Timestamp,
		Axis:       ev.Axis,
		Direction:  ev.Direction,
		TrackID:    ev.TrackID,
		ClassID:    rep.ClassID,
		Label:      rep.Label,
		Confidence: rep.Confidence,
		FrameID:    rep.FrameID,
		Box:        rep.Box,
		History:    ev.History,
		OccurredAt: ev.OccurredAt,
	}
}

// Notification returns the subscriber payload for the record.
func (r Record) Notification() Notification {
	return Notification{
		DeviceName: r.DeviceName,
		DeviceID:   r.DeviceID,
		Timestamp:  r.Timestamp,
		Direction:  r.Direction.Description(),
		Label:      r.Label,
		Confidence: r.Confidence,
		FrameID:    r.FrameID,
	}
}
