package session

import (
	"jan-server/services/vision-api/internal/domain/crossing"
)

// State is the lifecycle state of a pipeline.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// StatusRunning is the status string pushed to live-feed subscribers while frames flow.
const StatusRunning = "Running"

// Descriptor describes one camera source as supplied by the device catalog.
type Descriptor struct {
	DeviceID       string            `json:"device_id" yaml:"device_id"`
	DeviceName     string            `json:"device_name" yaml:"device_name"`
	SourceURI      string            `json:"source_uri" yaml:"source_uri"`
	HorizontalLine crossing.LineSpec `json:"horizontal_line_points" yaml:"-"`
	VerticalLine   crossing.LineSpec `json:"vertical_line_points" yaml:"-"`
	// Metadata carries every other field of the device record untouched.
	Metadata map[string]any `json:"-" yaml:"-"`
}

// Session is one registered device together with its pipeline.
type Session struct {
	ID         string
	Descriptor Descriptor
	Pipeline   *Pipeline
}

// Summary is a point-in-time view of a session.
type Summary struct {
	SessionID  string `json:"session_id"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	StreamURL  string `json:"stream_url"`
	FrameCount uint64 `json:"frame_count"`
	Running    bool   `json:"running"`
	State      State  `json:"state"`
	LastError  string `json:"last_error,omitempty"`
}

// Status is the per-frame notification pushed to live-feed subscribers.
type Status struct {
	SessionID   string `json:"session_id"`
	FrameNumber uint64 `json:"frame_number"`
	Status      string `json:"status"`
}
