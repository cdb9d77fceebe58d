// Package detector talks to the detection/tracking sidecar. Each pipeline
// activation owns one remote tracker so track ids never leak across
// pipelines or restarts.
package detector

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/domain/crossing"
	"jan-server/services/vision-api/internal/domain/session"
)

// ClientConfig configures the sidecar client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Confidence float64
	Classes    []int
}

// Client creates remote trackers.
type Client struct {
	cfg  ClientConfig
	http *resty.Client
	log  zerolog.Logger
}

var _ session.TrackerFactory = (*Client)(nil)

type createTrackerRequest struct {
	SessionID  string  `json:"session_id"`
	Classes    []int   `json:"classes"`
	Confidence float64 `json:"confidence"`
}

type createTrackerResponse struct {
	TrackerID string `json:"tracker_id"`
}

type updateResponse struct {
	Tracks [][]float64 `json:"tracks"`
}

// NewClient builds the sidecar client.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Classes) == 0 {
		cfg.Classes = crossing.DefaultClasses
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("User-Agent", "Jan-Vision-API/1.0").
		SetTimeout(cfg.Timeout)

	return &Client{
		cfg:  cfg,
		http: httpClient,
		log:  log.With().Str("component", "detector-client").Logger(),
	}
}

// NewTracker allocates a fresh tracker on the sidecar.
func (c *Client) NewTracker(ctx context.Context, sessionID string) (session.Tracker, error) {
	var out createTrackerResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createTrackerRequest{
			SessionID:  sessionID,
			Classes:    c.cfg.Classes,
			Confidence: c.cfg.Confidence,
		}).
		SetResult(&out).
		Post("/v1/trackers")
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("detector error (%d): %s", resp.StatusCode(), resp.String())
	}
	if out.TrackerID == "" {
		return nil, fmt.Errorf("detector returned no tracker id")
	}

	c.log.Debug().Str("session_id", sessionID).Str("tracker_id", out.TrackerID).Msg("tracker created")
	return &remoteTracker{client: c, id: out.TrackerID}, nil
}

type remoteTracker struct {
	client *Client
	id     string
}

// Update sends one encoded frame and returns the tracked boxes.
func (t *remoteTracker) Update(ctx context.Context, frame []byte) ([]crossing.TrackedBox, error) {
	var out updateResponse
	resp, err := t.client.http.R().
		SetContext(ctx).
		SetFileReader("frame", "frame.jpg", bytes.NewReader(frame)).
		SetResult(&out).
		Post("/v1/trackers/" + t.id + "/update")
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("detector error (%d): %s", resp.StatusCode(), resp.String())
	}
	return parseTracks(out.Tracks)
}

// Close releases the tracker on the sidecar.
func (t *remoteTracker) Close(ctx context.Context) error {
	resp, err := t.client.http.R().
		SetContext(ctx).
		Delete("/v1/trackers/" + t.id)
	if err != nil {
		return fmt.Errorf("detector request failed: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != 404 {
		return fmt.Errorf("detector error (%d): %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// parseTracks decodes rows of x1,y1,x2,y2,track_id,confidence,class_id.
// Coordinates are floored to whole pixels; the centroid is floored from the
// unrounded corners.
func parseTracks(rows [][]float64) ([]crossing.TrackedBox, error) {
	boxes := make([]crossing.TrackedBox, 0, len(rows))
	for i, row := range rows {
		if len(row) < 7 {
			return nil, fmt.Errorf("track row %d has %d columns, want 7", i, len(row))
		}
		boxes = append(boxes, crossing.TrackedBox{
			Box: crossing.BoundingBox{
				X1: int(math.Floor(row[0])),
				Y1: int(math.Floor(row[1])),
				X2: int(math.Floor(row[2])),
				Y2: int(math.Floor(row[3])),
			},
			Center: &crossing.Point{
				X: int(math.Floor((row[0] + row[2]) / 2)),
				Y: int(math.Floor((row[1] + row[3]) / 2)),
			},
			TrackID:    int64(row[4]),
			Confidence: row[5],
			ClassID:    int(row[6]),
		})
	}
	return boxes, nil
}
