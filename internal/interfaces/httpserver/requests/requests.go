// Package requests contains HTTP request DTOs for the vision-api.
package requests

import "jan-server/services/vision-api/internal/domain/session"

// InitializeSessionsRequest registers sessions for the given devices. A bare
// JSON array of devices is accepted as well.
type InitializeSessionsRequest struct {
	Devices []session.Descriptor `json:"devices"`
}

// EventQuery filters GET /v1/events.
type EventQuery struct {
	DeviceID string `form:"device_id"`
	Limit    int    `form:"limit"`
}

// RecentQuery bounds GET /v1/events/recent.
type RecentQuery struct {
	Limit int `form:"limit"`
}
