// Package responses contains HTTP response DTOs for the vision-api.
package responses

import "jan-server/services/vision-api/internal/domain/capture"

// ErrorResponse mirrors platformerrors.HTTPErrorResponse for API docs.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// SessionActionResponse is returned by lifecycle operations.
type SessionActionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// InitializeResponse reports how many sessions an initialize call created.
type InitializeResponse struct {
	Created  int `json:"created"`
	Sessions int `json:"sessions"`
}

// DeleteSessionResponse confirms a removal.
type DeleteSessionResponse struct {
	SessionID string `json:"session_id"`
	Deleted   bool   `json:"deleted"`
}

// EventListResponse wraps persisted crossing events.
type EventListResponse struct {
	Object string           `json:"object"`
	Data   []capture.Record `json:"data"`
}

// NewEventListResponse never returns a nil data slice.
func NewEventListResponse(records []capture.Record) EventListResponse {
	if records == nil {
		records = []capture.Record{}
	}
	return EventListResponse{Object: "list", Data: records}
}
