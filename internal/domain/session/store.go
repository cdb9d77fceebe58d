package session

import "context"

// Store holds registered sessions. Implementations return ErrNotFound for
// unknown ids and ErrDeviceExists when a device already has a session.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, sess *Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*Session, error)

	// GetByDevice retrieves the session owning a device.
	GetByDevice(ctx context.Context, deviceID string) (*Session, error)

	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error

	// List returns all sessions in registration order.
	List(ctx context.Context) ([]*Session, error)
}
