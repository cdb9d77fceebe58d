package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/domain/session"
)

// MemoryStore is a mutex-based in-memory session store. Sessions are rebuilt
// from the device catalog on every process start.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*session.Session
	deviceIndex map[string]string // device ID -> session ID
	order       []string
	log         zerolog.Logger
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*session.Session),
		deviceIndex: make(map[string]string),
		log:         log.With().Str("component", "session-store").Logger(),
	}
}

// Create stores a new session.
func (s *MemoryStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deviceIndex[sess.Descriptor.DeviceID]; exists {
		return session.ErrDeviceExists
	}

	s.sessions[sess.ID] = sess
	s.deviceIndex[sess.Descriptor.DeviceID] = sess.ID
	s.order = append(s.order, sess.ID)
	return nil
}

// Get retrieves a session by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

// GetByDevice retrieves the session owning a device.
func (s *MemoryStore) GetByDevice(ctx context.Context, deviceID string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.deviceIndex[deviceID]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s.sessions[id], nil
}

// Delete removes a session by ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return session.ErrNotFound
	}

	delete(s.sessions, id)
	delete(s.deviceIndex, sess.Descriptor.DeviceID)
	for i, sid := range s.order {
		if sid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.log.Debug().Str("session_id", id).Msg("session removed from store")
	return nil
}

// List returns all sessions in registration order.
func (s *MemoryStore) List(ctx context.Context) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*session.Session, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.sessions[id])
	}
	return result, nil
}

// Count returns the number of stored sessions.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
