package session

import "sync"

// FrameFeed keeps the latest encoded frame of a pipeline and fans it out to
// pull subscribers. Slow subscribers lose intermediate frames, never block
// the publisher.
type FrameFeed struct {
	mu     sync.RWMutex
	latest []byte
	subs   map[int]chan []byte
	nextID int
}

// NewFrameFeed returns an empty feed.
func NewFrameFeed() *FrameFeed {
	return &FrameFeed{subs: make(map[int]chan []byte)}
}

// Publish replaces the latest frame and offers it to every subscriber.
func (f *FrameFeed) Publish(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.latest = frame
	for _, ch := range f.subs {
		select {
		case ch <- frame:
		default:
			// drop the stale frame and retry once
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

// Latest returns the most recent frame, if any.
func (f *FrameFeed) Latest() ([]byte, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.latest, f.latest != nil
}

// Subscribe registers a receiver. The returned cancel func must be called
// once the subscriber is done.
func (f *FrameFeed) Subscribe() (<-chan []byte, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan []byte, 1)
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Close ends every current subscription; receivers see their channel closed.
// The feed stays usable for later subscribers.
func (f *FrameFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
}

// Reset forgets the latest frame.
func (f *FrameFeed) Reset() {
	f.mu.Lock()
	f.latest = nil
	f.mu.Unlock()
}
