package crossing

type trackHistory struct {
	observations []Observation
	lastFrame    uint64
}

// HistoryStore keeps the observations of every unresolved track plus the set
// of tracks that already crossed. It belongs to exactly one pipeline
// activation and is not safe for concurrent use.
type HistoryStore struct {
	tracks  map[int64]*trackHistory
	crossed map[int64]struct{}
}

// NewHistoryStore returns an empty store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		tracks:  make(map[int64]*trackHistory),
		crossed: make(map[int64]struct{}),
	}
}

// Crossed reports whether the track already produced an event.
func (s *HistoryStore) Crossed(trackID int64) bool {
	_, ok := s.crossed[trackID]
	return ok
}

// Last returns the most recent observation of a track.
func (s *HistoryStore) Last(trackID int64) (Observation, bool) {
	h, ok := s.tracks[trackID]
	if !ok || len(h.observations) == 0 {
		return Observation{}, false
	}
	return h.observations[len(h.observations)-1], true
}

// Append records an observation seen on the given frame. Crossed tracks are ignored.
func (s *HistoryStore) Append(obs Observation, frame uint64) {
	if s.Crossed(obs.TrackID) {
		return
	}
	h, ok := s.tracks[obs.TrackID]
	if !ok {
		h = &trackHistory{}
		s.tracks[obs.TrackID] = h
	}
	h.observations = append(h.observations, obs)
	h.lastFrame = frame
}

// Len returns the number of observations held for a track.
func (s *HistoryStore) Len(trackID int64) int {
	if h, ok := s.tracks[trackID]; ok {
		return len(h.observations)
	}
	return 0
}

// Resolve removes the track's history, marks it crossed and returns the
// observations it had accumulated.
func (s *HistoryStore) Resolve(trackID int64) []Observation {
	var observations []Observation
	if h, ok := s.tracks[trackID]; ok {
		observations = h.observations
		delete(s.tracks, trackID)
	}
	s.crossed[trackID] = struct{}{}
	return observations
}

// Tracks returns the number of unresolved tracks.
func (s *HistoryStore) Tracks() int {
	return len(s.tracks)
}

// CrossedCount returns the number of tracks that already produced an event.
func (s *HistoryStore) CrossedCount() int {
	return len(s.crossed)
}

// EvictIdle drops unresolved tracks not seen during the last span frames and
// returns how many were dropped. Crossed ids are kept so one-shot semantics hold.
func (s *HistoryStore) EvictIdle(frame, span uint64) int {
	if span == 0 || frame <= span {
		return 0
	}
	cutoff := frame - span
	evicted := 0
	for id, h := range s.tracks {
		if h.lastFrame < cutoff {
			delete(s.tracks, id)
			evicted++
		}
	}
	return evicted
}
