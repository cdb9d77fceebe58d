package crossing

import "time"

// Detector turns per-frame track observations into directional crossing
// events. Each track reports at most once: after its first event the id is
// excluded for the lifetime of the detector.
type Detector struct {
	device   Device
	geometry Geometry
	history  *HistoryStore
	idleSpan uint64
	now      func() time.Time
}

// Option customizes a Detector.
type Option func(*Detector)

// WithIdleEviction drops unresolved tracks unseen for the given number of frames.
// Zero disables eviction.
func WithIdleEviction(frames uint64) Option {
	return func(d *Detector) {
		d.idleSpan = frames
	}
}

// WithClock overrides the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// NewDetector returns a detector with an empty history.
func NewDetector(device Device, geometry Geometry, opts ...Option) *Detector {
	d := &Detector{
		device:   device,
		geometry: geometry,
		history:  NewHistoryStore(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// History exposes the detector's store for inspection.
func (d *Detector) History() *HistoryStore {
	return d.history
}

type crossingHit struct {
	axis      Axis
	direction Direction
}

// Observe evaluates one observation taken on the given frame number and
// returns zero, one or two events (one per axis that fired).
func (d *Detector) Observe(obs Observation, frame uint64) []Event {
	if d.history.Crossed(obs.TrackID) {
		return nil
	}

	current := obs.Centroid
	previous := current
	if last, ok := d.history.Last(obs.TrackID); ok {
		previous = last.Centroid
	}
	d.history.Append(obs, frame)

	var hits []crossingHit
	if dir, ok := horizontalCrossing(previous.Y, current.Y, d.geometry.HorizontalY()); ok {
		hits = append(hits, crossingHit{axis: AxisHorizontal, direction: dir})
	}
	if dir, ok := verticalCrossing(previous.X, current.X, d.geometry.VerticalX()); ok {
		hits = append(hits, crossingHit{axis: AxisVertical, direction: dir})
	}
	if len(hits) == 0 {
		return nil
	}

	// Both axes share the history captured before it is cleared.
	history := d.history.Resolve(obs.TrackID)
	representative := maxConfidence(history)
	occurredAt := d.now().UTC()

	events := make([]Event, 0, len(hits))
	for _, hit := range hits {
		events = append(events, Event{
			Device:         d.device,
			OccurredAt:     occurredAt,
			Timestamp:      occurredAt.Format(TimestampLayout),
			Axis:           hit.axis,
			Direction:      hit.direction,
			TrackID:        obs.TrackID,
			Representative: representative,
			History:        history,
		})
	}
	return events
}

// EndFrame runs idle eviction after a frame has been fully processed and
// returns the number of evicted tracks.
func (d *Detector) EndFrame(frame uint64) int {
	return d.history.EvictIdle(frame, d.idleSpan)
}

func horizontalCrossing(prevY, curY, lineY int) (Direction, bool) {
	switch {
	case prevY < lineY && lineY <= curY:
		return DirectionUpToDown, true
	case prevY > lineY && lineY >= curY:
		return DirectionDownToUp, true
	}
	return "", false
}

func verticalCrossing(prevX, curX, lineX int) (Direction, bool) {
	switch {
	case prevX < lineX && lineX <= curX:
		return DirectionLeftToRight, true
	case prevX > lineX && lineX >= curX:
		return DirectionRightToLeft, true
	}
	return "", false
}

// maxConfidence returns the first observation with the highest confidence.
func maxConfidence(history []Observation) Observation {
	if len(history) == 0 {
		return Observation{}
	}
	best := history[0]
	for _, obs := range history[1:] {
		if obs.Confidence > best.Confidence {
			best = obs
		}
	}
	return best
}
