package crossing

import "time"

// TimestampLayout is the UTC layout used for event timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Direction is the side-to-side movement that produced an event.
type Direction string

const (
	DirectionUpToDown    Direction = "up_to_down"
	DirectionDownToUp    Direction = "down_to_up"
	DirectionLeftToRight Direction = "left_to_right"
	DirectionRightToLeft Direction = "right_to_left"
)

// Description is the human readable label shown to operators.
func (d Direction) Description() string {
	switch d {
	case DirectionUpToDown:
		return "crossed UP to DOWN."
	case DirectionDownToUp:
		return "crossed DOWN to UP."
	case DirectionLeftToRight:
		return "crossed LEFT to RIGHT."
	case DirectionRightToLeft:
		return "crossed RIGHT to LEFT."
	default:
		return string(d)
	}
}

// Axis identifies which virtual line fired.
type Axis string

const (
	AxisHorizontal Axis = "horizontal"
	AxisVertical   Axis = "vertical"
)

// BoundingBox is a tracked box in frame pixels.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Centroid returns the box center, rounding toward negative infinity like
// the box coordinates themselves.
func (b BoundingBox) Centroid() Point {
	return Point{X: floorDiv(b.X1+b.X2, 2), Y: floorDiv(b.Y1+b.Y2, 2)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// TrackedBox is one tracker output row: x1,y1,x2,y2,track_id,confidence,class_id.
// Center is set by trackers that report sub-pixel corners; nil means the
// centroid of Box.
type TrackedBox struct {
	Box        BoundingBox
	Center     *Point
	TrackID    int64
	Confidence float64
	ClassID    int
	Label      string
}

// Observation is one sighting of a track that has not crossed yet.
type Observation struct {
	TrackID    int64       `json:"track_id"`
	ClassID    int         `json:"class_id"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bounding_box"`
	Centroid   Point       `json:"centroid"`
	Label      string      `json:"label"`
	FrameID    string      `json:"frame_id"`
}

// NewObservation builds an observation from a tracker row.
func NewObservation(box TrackedBox, frameID string) Observation {
	label := box.Label
	if label == "" {
		label = ClassLabel(box.ClassID)
	}
	centroid := box.Box.Centroid()
	if box.Center != nil {
		centroid = *box.Center
	}
	return Observation{
		TrackID:    box.TrackID,
		ClassID:    box.ClassID,
		Confidence: box.Confidence,
		Box:        box.Box,
		Centroid:   centroid,
		Label:      label,
		FrameID:    frameID,
	}
}

// Device identifies the source an event came from.
type Device struct {
	ID   string `json:"device_id"`
	Name string `json:"device_name"`
}

// Event is a one-shot crossing report. Values are never mutated after creation.
type Event struct {
	Device         Device        `json:"device"`
	OccurredAt     time.Time     `json:"-"`
	Timestamp      string        `json:"timestamp"`
	Axis           Axis          `json:"axis"`
	Direction      Direction     `json:"direction"`
	TrackID        int64         `json:"track_id"`
	Representative Observation   `json:"representative"`
	History        []Observation `json:"history"`
}
