package entities

import (
	"time"

	"jan-server/services/vision-api/internal/domain/crossing"
)

// CrossingEvent is the persisted representation of a line crossing.
type CrossingEvent struct {
	ID         string                 `gorm:"type:varchar(40);primaryKey"`
	DeviceID   string                 `gorm:"type:varchar(128);not null;index:idx_crossing_events_device_time,priority:1"`
	DeviceName string                 `gorm:"type:varchar(255)"`
	Axis       string                 `gorm:"type:varchar(16);not null"`
	Direction  string                 `gorm:"type:varchar(32);not null"`
	TrackID    int64                  `gorm:"not null"`
	ClassID    int                    `gorm:"not null"`
	Label      string                 `gorm:"type:varchar(64)"`
	Confidence float64                `gorm:"not null"`
	FrameID    string                 `gorm:"type:varchar(128)"`
	BoxX1      int                    `gorm:"column:box_x1"`
	BoxY1      int                    `gorm:"column:box_y1"`
	BoxX2      int                    `gorm:"column:box_x2"`
	BoxY2      int                    `gorm:"column:box_y2"`
	History    []crossing.Observation `gorm:"type:jsonb;serializer:json"`
	OccurredAt time.Time              `gorm:"not null;index:idx_crossing_events_device_time,priority:2,sort:desc"`
	CreatedAt  time.Time              `gorm:"autoCreateTime"`
}

func (CrossingEvent) TableName() string {
	return "crossing_events"
}
