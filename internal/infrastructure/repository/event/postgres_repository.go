package event

import (
	"context"

	"gorm.io/gorm"

	"jan-server/services/vision-api/internal/domain/capture"
	"jan-server/services/vision-api/internal/domain/crossing"
	"jan-server/services/vision-api/internal/infrastructure/database/entities"
	"jan-server/services/vision-api/internal/utils/platformerrors"
)

// PostgresRepository persists crossing events via GORM.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a repository backed by the provided DB.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores one record.
func (r *PostgresRepository) Insert(ctx context.Context, record capture.Record) error {
	entity := toEntity(record)
	if err := r.db.WithContext(ctx).Create(&entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to insert crossing event",
			err,
			"4f1d7c2a-8e3b-4b6f-9a51-0c7e2d9b3a64",
		)
	}
	return nil
}

// List returns the newest records, optionally for one device.
func (r *PostgresRepository) List(ctx context.Context, filter capture.Filter) ([]capture.Record, error) {
	query := r.db.WithContext(ctx).Model(&entities.CrossingEvent{})
	if filter.DeviceID != "" {
		query = query.Where("device_id = ?", filter.DeviceID)
	}

	var rows []entities.CrossingEvent
	err := query.Order("occurred_at DESC").Limit(filter.Limit).Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list crossing events",
			err,
			"b27e90c4-1a5d-4c83-a6f2-5d8e1b4c7f09",
		)
	}

	records := make([]capture.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRecord(row))
	}
	return records, nil
}

func toEntity(record capture.Record) entities.CrossingEvent {
	return entities.CrossingEvent{
		ID:         record.ID,
		DeviceID:   record.DeviceID,
		DeviceName: record.DeviceName,
		Axis:       string(record.Axis),
		Direction:  string(record.Direction),
		TrackID:    record.TrackID,
		ClassID:    record.ClassID,
		Label:      record.Label,
		Confidence: record.Confidence,
		FrameID:    record.FrameID,
		BoxX1:      record.Box.X1,
		BoxY1:      record.Box.Y1,
		BoxX2:      record.Box.X2,
		BoxY2:      record.Box.Y2,
		History:    record.History,
		OccurredAt: record.OccurredAt,
	}
}

func toRecord(entity entities.CrossingEvent) capture.Record {
	return capture.Record{
		ID:         entity.ID,
		DeviceID:   entity.DeviceID,
		DeviceName: entity.DeviceName,
		Timestamp:  entity.OccurredAt.UTC().Format(crossing.TimestampLayout),
		Axis:       crossing.Axis(entity.Axis),
		Direction:  crossing.Direction(entity.Direction),
		TrackID:    entity.TrackID,
		ClassID:    entity.ClassID,
		Label:      entity.Label,
		Confidence: entity.Confidence,
		FrameID:    entity.FrameID,
		Box: crossing.BoundingBox{
			X1: entity.BoxX1,
			Y1: entity.BoxY1,
			X2: entity.BoxX2,
			Y2: entity.BoxY2,
		},
		History:    entity.History,
		OccurredAt: entity.OccurredAt.UTC(),
	}
}
