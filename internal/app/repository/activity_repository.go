package repository

import (
	"context"
	"time"

	"github.com/shortspace/shortspace/internal/app/model"
	"gorm.io/gorm"
)

// ActivityRepository defines the data access contract for activity events.
type ActivityRepository interface {
	Insert(ctx context.Context, event *model.ActivityEvent) error
	// DeleteOlderThan prunes events past the retention window and reports
	// how many rows went away.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository returns a GORM-backed ActivityRepository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Insert(ctx context.Context, event *model.ActivityEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *activityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&model.ActivityEvent{})
	return result.RowsAffected, result.Error
}
