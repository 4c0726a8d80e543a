package traffic

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/pagination"
)

// Repository persists storefront page views.
type Repository interface {
	Insert(ctx context.Context, event *models.TrafficEvent) error
	VisitorSeen(ctx context.Context, visitorID string) (bool, error)
	List(ctx context.Context, filters EventFilters) ([]models.TrafficEvent, error)
	Stats(ctx context.Context, since time.Time) (*StatsDTO, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the default gorm-backed traffic repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, event *models.TrafficEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) VisitorSeen(ctx context.Context, visitorID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TrafficEvent{}).
		Where("visitor_id = ?", visitorID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) List(ctx context.Context, filters EventFilters) ([]models.TrafficEvent, error) {
	query := r.db.WithContext(ctx).Model(&models.TrafficEvent{})
	if filters.Path != nil {
		query = query.Where("path = ?", *filters.Path)
	}
	if filters.VisitorID != nil {
		query = query.Where("visitor_id = ?", *filters.VisitorID)
	}

	cursor, err := pagination.ParseCursor(filters.Cursor)
	if err != nil {
		return nil, err
	}
	query = pagination.ApplyKeyset(query, cursor)

	var rows []models.TrafficEvent
	err = query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(filters.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Stats(ctx context.Context, since time.Time) (*StatsDTO, error) {
	base := r.db.WithContext(ctx).
		Model(&models.TrafficEvent{}).
		Where("created_at >= ?", since)

	var stats StatsDTO
	if err := base.Session(&gorm.Session{}).Count(&stats.PageViews).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Distinct("visitor_id").Count(&stats.UniqueVisitors).Error; err != nil {
		return nil, err
	}
	stats.Since = since
	return &stats, nil
}

func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.TrafficEvent{})
	return result.RowsAffected, result.Error
}
