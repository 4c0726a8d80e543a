package audit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/pagination"
)

// Repository persists audit settings rows and log entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LatestSettings(ctx context.Context) (*models.AuditSettings, error)
	InsertSettings(ctx context.Context, settings *models.AuditSettings) error
	AppendLog(ctx context.Context, entry *models.AuditLog) error
	ListLogs(ctx context.Context, filters LogFilters) ([]models.AuditLog, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the default gorm-backed audit repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) LatestSettings(ctx context.Context) (*models.AuditSettings, error) {
	var settings models.AuditSettings
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *repository) InsertSettings(ctx context.Context, settings *models.AuditSettings) error {
	return r.db.WithContext(ctx).Create(settings).Error
}

func (r *repository) AppendLog(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListLogs(ctx context.Context, filters LogFilters) ([]models.AuditLog, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.Resource != nil && *filters.Resource != "" {
		query = query.Where("resource = ?", *filters.Resource)
	}
	if filters.ActorID != nil {
		query = query.Where("actor_id = ?", *filters.ActorID)
	}

	cursor, err := pagination.ParseCursor(filters.Cursor)
	if err != nil {
		return nil, err
	}
	query = pagination.ApplyKeyset(query, cursor)

	var rows []models.AuditLog
	err = query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(filters.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}
