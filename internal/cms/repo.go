package cms

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
)

// Repository persists storefront content entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.CMSContent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CMSContent, error)
	FindBySlug(ctx context.Context, slug string) (*models.CMSContent, error)
	List(ctx context.Context, kind *string, status *enums.CMSStatus) ([]models.CMSContent, error)
	ListDue(ctx context.Context, now time.Time) ([]models.CMSContent, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the default gorm-backed content repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.CMSContent) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CMSContent, error) {
	var entry models.CMSContent
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (*models.CMSContent, error) {
	var entry models.CMSContent
	if err := r.db.WithContext(ctx).First(&entry, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) List(ctx context.Context, kind *string, status *enums.CMSStatus) ([]models.CMSContent, error) {
	query := r.db.WithContext(ctx).Model(&models.CMSContent{})
	if kind != nil && *kind != "" {
		query = query.Where("kind = ?", *kind)
	}
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.CMSContent
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListDue(ctx context.Context, now time.Time) ([]models.CMSContent, error) {
	var rows []models.CMSContent
	err := r.db.WithContext(ctx).
		Where("status = ? AND visible_at IS NOT NULL AND visible_at <= ?", enums.CMSStatusScheduled, now).
		Order("visible_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.CMSContent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CMSContent{}, "id = ?", id).Error
}
