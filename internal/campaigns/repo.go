package campaigns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
)

// Repository persists campaigns and the subscriber list.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, campaign *models.Campaign) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context, status *enums.CampaignStatus) ([]models.Campaign, error)
	ListDue(ctx context.Context, now time.Time) ([]models.Campaign, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error

	UpsertSubscriber(ctx context.Context, sub *models.Subscriber) error
	FindSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	ActiveSubscribers(ctx context.Context) ([]models.Subscriber, error)
	UpdateSubscriber(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteSubscribersByEmail(ctx context.Context, email string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the default gorm-backed campaigns repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.WithContext(ctx).First(&campaign, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *repository) List(ctx context.Context, status *enums.CampaignStatus) ([]models.Campaign, error) {
	query := r.db.WithContext(ctx).Model(&models.Campaign{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.Campaign
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListDue(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	var rows []models.Campaign
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", enums.CampaignStatusScheduled, now).
		Order("scheduled_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Campaign{}, "id = ?", id).Error
}

func (r *repository) UpsertSubscriber(ctx context.Context, sub *models.Subscriber) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindSubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := r.db.WithContext(ctx).First(&sub, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ActiveSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := r.db.WithContext(ctx).
		Where("unsubscribed_at IS NULL").
		Order("created_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) UpdateSubscriber(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscriber{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) DeleteSubscribersByEmail(ctx context.Context, email string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("email = ?", email).
		Delete(&models.Subscriber{})
	return result.RowsAffected, result.Error
}
