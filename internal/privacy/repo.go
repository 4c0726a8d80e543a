package privacy

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
)

// Repository persists data-subject requests and runs the export and
// erasure queries against customer data.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.DataRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DataRequest, error)
	List(ctx context.Context, status *enums.DataRequestStatus) ([]models.DataRequest, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error

	OrdersByEmail(ctx context.Context, email string) ([]models.Order, error)
	SubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error)
	AnonymizeOrders(ctx context.Context, email string, updates map[string]any) (int64, error)
	DeleteSubscribers(ctx context.Context, email string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the default gorm-backed privacy repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.DataRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DataRequest, error) {
	var request models.DataRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) List(ctx context.Context, status *enums.DataRequestStatus) ([]models.DataRequest, error) {
	query := r.db.WithContext(ctx).Model(&models.DataRequest{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.DataRequest
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.DataRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) OrdersByEmail(ctx context.Context, email string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_email = ?", email).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) SubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	var sub models.Subscriber
	if err := r.db.WithContext(ctx).First(&sub, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) AnonymizeOrders(ctx context.Context, email string, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_email = ?", email).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) DeleteSubscribers(ctx context.Context, email string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("email = ?", email).
		Delete(&models.Subscriber{})
	return result.RowsAffected, result.Error
}
