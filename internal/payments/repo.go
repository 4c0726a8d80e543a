package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
)

// Repository resolves orders by their provider correlation fields and
// applies confirmation updates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderByStripeSession(ctx context.Context, sessionID string) (*models.Order, error)
	FindOrderByPayPalOrder(ctx context.Context, paypalOrderID string) (*models.Order, error)
	FindOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the default gorm-backed payments repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	err := lockOrderRow(r.db.WithContext(ctx)).
		Preload("Items").
		First(&order, query, arg).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// lockOrderRow takes FOR UPDATE on the resolved order so concurrent webhook
// deliveries for the same order serialize inside the confirmation
// transaction instead of both reading a pending status. The sqlite driver
// used in tests has no FOR UPDATE syntax and serializes writers on its own.
func lockOrderRow(q *gorm.DB) *gorm.DB {
	if q.Dialector.Name() == "sqlite" {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *repository) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindOrderByStripeSession(ctx context.Context, sessionID string) (*models.Order, error) {
	return r.findOne(ctx, "stripe_session_id = ?", sessionID)
}

func (r *repository) FindOrderByPayPalOrder(ctx context.Context, paypalOrderID string) (*models.Order, error) {
	return r.findOne(ctx, "paypal_order_id = ?", paypalOrderID)
}

func (r *repository) FindOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	return r.findOne(ctx, "payment_id = ?", paymentID)
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}
