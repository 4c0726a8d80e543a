package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/enums"
	"github.com/kzarre/kzarre-backend/pkg/types"
)

// Order represents a customer order produced from a checkout.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          string              `gorm:"column:order_id;not null;uniqueIndex"`
	CustomerName     string              `gorm:"column:customer_name;not null"`
	CustomerEmail    string              `gorm:"column:customer_email;not null;index"`
	ShippingAddress  types.Address       `gorm:"column:shipping_address;type:jsonb"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	StockReduced     bool                `gorm:"column:stock_reduced;not null;default:false"`
	StripeSessionID  *string             `gorm:"column:stripe_session_id;index"`
	PayPalOrderID    *string             `gorm:"column:paypal_order_id;index"`
	PaymentID        *string             `gorm:"column:payment_id;index"`
	Currency         string              `gorm:"column:currency;type:text;not null;default:'usd'"`
	SubtotalCents    int                 `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents int                 `gorm:"column:delivery_fee_cents;not null;default:0"`
	TotalCents       int                 `gorm:"column:total_cents;not null"`
	FailureReason    *string             `gorm:"column:failure_reason"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	RefundedAt       *time.Time          `gorm:"column:refunded_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	ShippedAt        *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt      *time.Time          `gorm:"column:delivered_at"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
