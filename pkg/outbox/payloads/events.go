package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/enums"
)

// OrderCreatedEvent signals a new checkout produced an order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	CustomerEmail string              `json:"customer_email"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int                 `json:"total_cents"`
	Currency      string              `json:"currency"`
}

// OrderPaidEvent is emitted when a payment confirmation lands.
type OrderPaidEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	PaymentID     string    `json:"payment_id,omitempty"`
	Provider      string    `json:"provider"`
	TotalCents    int       `json:"total_cents"`
	StockReduced  bool      `json:"stock_reduced"`
	PaidAt        time.Time `json:"paid_at"`
	CustomerEmail string    `json:"customer_email"`
}

// OrderPaymentFailedEvent is emitted when a gateway reports failure or expiry.
type OrderPaymentFailedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Provider    string    `json:"provider"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderRefundedEvent is emitted when a charge refund is applied to the order.
type OrderRefundedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	Provider      string    `json:"provider"`
	RefundedAt    time.Time `json:"refunded_at"`
	StockRestored bool      `json:"stock_restored"`
}

// OrderCanceledEvent is emitted whenever an order is cancelled.
type OrderCanceledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CanceledAt  time.Time `json:"canceled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// CampaignSentEvent reports a completed campaign send run.
type CampaignSentEvent struct {
	CampaignID     uuid.UUID `json:"campaign_id"`
	RecipientCount int       `json:"recipient_count"`
	FailureCount   int       `json:"failure_count"`
	SentAt         time.Time `json:"sent_at"`
}
