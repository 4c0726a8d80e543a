package privacy

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
)

// CreateRequestInput opens a new data-subject request.
type CreateRequestInput struct {
	Email string `json:"email" validate:"required,email"`
	Type  string `json:"type" validate:"required,oneof=export erasure"`
}

// RejectRequestInput records why a request was declined.
type RejectRequestInput struct {
	Notes string `json:"notes" validate:"required,max=2000"`
}

// RequestDTO is the API shape of a data-subject request.
type RequestDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Notes       *string    `json:"notes,omitempty"`
	ProcessedBy *uuid.UUID `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ExportOrder is one order in an export bundle.
type ExportOrder struct {
	OrderNumber   string            `json:"order_number"`
	Status        string            `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	TotalCents    int               `json:"total_cents"`
	Currency      string            `json:"currency"`
	PlacedAt      time.Time         `json:"placed_at"`
	Items         []ExportOrderItem `json:"items"`
}

// ExportOrderItem is one line of an exported order.
type ExportOrderItem struct {
	Title          string  `json:"title"`
	SKU            *string `json:"sku,omitempty"`
	Size           *string `json:"size,omitempty"`
	Color          *string `json:"color,omitempty"`
	VariantLabel   *string `json:"variant_label,omitempty"`
	Quantity       int     `json:"quantity"`
	UnitPriceCents int     `json:"unit_price_cents"`
}

// ExportSubscription reports the marketing list state for the subject.
type ExportSubscription struct {
	Subscribed     bool       `json:"subscribed"`
	SubscribedAt   *time.Time `json:"subscribed_at,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
}

// ExportBundle is everything held about a customer email.
type ExportBundle struct {
	Email        string              `json:"email"`
	GeneratedAt  time.Time           `json:"generated_at"`
	Orders       []ExportOrder       `json:"orders"`
	Subscription *ExportSubscription `json:"subscription,omitempty"`
}

// ErasureResult summarizes what an erasure run removed.
type ErasureResult struct {
	OrdersAnonymized   int64 `json:"orders_anonymized"`
	SubscribersDeleted int64 `json:"subscribers_deleted"`
}

func toRequestDTO(request *models.DataRequest) *RequestDTO {
	return &RequestDTO{
		ID:          request.ID,
		Email:       request.Email,
		Type:        request.Type.String(),
		Status:      request.Status.String(),
		Notes:       request.Notes,
		ProcessedBy: request.ProcessedBy,
		ProcessedAt: request.ProcessedAt,
		CreatedAt:   request.CreatedAt,
	}
}
