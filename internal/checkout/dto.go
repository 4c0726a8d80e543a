package checkout

import (
	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	"github.com/kzarre/kzarre-backend/pkg/types"
)

// ItemInput is one requested line in a checkout. A variant is selected
// either directly by id or by its size/color combination.
type ItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Size      *string
	Color     *string
	Quantity  int
}

// CreateOrderInput is the validated checkout payload.
type CreateOrderInput struct {
	CustomerName    string
	CustomerEmail   string
	ShippingAddress types.Address
	PaymentMethod   enums.PaymentMethod
	Items           []ItemInput
}

// OrderSummary is the order shape returned from checkout.
type OrderSummary struct {
	ID               uuid.UUID           `json:"id"`
	OrderID          string              `json:"order_id"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	Currency         string              `json:"currency"`
	SubtotalCents    int                 `json:"subtotal_cents"`
	DeliveryFeeCents int                 `json:"delivery_fee_cents"`
	TotalCents       int                 `json:"total_cents"`
}

// CheckoutResult carries the created order plus any gateway handoff data.
type CheckoutResult struct {
	Order OrderSummary `json:"order"`
	// RedirectURL sends the customer to the provider's approval page for
	// gateway methods. Empty for cash on delivery.
	RedirectURL string `json:"redirect_url,omitempty"`
	// ProviderRef is the stripe session id or paypal order id.
	ProviderRef string `json:"provider_ref,omitempty"`
}

func toOrderSummary(order *models.Order) OrderSummary {
	return OrderSummary{
		ID:               order.ID,
		OrderID:          order.OrderID,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		PaymentMethod:    order.PaymentMethod,
		Currency:         order.Currency,
		SubtotalCents:    order.SubtotalCents,
		DeliveryFeeCents: order.DeliveryFeeCents,
		TotalCents:       order.TotalCents,
	}
}
