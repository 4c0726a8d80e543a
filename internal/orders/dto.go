package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	"github.com/kzarre/kzarre-backend/pkg/types"
)

// OrderItemDTO is the API shape of an order line.
type OrderItemDTO struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      uuid.UUID  `json:"product_id"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	Title          string     `json:"title"`
	SKU            *string    `json:"sku,omitempty"`
	Size           *string    `json:"size,omitempty"`
	Color          *string    `json:"color,omitempty"`
	VariantLabel   *string    `json:"variant_label,omitempty"`
	UnitPriceCents int        `json:"unit_price_cents"`
	Quantity       int        `json:"quantity"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID               uuid.UUID           `json:"id"`
	OrderID          string              `json:"order_id"`
	CustomerName     string              `json:"customer_name"`
	CustomerEmail    string              `json:"customer_email"`
	ShippingAddress  types.Address       `json:"shipping_address"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	Currency         string              `json:"currency"`
	SubtotalCents    int                 `json:"subtotal_cents"`
	DeliveryFeeCents int                 `json:"delivery_fee_cents"`
	TotalCents       int                 `json:"total_cents"`
	FailureReason    *string             `json:"failure_reason,omitempty"`
	Items            []OrderItemDTO      `json:"items"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	RefundedAt       *time.Time          `json:"refunded_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	ShippedAt        *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt      *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

// OrderFilters narrows order listings.
type OrderFilters struct {
	Status        *enums.OrderStatus
	PaymentMethod *enums.PaymentMethod
	CustomerEmail *string
	Limit         int
	Cursor        string
}

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func toOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:               order.ID,
		OrderID:          order.OrderID,
		CustomerName:     order.CustomerName,
		CustomerEmail:    order.CustomerEmail,
		ShippingAddress:  order.ShippingAddress,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		PaymentMethod:    order.PaymentMethod,
		Currency:         order.Currency,
		SubtotalCents:    order.SubtotalCents,
		DeliveryFeeCents: order.DeliveryFeeCents,
		TotalCents:       order.TotalCents,
		FailureReason:    order.FailureReason,
		Items:            make([]OrderItemDTO, 0, len(order.Items)),
		PaidAt:           order.PaidAt,
		RefundedAt:       order.RefundedAt,
		CancelledAt:      order.CancelledAt,
		ShippedAt:        order.ShippedAt,
		DeliveredAt:      order.DeliveredAt,
		CreatedAt:        order.CreatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Title:          item.Title,
			SKU:            item.SKU,
			Size:           item.Size,
			Color:          item.Color,
			VariantLabel:   item.VariantLabel,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		})
	}
	return dto
}
