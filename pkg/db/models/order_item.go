package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem represents a single purchased line on an order.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID      *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Title          string     `gorm:"column:title;not null"`
	SKU            *string    `gorm:"column:sku"`
	Size           *string    `gorm:"column:size"`
	Color          *string    `gorm:"column:color"`
	VariantLabel   *string    `gorm:"column:variant_label"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	// DecrementedQty records how much stock was actually taken when the
	// payment confirmed, so a restore returns exactly that amount.
	DecrementedQty int       `gorm:"column:decremented_qty;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
