package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductVariant represents a purchasable variation of a product, keyed by
// its size/color combination within the product.
type ProductVariant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	SKU        string    `gorm:"column:sku;not null;uniqueIndex"`
	Size       string    `gorm:"column:size;not null;default:''"`
	Color      string    `gorm:"column:color;not null;default:''"`
	Label      string    `gorm:"column:label;not null"`
	PriceCents *int      `gorm:"column:price_cents"`
	Stock      int       `gorm:"column:stock;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
