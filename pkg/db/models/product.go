package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Product represents a storefront listing. StockQuantity is the aggregate
// of variant stock whenever the product has variants.
type Product struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug          string           `gorm:"column:slug;not null;uniqueIndex"`
	Title         string           `gorm:"column:title;not null"`
	Description   *string          `gorm:"column:description"`
	Category      *string          `gorm:"column:category;index"`
	Tags          pq.StringArray   `gorm:"column:tags;type:text[]"`
	PriceCents    int              `gorm:"column:price_cents;not null"`
	StockQuantity int              `gorm:"column:stock_quantity;not null;default:0"`
	IsActive      bool             `gorm:"column:is_active;not null;default:true"`
	IsFeatured    bool             `gorm:"column:is_featured;not null;default:false"`
	Variants      []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
