package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
)

// CreateProductInput holds the validated payload to create a product.
// Prices arrive as decimal dollars and are stored as integer cents.
type CreateProductInput struct {
	Title       string
	Description *string
	Category    *string
	Tags        []string
	Price       decimal.Decimal
	Stock       int
	IsActive    bool
	IsFeatured  bool
	Variants    []VariantInput
}

// VariantInput defines one purchasable variation, keyed by its size/color
// pair within the product. A nil Price inherits the product price, and an
// empty Label is derived from size and color.
type VariantInput struct {
	SKU   string
	Size  string
	Color string
	Label string
	Price *decimal.Decimal
	Stock int
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Title       *string
	Description *string
	Category    *string
	Tags        *[]string
	Price       *decimal.Decimal
	Stock       *int
	IsActive    *bool
	IsFeatured  *bool
}

// ProductFilters narrows product listings.
type ProductFilters struct {
	Category   *string
	Tag        *string
	Search     *string
	ActiveOnly bool
	Featured   *bool
	Limit      int
	Cursor     string
}

// VariantDTO is the API shape of a product variant.
type VariantDTO struct {
	ID         uuid.UUID `json:"id"`
	SKU        string    `json:"sku"`
	Size       string    `json:"size,omitempty"`
	Color      string    `json:"color,omitempty"`
	Label      string    `json:"label"`
	PriceCents int       `json:"price_cents"`
	Stock      int       `json:"stock"`
}

// ProductDTO is the API shape of a product.
type ProductDTO struct {
	ID            uuid.UUID    `json:"id"`
	Slug          string       `json:"slug"`
	Title         string       `json:"title"`
	Description   *string      `json:"description,omitempty"`
	Category      *string      `json:"category,omitempty"`
	Tags          []string     `json:"tags"`
	PriceCents    int          `json:"price_cents"`
	StockQuantity int          `json:"stock_quantity"`
	IsActive      bool         `json:"is_active"`
	IsFeatured    bool         `json:"is_featured"`
	Variants      []VariantDTO `json:"variants"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ProductList is a cursor page of products.
type ProductList struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toProductDTO(product *models.Product) *ProductDTO {
	dto := &ProductDTO{
		ID:            product.ID,
		Slug:          product.Slug,
		Title:         product.Title,
		Description:   product.Description,
		Category:      product.Category,
		Tags:          append([]string{}, product.Tags...),
		PriceCents:    product.PriceCents,
		StockQuantity: product.StockQuantity,
		IsActive:      product.IsActive,
		IsFeatured:    product.IsFeatured,
		Variants:      make([]VariantDTO, 0, len(product.Variants)),
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}
	for _, variant := range product.Variants {
		price := product.PriceCents
		if variant.PriceCents != nil {
			price = *variant.PriceCents
		}
		dto.Variants = append(dto.Variants, VariantDTO{
			ID:         variant.ID,
			SKU:        variant.SKU,
			Size:       variant.Size,
			Color:      variant.Color,
			Label:      variant.Label,
			PriceCents: price,
			Stock:      variant.Stock,
		})
	}
	return dto
}
