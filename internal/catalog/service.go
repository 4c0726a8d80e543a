package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/pagination"
)

const slugRetryLimit = 3

// Service exposes catalog management and storefront reads.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	GetProductBySlug(ctx context.Context, slug string) (*ProductDTO, error)
	ListProducts(ctx context.Context, filters ProductFilters) (*ProductList, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService constructs a catalog service instance.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	priceCents, err := toCents(input.Price)
	if err != nil {
		return nil, err
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}

	variants := make([]models.ProductVariant, 0, len(input.Variants))
	variantStock := 0
	selections := make(map[string]struct{}, len(input.Variants))
	for _, v := range input.Variants {
		sku := strings.TrimSpace(v.SKU)
		if sku == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant sku is required")
		}
		size := strings.TrimSpace(v.Size)
		color := strings.TrimSpace(v.Color)
		label := strings.TrimSpace(v.Label)
		if label == "" {
			label = variantLabel(size, color)
		}
		if label == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant needs a size, color, or label")
		}
		if size != "" || color != "" {
			key := strings.ToLower(size) + "\x00" + strings.ToLower(color)
			if _, dup := selections[key]; dup {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate variant size/color combination").
					WithDetails(map[string]any{"size": size, "color": color})
			}
			selections[key] = struct{}{}
		}
		if v.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant stock cannot be negative")
		}
		variant := models.ProductVariant{
			ID:    uuid.New(),
			SKU:   sku,
			Size:  size,
			Color: color,
			Label: label,
			Stock: v.Stock,
		}
		if v.Price != nil {
			cents, perr := toCents(*v.Price)
			if perr != nil {
				return nil, perr
			}
			variant.PriceCents = &cents
		}
		variantStock += v.Stock
		variants = append(variants, variant)
	}

	stock := input.Stock
	if len(variants) > 0 {
		stock = variantStock
	}

	product := &models.Product{
		ID:            uuid.New(),
		Title:         title,
		Description:   input.Description,
		Category:      input.Category,
		Tags:          input.Tags,
		PriceCents:    priceCents,
		StockQuantity: stock,
		IsActive:      input.IsActive,
		IsFeatured:    input.IsFeatured,
		Variants:      variants,
	}

	base := slugify(title)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for attempt := 0; attempt < slugRetryLimit; attempt++ {
			product.Slug = base
			if attempt > 0 {
				product.Slug = base + "-" + uuid.NewString()[:8]
			}
			cerr := repo.Create(ctx, product)
			if cerr == nil {
				return nil
			}
			if !db.IsUniqueViolation(cerr, "") {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "create product")
			}
			if strings.Contains(cerr.Error(), "sku") {
				return pkgerrors.New(pkgerrors.CodeConflict, "variant sku already exists")
			}
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique slug")
	})
	if err != nil {
		return nil, err
	}
	return toProductDTO(product), nil
}

func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Category != nil {
		updates["category"] = *input.Category
	}
	if input.Tags != nil {
		updates["tags"] = pq.StringArray(*input.Tags)
	}
	if input.Price != nil {
		cents, err := toCents(*input.Price)
		if err != nil {
			return nil, err
		}
		updates["price_cents"] = cents
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.IsFeatured != nil {
		updates["is_featured"] = *input.IsFeatured
	}

	var dto *ProductDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		if input.Stock != nil {
			if *input.Stock < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
			}
			if len(product.Variants) > 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "stock is derived from variants for this product")
			}
			updates["stock_quantity"] = *input.Stock
		}

		if len(updates) > 0 {
			if err := repo.Update(ctx, productID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
			}
		}

		product, err = repo.FindByID(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
		}
		dto = toProductDTO(product)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, productID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if err := repo.Delete(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		return nil
	})
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return toProductDTO(product), nil
}

func (s *service) GetProductBySlug(ctx context.Context, slug string) (*ProductDTO, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug required")
	}
	product, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return toProductDTO(product), nil
}

func (s *service) ListProducts(ctx context.Context, filters ProductFilters) (*ProductList, error) {
	rows, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	rows, next := pagination.Page(rows, filters.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})

	list := &ProductList{
		Products:   make([]ProductDTO, 0, len(rows)),
		NextCursor: next,
	}
	for i := range rows {
		list.Products = append(list.Products, *toProductDTO(&rows[i]))
	}
	return list, nil
}

// toCents converts a decimal dollar amount into integer cents, rejecting
// negatives and sub-cent precision.
func toCents(price decimal.Decimal) (int, error) {
	if price.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	cents := price.Mul(decimal.NewFromInt(100))
	if !cents.Equal(cents.Truncate(0)) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "price cannot have sub-cent precision")
	}
	return int(cents.IntPart()), nil
}

// variantLabel derives a display label from the selection pair.
func variantLabel(size, color string) string {
	switch {
	case size != "" && color != "":
		return size + " / " + color
	case size != "":
		return size
	default:
		return color
	}
}

func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
