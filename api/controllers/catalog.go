package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kzarre/kzarre-backend/api/responses"
	"github.com/kzarre/kzarre-backend/api/validators"
	"github.com/kzarre/kzarre-backend/internal/catalog"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/pagination"
)

type productVariantRequest struct {
	SKU   string           `json:"sku" validate:"required,min=1,max=64"`
	Size  string           `json:"size,omitempty" validate:"omitempty,max=64"`
	Color string           `json:"color,omitempty" validate:"omitempty,max=64"`
	Label string           `json:"label,omitempty" validate:"omitempty,min=1,max=120"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Stock int              `json:"stock" validate:"min=0"`
}

type createProductRequest struct {
	Title       string                  `json:"title" validate:"required,min=2,max=200"`
	Description *string                 `json:"description,omitempty"`
	Category    *string                 `json:"category,omitempty"`
	Tags        []string                `json:"tags,omitempty"`
	Price       decimal.Decimal         `json:"price"`
	Stock       int                     `json:"stock" validate:"min=0"`
	IsActive    *bool                   `json:"is_active,omitempty"`
	IsFeatured  bool                    `json:"is_featured,omitempty"`
	Variants    []productVariantRequest `json:"variants,omitempty" validate:"omitempty,dive"`
}

func (req createProductRequest) toInput() (catalog.CreateProductInput, error) {
	if req.Price.IsNegative() || req.Price.IsZero() {
		return catalog.CreateProductInput{}, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	variants := make([]catalog.VariantInput, 0, len(req.Variants))
	for _, v := range req.Variants {
		if v.Price != nil && v.Price.IsNegative() {
			return catalog.CreateProductInput{}, pkgerrors.New(pkgerrors.CodeValidation, "variant price must not be negative")
		}
		variants = append(variants, catalog.VariantInput{
			SKU:   strings.TrimSpace(v.SKU),
			Size:  strings.TrimSpace(v.Size),
			Color: strings.TrimSpace(v.Color),
			Label: strings.TrimSpace(v.Label),
			Price: v.Price,
			Stock: v.Stock,
		})
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	return catalog.CreateProductInput{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		Price:       req.Price,
		Stock:       req.Stock,
		IsActive:    active,
		IsFeatured:  req.IsFeatured,
		Variants:    variants,
	}, nil
}

type updateProductRequest struct {
	Title       *string          `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Tags        *[]string        `json:"tags,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty" validate:"omitempty,min=0"`
	IsActive    *bool            `json:"is_active,omitempty"`
	IsFeatured  *bool            `json:"is_featured,omitempty"`
}

func (req updateProductRequest) toInput() (catalog.UpdateProductInput, error) {
	if req.Price != nil && (req.Price.IsNegative() || req.Price.IsZero()) {
		return catalog.UpdateProductInput{}, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	return catalog.UpdateProductInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		Price:       req.Price,
		Stock:       req.Stock,
		IsActive:    req.IsActive,
		IsFeatured:  req.IsFeatured,
	}, nil
}

func productFiltersFromQuery(r *http.Request, activeOnly bool) (catalog.ProductFilters, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return catalog.ProductFilters{}, err
	}

	filters := catalog.ProductFilters{
		Category:   optionalQuery(r, "category"),
		Tag:        optionalQuery(r, "tag"),
		Search:     optionalQuery(r, "search"),
		ActiveOnly: activeOnly,
		Limit:      limit,
		Cursor:     strings.TrimSpace(r.URL.Query().Get("cursor")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("featured")); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return catalog.ProductFilters{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid featured filter")
		}
		filters.Featured = &featured
	}

	return filters, nil
}

// ListProducts lists active products for the storefront.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		filters, err := productFiltersFromQuery(r, true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListProducts(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// GetProductBySlug returns one storefront product.
func GetProductBySlug(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		slug := strings.TrimSpace(chi.URLParam(r, "slug"))
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "slug required"))
			return
		}

		product, err := svc.GetProductBySlug(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// AdminListProducts lists products including inactive ones.
func AdminListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		filters, err := productFiltersFromQuery(r, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListProducts(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// AdminGetProduct returns one product by id.
func AdminGetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// AdminCreateProduct creates a catalog product.
func AdminCreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// AdminUpdateProduct patches a catalog product.
func AdminUpdateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}

// AdminDeleteProduct removes a product from the catalog.
func AdminDeleteProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
