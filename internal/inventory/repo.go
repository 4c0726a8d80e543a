package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes the raw stock mutations used by the ledger service.
// All methods expect to run inside the caller's transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	DecrementVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (int, error)
	DecrementProductStock(ctx context.Context, productID uuid.UUID, qty int) (int, error)
	RestoreVariantStock(ctx context.Context, variantID uuid.UUID, qty int) error
	RestoreProductStock(ctx context.Context, productID uuid.UUID, qty int) error
	RecalcProductStock(ctx context.Context, productID uuid.UUID) error
	SetItemDecrementedQty(ctx context.Context, itemID uuid.UUID, qty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the default gorm-backed inventory repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

// DecrementVariantStock takes qty units off the variant, clamping at zero.
// It returns the quantity actually removed, which is less than qty when the
// variant was oversold.
func (r *repository) DecrementVariantStock(ctx context.Context, variantID uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET stock = stock - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, qty, variantID, qty)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		return qty, nil
	}

	var remaining int
	if err := r.db.WithContext(ctx).
		Raw(`SELECT stock FROM product_variants WHERE id = ?`, variantID).
		Scan(&remaining).Error; err != nil {
		return 0, err
	}
	if remaining <= 0 {
		return 0, nil
	}

	res = r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET stock = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, variantID)
	if res.Error != nil {
		return 0, res.Error
	}
	return remaining, nil
}

// DecrementProductStock is the non-variant counterpart of
// DecrementVariantStock, clamping products.stock_quantity at zero.
func (r *repository) DecrementProductStock(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, nil
	}

	res := r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_quantity = stock_quantity - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock_quantity >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		return qty, nil
	}

	var remaining int
	if err := r.db.WithContext(ctx).
		Raw(`SELECT stock_quantity FROM products WHERE id = ?`, productID).
		Scan(&remaining).Error; err != nil {
		return 0, err
	}
	if remaining <= 0 {
		return 0, nil
	}

	res = r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_quantity = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, productID)
	if res.Error != nil {
		return 0, res.Error
	}
	return remaining, nil
}

func (r *repository) RestoreVariantStock(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).Exec(`
		UPDATE product_variants
		SET stock = stock + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, variantID).Error
}

func (r *repository) RestoreProductStock(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_quantity = stock_quantity + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID).Error
}

// RecalcProductStock rewrites the product aggregate from its variants.
// Products without variants keep their own counter and are never passed here.
func (r *repository) RecalcProductStock(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_quantity = (
			SELECT COALESCE(SUM(stock), 0) FROM product_variants WHERE product_id = ?
		),
		updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, productID, productID).Error
}

func (r *repository) SetItemDecrementedQty(ctx context.Context, itemID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE order_items
		SET decremented_qty = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, itemID).Error
}
