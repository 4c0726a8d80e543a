package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  category TEXT,
  tags TEXT,
  price_cents INTEGER NOT NULL,
  stock_quantity INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  is_featured INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	variants := `
CREATE TABLE IF NOT EXISTS product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  size TEXT NOT NULL DEFAULT '',
  color TEXT NOT NULL DEFAULT '',
  label TEXT NOT NULL,
  price_cents INTEGER,
  stock INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT,
  title TEXT NOT NULL,
  sku TEXT,
  size TEXT,
  color TEXT,
  variant_label TEXT,
  unit_price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  decremented_qty INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`

	for _, stmt := range []string{products, variants, orderItems} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:            uuid.New(),
		Slug:          "ledger-" + uuid.NewString(),
		Title:         "Ledger Product",
		PriceCents:    2500,
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func seedVariant(t *testing.T, db *gorm.DB, productID uuid.UUID, stock int) *models.ProductVariant {
	t.Helper()
	variant := &models.ProductVariant{
		ID:        uuid.New(),
		ProductID: productID,
		SKU:       "SKU-" + uuid.NewString(),
		Label:     "Default",
		Stock:     stock,
	}
	require.NoError(t, db.Create(variant).Error)
	return variant
}

func seedOrderItem(t *testing.T, db *gorm.DB, productID uuid.UUID, variantID *uuid.UUID, qty, decremented int) models.OrderItem {
	t.Helper()
	item := models.OrderItem{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		ProductID:      productID,
		VariantID:      variantID,
		Title:          "Ledger Item",
		UnitPriceCents: 2500,
		Quantity:       qty,
		DecrementedQty: decremented,
	}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func TestService_DecrementVariantLine(t *testing.T) {
	t.Parallel()

	db := setupInventoryTestDB(t)
	ctx := context.Background()

	product := seedProduct(t, db, 10)
	variant := seedVariant(t, db, product.ID, 10)
	item := seedOrderItem(t, db, product.ID, &variant.ID, 3, 0)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	items := []models.OrderItem{item}
	var movements []Movement
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		movements, err = svc.Decrement(ctx, tx, items)
		return err
	}))

	require.Len(t, movements, 1)
	assert.Equal(t, 3, movements[0].Requested)
	assert.Equal(t, 3, movements[0].Applied)
	assert.Equal(t, 3, items[0].DecrementedQty)

	var gotVariant models.ProductVariant
	require.NoError(t, db.First(&gotVariant, "id = ?", variant.ID).Error)
	assert.Equal(t, 7, gotVariant.Stock)

	var gotProduct models.Product
	require.NoError(t, db.First(&gotProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 7, gotProduct.StockQuantity, "aggregate should track variant stock")

	var gotItem models.OrderItem
	require.NoError(t, db.First(&gotItem, "id = ?", item.ID).Error)
	assert.Equal(t, 3, gotItem.DecrementedQty)
}

func TestService_DecrementClampsAtZero(t *testing.T) {
	t.Parallel()

	db := setupInventoryTestDB(t)
	ctx := context.Background()

	product := seedProduct(t, db, 2)
	variant := seedVariant(t, db, product.ID, 2)
	item := seedOrderItem(t, db, product.ID, &variant.ID, 5, 0)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	items := []models.OrderItem{item}
	var movements []Movement
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		movements, err = svc.Decrement(ctx, tx, items)
		return err
	}))

	require.Len(t, movements, 1)
	assert.Equal(t, 5, movements[0].Requested)
	assert.Equal(t, 2, movements[0].Applied, "oversold line takes only what is left")

	var gotVariant models.ProductVariant
	require.NoError(t, db.First(&gotVariant, "id = ?", variant.ID).Error)
	assert.Equal(t, 0, gotVariant.Stock)

	var gotItem models.OrderItem
	require.NoError(t, db.First(&gotItem, "id = ?", item.ID).Error)
	assert.Equal(t, 2, gotItem.DecrementedQty)
}

func TestService_DecrementProductLine(t *testing.T) {
	t.Parallel()

	db := setupInventoryTestDB(t)
	ctx := context.Background()

	product := seedProduct(t, db, 8)
	item := seedOrderItem(t, db, product.ID, nil, 3, 0)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Decrement(ctx, tx, []models.OrderItem{item})
		return err
	}))

	var gotProduct models.Product
	require.NoError(t, db.First(&gotProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 5, gotProduct.StockQuantity)
}

func TestService_RestoreReturnsExactlyWhatWasTaken(t *testing.T) {
	t.Parallel()

	db := setupInventoryTestDB(t)
	ctx := context.Background()

	product := seedProduct(t, db, 0)
	variant := seedVariant(t, db, product.ID, 0)
	// Ordered 5, but only 2 were in stock when payment confirmed.
	item := seedOrderItem(t, db, product.ID, &variant.ID, 5, 2)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	items := []models.OrderItem{item}
	var restored int
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		restored, err = svc.Restore(ctx, tx, items)
		return err
	}))

	assert.Equal(t, 2, restored, "restore must use the recorded quantity, not the ordered one")

	var gotVariant models.ProductVariant
	require.NoError(t, db.First(&gotVariant, "id = ?", variant.ID).Error)
	assert.Equal(t, 2, gotVariant.Stock)

	var gotProduct models.Product
	require.NoError(t, db.First(&gotProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 2, gotProduct.StockQuantity)

	var gotItem models.OrderItem
	require.NoError(t, db.First(&gotItem, "id = ?", item.ID).Error)
	assert.Equal(t, 0, gotItem.DecrementedQty, "record is cleared after restore")

	// A second restore finds nothing to give back.
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		restored, err = svc.Restore(ctx, tx, items)
		return err
	}))
	assert.Equal(t, 0, restored)

	require.NoError(t, db.First(&gotVariant, "id = ?", variant.ID).Error)
	assert.Equal(t, 2, gotVariant.Stock)
}

func TestService_DecrementValidation(t *testing.T) {
	t.Parallel()

	db := setupInventoryTestDB(t)
	ctx := context.Background()

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, err = svc.Decrement(ctx, nil, nil)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())

	item := models.OrderItem{ID: uuid.New(), ProductID: uuid.New(), Quantity: 0}
	err = db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.Decrement(ctx, tx, []models.OrderItem{item})
		return terr
	})
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
