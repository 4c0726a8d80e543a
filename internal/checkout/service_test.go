package checkout

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/outbox"
	"github.com/kzarre/kzarre-backend/pkg/types"
)

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	stmts := []string{`
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
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
);`, `
CREATE TABLE IF NOT EXISTS product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  sku TEXT NOT NULL UNIQUE,
  size TEXT NOT NULL DEFAULT '',
  color TEXT NOT NULL DEFAULT '',
  label TEXT NOT NULL,
  price_cents INTEGER,
  stock INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  shipping_address TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  payment_method TEXT NOT NULL,
  stock_reduced INTEGER NOT NULL DEFAULT 0,
  stripe_session_id TEXT,
  paypal_order_id TEXT,
  payment_id TEXT,
  currency TEXT NOT NULL DEFAULT 'usd',
  subtotal_cents INTEGER NOT NULL,
  delivery_fee_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  failure_reason TEXT,
  paid_at DATETIME,
  refunded_at DATETIME,
  cancelled_at DATETIME,
  shipped_at DATETIME,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
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
);`}

	for _, stmt := range stmts {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

type fakeOutbox struct {
	events []outbox.DomainEvent
	err    error
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakeStripeGateway struct {
	sessionID string
	url       string
	err       error
}

func (f *fakeStripeGateway) CreateSession(ctx context.Context, order *models.Order) (string, string, error) {
	return f.sessionID, f.url, f.err
}

func testAddress() types.Address {
	return types.Address{
		FullName:   "Iris Navarro",
		Line1:      "88 Crown Street",
		City:       "Brooklyn",
		PostalCode: "11201",
		Country:    "US",
	}
}

func seedCheckoutProduct(t *testing.T, conn *gorm.DB, priceCents, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:            uuid.New(),
		Slug:          "checkout-" + uuid.NewString(),
		Title:         "Wool Scarf",
		PriceCents:    priceCents,
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

func newCheckoutService(t *testing.T, conn *gorm.DB, publisher *fakeOutbox, stripeGW StripeGateway) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), db.FromConn(conn), publisher, stripeGW, nil, config.OrdersConfig{DeliveryFeeCents: 1500})
	require.NoError(t, err)
	return svc
}

func TestService_CreateOrderCOD(t *testing.T) {
	t.Parallel()

	conn := setupCheckoutTestDB(t)
	publisher := &fakeOutbox{}
	svc := newCheckoutService(t, conn, publisher, nil)
	ctx := context.Background()

	product := seedCheckoutProduct(t, conn, 1999, 10)

	result, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerName:    "Iris Navarro",
		CustomerEmail:   "Iris@Example.com",
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCOD,
		Items:           []ItemInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Order.OrderID, "ORD-"))
	assert.Len(t, result.Order.OrderID, len("ORD-")+6)
	assert.Equal(t, enums.OrderStatusPending, result.Order.Status)
	assert.Equal(t, 2*1999, result.Order.SubtotalCents)
	assert.Equal(t, 1500, result.Order.DeliveryFeeCents)
	assert.Equal(t, 2*1999+1500, result.Order.TotalCents)
	assert.Empty(t, result.RedirectURL)

	var stored models.Order
	require.NoError(t, conn.Preload("Items").First(&stored, "id = ?", result.Order.ID).Error)
	assert.False(t, stored.StockReduced, "checkout never touches stock")
	assert.Equal(t, "iris@example.com", stored.CustomerEmail)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 0, stored.Items[0].DecrementedQty)

	var gotProduct models.Product
	require.NoError(t, conn.First(&gotProduct, "id = ?", product.ID).Error)
	assert.Equal(t, 10, gotProduct.StockQuantity, "stock is read, not written")

	require.Len(t, publisher.events, 1)
	assert.Equal(t, outbox.EventOrderCreated, publisher.events[0].EventType)
	assert.Equal(t, result.Order.ID, publisher.events[0].AggregateID)
}

func TestService_CreateOrderValidationFailures(t *testing.T) {
	t.Parallel()

	conn := setupCheckoutTestDB(t)
	publisher := &fakeOutbox{}
	svc := newCheckoutService(t, conn, publisher, nil)
	ctx := context.Background()

	product := seedCheckoutProduct(t, conn, 1000, 1)
	variant := &models.ProductVariant{
		ID:        uuid.New(),
		ProductID: product.ID,
		SKU:       "SCARF-M",
		Size:      "M",
		Label:     "M",
		Stock:     5,
	}
	require.NoError(t, conn.Create(variant).Error)

	valid := CreateOrderInput{
		CustomerName:    "Iris Navarro",
		CustomerEmail:   "iris@example.com",
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCOD,
	}

	tests := []struct {
		name  string
		items []ItemInput
		code  pkgerrors.Code
	}{
		{
			name:  "unknown product",
			items: []ItemInput{{ProductID: uuid.New(), Quantity: 1}},
			code:  pkgerrors.CodeNotFound,
		},
		{
			name:  "variant required",
			items: []ItemInput{{ProductID: product.ID, Quantity: 1}},
			code:  pkgerrors.CodeValidation,
		},
		{
			name: "foreign variant",
			items: func() []ItemInput {
				foreign := uuid.New()
				return []ItemInput{{ProductID: product.ID, VariantID: &foreign, Quantity: 1}}
			}(),
			code: pkgerrors.CodeValidation,
		},
		{
			name: "no variant for selection",
			items: func() []ItemInput {
				size := "XL"
				return []ItemInput{{ProductID: product.ID, Size: &size, Quantity: 1}}
			}(),
			code: pkgerrors.CodeValidation,
		},
		{
			name:  "insufficient variant stock",
			items: []ItemInput{{ProductID: product.ID, VariantID: &variant.ID, Quantity: 6}},
			code:  pkgerrors.CodeConflict,
		},
		{
			name:  "zero quantity",
			items: []ItemInput{{ProductID: product.ID, VariantID: &variant.ID, Quantity: 0}},
			code:  pkgerrors.CodeValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			input.Items = tc.items
			_, err := svc.CreateOrder(ctx, input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tc.code, typed.Code())
		})
	}

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count, "failed intakes leave no orders behind")
	assert.Empty(t, publisher.events)
}

func TestService_CreateOrderSelectsVariantBySizeColor(t *testing.T) {
	t.Parallel()

	conn := setupCheckoutTestDB(t)
	publisher := &fakeOutbox{}
	svc := newCheckoutService(t, conn, publisher, nil)
	ctx := context.Background()

	product := seedCheckoutProduct(t, conn, 2500, 0)
	variantPrice := 2900
	variants := []*models.ProductVariant{
		{ID: uuid.New(), ProductID: product.ID, SKU: "SCARF-M-RED", Size: "M", Color: "Red", Label: "M / Red", Stock: 4},
		{ID: uuid.New(), ProductID: product.ID, SKU: "SCARF-M-BLUE", Size: "M", Color: "Blue", Label: "M / Blue", PriceCents: &variantPrice, Stock: 2},
	}
	for _, v := range variants {
		require.NoError(t, conn.Create(v).Error)
	}

	size, color := "m", "blue"
	result, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerName:    "Iris Navarro",
		CustomerEmail:   "iris@example.com",
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCOD,
		Items:           []ItemInput{{ProductID: product.ID, Size: &size, Color: &color, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2900, result.Order.SubtotalCents, "variant price overrides product price")

	var stored models.Order
	require.NoError(t, conn.Preload("Items").First(&stored, "id = ?", result.Order.ID).Error)
	require.Len(t, stored.Items, 1)
	item := stored.Items[0]
	require.NotNil(t, item.VariantID)
	assert.Equal(t, variants[1].ID, *item.VariantID, "size/color matching is case-insensitive")
	require.NotNil(t, item.SKU)
	assert.Equal(t, "SCARF-M-BLUE", *item.SKU)
	require.NotNil(t, item.Size)
	assert.Equal(t, "M", *item.Size)
	require.NotNil(t, item.Color)
	assert.Equal(t, "Blue", *item.Color)

	// Size alone is ambiguous between the two colors and must not pick one.
	_, err = svc.CreateOrder(ctx, CreateOrderInput{
		CustomerName:    "Iris Navarro",
		CustomerEmail:   "iris@example.com",
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCOD,
		Items:           []ItemInput{{ProductID: product.ID, Size: &size, Quantity: 1}},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestService_CreateStripeSession(t *testing.T) {
	t.Parallel()

	conn := setupCheckoutTestDB(t)
	publisher := &fakeOutbox{}
	gateway := &fakeStripeGateway{sessionID: "cs_test_123", url: "https://checkout.stripe.com/pay/cs_test_123"}
	svc := newCheckoutService(t, conn, publisher, gateway)
	ctx := context.Background()

	product := seedCheckoutProduct(t, conn, 4500, 3)

	result, err := svc.CreateStripeSession(ctx, CreateOrderInput{
		CustomerName:    "Iris Navarro",
		CustomerEmail:   "iris@example.com",
		ShippingAddress: testAddress(),
		Items:           []ItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_123", result.ProviderRef)
	assert.Equal(t, gateway.url, result.RedirectURL)
	assert.Equal(t, enums.PaymentMethodStripe, result.Order.PaymentMethod)

	var stored models.Order
	require.NoError(t, conn.First(&stored, "id = ?", result.Order.ID).Error)
	require.NotNil(t, stored.StripeSessionID)
	assert.Equal(t, "cs_test_123", *stored.StripeSessionID)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
}

func TestService_CreateStripeSessionUnconfigured(t *testing.T) {
	t.Parallel()

	conn := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, conn, &fakeOutbox{}, nil)

	_, err := svc.CreateStripeSession(context.Background(), CreateOrderInput{})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
}
