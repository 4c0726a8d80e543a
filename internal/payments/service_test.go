package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/internal/inventory"
	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/outbox"
	"github.com/kzarre/kzarre-backend/pkg/paypal"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
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

type capturingOutbox struct {
	events []outbox.DomainEvent
}

func (c *capturingOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

type fakeGuard struct {
	duplicate bool
	marked    []string
	released  []string
}

func (f *fakeGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	f.marked = append(f.marked, eventID)
	return f.duplicate, nil
}

func (f *fakeGuard) Release(ctx context.Context, eventID string) error {
	f.released = append(f.released, eventID)
	return nil
}

type paymentsFixture struct {
	conn    *gorm.DB
	svc     Service
	outbox  *capturingOutbox
	guard   *fakeGuard
	product *models.Product
	variant *models.ProductVariant
	order   *models.Order
}

// newPaymentsFixture seeds one product with a size M variant and a pending
// stripe order against it. Stock and quantity are caller supplied so clamp
// cases can be exercised.
func newPaymentsFixture(t *testing.T, cfg config.OrdersConfig, variantStock, qty int) *paymentsFixture {
	t.Helper()

	conn := setupPaymentsTestDB(t)

	product := &models.Product{
		ID:            uuid.New(),
		Slug:          "payments-" + uuid.NewString(),
		Title:         "Cotton Tee",
		PriceCents:    2900,
		StockQuantity: variantStock,
		IsActive:      true,
	}
	require.NoError(t, conn.Create(product).Error)

	variant := &models.ProductVariant{
		ID:        uuid.New(),
		ProductID: product.ID,
		SKU:       "TEE-M-" + uuid.NewString()[:8],
		Label:     "M",
		Stock:     variantStock,
	}
	require.NoError(t, conn.Create(variant).Error)

	sessionID := "cs_test_" + uuid.NewString()[:8]
	order := &models.Order{
		ID:               uuid.New(),
		OrderID:          fmt.Sprintf("ORD-%06d", 137), // stable readable id for assertions
		CustomerName:     "Ana Reyes",
		CustomerEmail:    "ana@example.com",
		Status:           enums.OrderStatusPending,
		PaymentStatus:    enums.PaymentStatusUnpaid,
		PaymentMethod:    enums.PaymentMethodStripe,
		StripeSessionID:  &sessionID,
		Currency:         "usd",
		SubtotalCents:    qty * 2900,
		DeliveryFeeCents: 1500,
		TotalCents:       qty*2900 + 1500,
	}
	require.NoError(t, conn.Create(order).Error)

	item := &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ProductID:      product.ID,
		VariantID:      &variant.ID,
		Title:          product.Title,
		UnitPriceCents: 2900,
		Quantity:       qty,
	}
	require.NoError(t, conn.Create(item).Error)

	invSvc, err := inventory.NewService(inventory.NewRepository(conn))
	require.NoError(t, err)

	publisher := &capturingOutbox{}
	guard := &fakeGuard{}
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Tx:        db.FromConn(conn),
		Inventory: invSvc,
		Outbox:    publisher,
		Guard:     guard,
		Orders:    cfg,
		Logger:    logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard}),
	})
	require.NoError(t, err)

	return &paymentsFixture{
		conn:    conn,
		svc:     svc,
		outbox:  publisher,
		guard:   guard,
		product: product,
		variant: variant,
		order:   order,
	}
}

func sessionCompletedEvent(t *testing.T, sessionID string, orderID uuid.UUID, paymentIntent string) *stripe.Event {
	t.Helper()
	payload := map[string]any{
		"id":       sessionID,
		"object":   "checkout.session",
		"metadata": map[string]string{"orderId": orderID.String()},
	}
	if paymentIntent != "" {
		payload["payment_intent"] = paymentIntent
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString()[:8],
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func sessionExpiredEvent(t *testing.T, sessionID string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"id": sessionID, "object": "checkout.session"})
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString()[:8],
		Type: stripe.EventTypeCheckoutSessionExpired,
		Data: &stripe.EventData{Raw: raw},
	}
}

func chargeRefundedEvent(t *testing.T, paymentIntent string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":             "ch_" + uuid.NewString()[:8],
		"object":         "charge",
		"payment_intent": paymentIntent,
	})
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString()[:8],
		Type: stripe.EventTypeChargeRefunded,
		Data: &stripe.EventData{Raw: raw},
	}
}

func (f *paymentsFixture) reloadOrder(t *testing.T) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.Preload("Items").First(&order, "id = ?", f.order.ID).Error)
	return &order
}

func (f *paymentsFixture) variantStock(t *testing.T) int {
	t.Helper()
	var variant models.ProductVariant
	require.NoError(t, f.conn.First(&variant, "id = ?", f.variant.ID).Error)
	return variant.Stock
}

func TestHandleStripeEvent_SessionCompleted(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, config.OrdersConfig{}, 5, 2)
	ctx := context.Background()

	event := sessionCompletedEvent(t, *f.order.StripeSessionID, f.order.ID, "pi_123")
	require.NoError(t, f.svc.HandleStripeEvent(ctx, event))

	order := f.reloadOrder(t)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.True(t, order.StockReduced)
	require.NotNil(t, order.PaymentID)
	assert.Equal(t, "pi_123", *order.PaymentID)
	require.NotNil(t, order.PaidAt)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].DecrementedQty)

	assert.Equal(t, 3, f.variantStock(t), "M/5 with qty 2 leaves 3")

	var product models.Product
	require.NoError(t, f.conn.First(&product, "id = ?", f.product.ID).Error)
	assert.Equal(t, 3, product.StockQuantity)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, outbox.EventOrderPaid, f.outbox.events[0].EventType)
}

func TestHandleStripeEvent_DuplicateSuccessIsNoOp(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, config.OrdersConfig{}, 5, 2)
	ctx := context.Background()

	first := sessionCompletedEvent(t, *f.order.StripeSessionID, f.order.ID, "pi_123")
	require.NoError(t, f.svc.HandleStripeEvent(ctx, first))

	// Redelivery with a fresh event id bypasses the Redis guard and must
	// be stopped by the status check in the transaction.
	second := sessionCompletedEvent(t, *f.order.StripeSessionID, f.order.ID, "pi_123")
	require.NoError(t, f.svc.HandleStripeEvent(ctx, second))

	assert.Equal(t, 3, f.variantStock(t), "stock decremented exactly once")
	order := f.reloadOrder(t)
	assert.Equal(t, 2, order.Items[0].DecrementedQty)
	assert.Len(t, f.outbox.events, 1, "order.paid emitted exactly once")
}

func TestHandleStripeEvent_RedisGuardShortCircuits(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, config.OrdersConfig{}, 5, 2)
	f.guard.duplicate = true
	ctx := context.Background()

	event := sessionCompletedEvent(t, *f.order.StripeSessionID, f.order.ID, "pi_123")
	require.NoError(t, f.svc.HandleStripeEvent(ctx, event))

	order := f.reloadOrder(t)
	assert.Equal(t, enums.OrderStatusPending, order.Status, "duplicate delivery touches nothing")
	assert.Equal(t, 5, f.variantStock(t))
}

func TestHandleStripeEvent_FailureAfterPaidIsBlocked(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, config.OrdersConfig{}, 5, 2)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleStripeEvent(ctx, sessionCompletedEvent(t, *f.order.StripeSessionID, f.order.ID, "pi_123")))
	require.NoError(t, f.svc.HandleStripeEvent(ctx, sessionExpiredEvent(t, *f.order.StripeSessionID)))

	order := f.reloadOrder(t)
	assert.Equal(t, enums.OrderStatusPaid, order.Status, "paid is terminal for failure events")
	assert.True(t, order.StockReduced)
	assert.Equal(t, 3, f.variantStock(t))
}

func TestHandleStripeEvent_ExpiredRestoresExactly(t *testing.T) {
	t.Parallel()

	// Only 1 unit in stock for an order of 3: the clamped decrement takes
	// 1, and the later failure restores exactly 1.
	f := newPaymentsFixture(t, config.OrdersConfig{}, 1, 3)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleStripeEvent(ctx, sessionCompletedEvent(t, *f.order.StripeSessionID, f.order.ID, "pi_999")))
	order := f.reloadOrder(t)
	assert.Equal(t, 1, order.Items[0].DecrementedQty)
	assert.Equal(t, 0, f.variantStock(t))

	// Force the order back to a failure-eligible state, keeping the
	// reduced-stock flag, then deliver the expiry.
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", enums.OrderStatusPending).Error)

	require.NoError(t, f.svc.HandleStripeEvent(ctx, sessionExpiredEvent(t, *f.order.StripeSessionID)))

	order = f.reloadOrder(t)
	assert.Equal(t, enums.OrderStatusFailed, order.Status)
	assert.False(t, order.StockReduced)
	assert.Equal(t, 0, order.Items[0].DecrementedQty)
	assert.Equal(t, 1, f.variantStock(t), "restore gives back the clamped amount, not the ordered 3")
}

func TestHandleStripeEvent_ExpiredPendingNoStock(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, config.OrdersConfig{}, 5, 2)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleStripeEvent(ctx, sessionExpiredEvent(t, *f.order.StripeSessionID)))

	order := f.reloadOrder(t)
	assert.Equal(t, enums.OrderStatusFailed, order.Status)
	require.NotNil(t, order.FailureReason)
	assert.Equal(t, 5, f.variantStock(t), "unreduced stock stays untouched")

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, outbox.EventOrderFailed, f.outbox.events[0].EventType)
}

func TestHandleStripeEvent_RefundDefaultKeepsStock(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, config.OrdersConfig{}, 5, 2)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleStripeEvent(ctx, sessionCompletedEvent(t, *f.order.StripeSessionID, f.order.ID, "pi_123")))
	require.NoError(t, f.svc.HandleStripeEvent(ctx, chargeRefundedEvent(t, "pi_123")))

	order := f.reloadOrder(t)
	assert.Equal(t, enums.OrderStatusRefunded, order.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, order.PaymentStatus)
	require.NotNil(t, order.RefundedAt)
	assert.True(t, order.StockReduced, "refund is not a return by default")
	assert.Equal(t, 3, f.variantStock(t))
}

func TestHandleStripeEvent_RefundRestorePolicy(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, config.OrdersConfig{RestoreStockOnRefund: true}, 5, 2)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleStripeEvent(ctx, sessionCompletedEvent(t, *f.order.StripeSessionID, f.order.ID, "pi_123")))
	require.NoError(t, f.svc.HandleStripeEvent(ctx, chargeRefundedEvent(t, "pi_123")))

	order := f.reloadOrder(t)
	assert.Equal(t, enums.OrderStatusRefunded, order.Status)
	assert.False(t, order.StockReduced)
	assert.Equal(t, 5, f.variantStock(t), "policy flag restores the decremented amount")
}

func TestHandleStripeEvent_UnknownReferenceIgnored(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, config.OrdersConfig{}, 5, 2)
	ctx := context.Background()

	event := sessionExpiredEvent(t, "cs_unknown")
	require.NoError(t, f.svc.HandleStripeEvent(ctx, event), "foreign references are acknowledged")

	order := f.reloadOrder(t)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
}

type fakePayPalGateway struct {
	captureID string
	err       error
}

func (f *fakePayPalGateway) CreateOrder(ctx context.Context, totalCents int, currency, orderNumber string) (*paypal.OrderResult, error) {
	return &paypal.OrderResult{OrderID: "PAYPAL-ORDER"}, nil
}

func (f *fakePayPalGateway) CaptureOrder(ctx context.Context, paypalOrderID string) (*paypal.CaptureResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &paypal.CaptureResult{CaptureID: f.captureID}, nil
}

func TestCapturePayPalOrder(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, config.OrdersConfig{}, 5, 2)
	ctx := context.Background()

	paypalRef := "PAYPAL-" + uuid.NewString()[:8]
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", f.order.ID).
		Updates(map[string]any{
			"payment_method":  enums.PaymentMethodPayPal,
			"paypal_order_id": paypalRef,
		}).Error)

	invSvc, err := inventory.NewService(inventory.NewRepository(f.conn))
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(f.conn),
		Tx:        db.FromConn(f.conn),
		Inventory: invSvc,
		Outbox:    f.outbox,
		PayPal:    &fakePayPalGateway{captureID: "CAP-1"},
		Logger:    logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard}),
	})
	require.NoError(t, err)

	order, err := svc.CapturePayPalOrder(ctx, paypalRef)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaymentID)
	assert.Equal(t, "CAP-1", *order.PaymentID)
	assert.Equal(t, 3, f.variantStock(t))

	// Capturing again is a no-op thanks to the status guard.
	again, err := svc.CapturePayPalOrder(ctx, paypalRef)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, again.Status)
	assert.Equal(t, 3, f.variantStock(t))
}

func TestHandleStripeEvent_UnhandledTypeIgnored(t *testing.T) {
	t.Parallel()

	f := newPaymentsFixture(t, config.OrdersConfig{}, 5, 2)

	event := &stripe.Event{
		ID:   "evt_other",
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), event))
	assert.Empty(t, f.outbox.events)
}
