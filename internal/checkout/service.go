package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/outbox"
	"github.com/kzarre/kzarre-backend/pkg/outbox/payloads"
	"github.com/kzarre/kzarre-backend/pkg/paypal"
)

const orderNumberRetryLimit = 5

// Service accepts checkouts and hands gateway methods off to their provider.
// Orders always start pending with stock untouched; confirmation moves them.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CheckoutResult, error)
	CreateStripeSession(ctx context.Context, input CreateOrderInput) (*CheckoutResult, error)
	CreatePayPalOrder(ctx context.Context, input CreateOrderInput) (*CheckoutResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StripeGateway creates a hosted checkout session for an order.
type StripeGateway interface {
	CreateSession(ctx context.Context, order *models.Order) (sessionID, redirectURL string, err error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	stripeGW StripeGateway
	paypalGW paypal.Gateway
	cfg      config.OrdersConfig
}

// NewService builds the checkout service. Gateways may be nil when the
// deployment does not configure that provider.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, stripeGW StripeGateway, paypalGW paypal.Gateway, cfg config.OrdersConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   publisher,
		stripeGW: stripeGW,
		paypalGW: paypalGW,
		cfg:      cfg,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CheckoutResult, error) {
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodCOD
	}
	switch method {
	case enums.PaymentMethodCOD:
		order, err := s.intake(ctx, input, enums.PaymentMethodCOD)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Order: toOrderSummary(order)}, nil
	case enums.PaymentMethodStripe:
		return s.CreateStripeSession(ctx, input)
	case enums.PaymentMethodPayPal:
		return s.CreatePayPalOrder(ctx, input)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
}

func (s *service) CreateStripeSession(ctx context.Context, input CreateOrderInput) (*CheckoutResult, error) {
	if s.stripeGW == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe is not configured")
	}

	order, err := s.intake(ctx, input, enums.PaymentMethodStripe)
	if err != nil {
		return nil, err
	}

	sessionID, redirectURL, err := s.stripeGW.CreateSession(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe session")
	}

	if err := s.repo.UpdateOrder(ctx, order.ID, map[string]any{"stripe_session_id": sessionID}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store stripe session reference")
	}
	order.StripeSessionID = &sessionID

	return &CheckoutResult{
		Order:       toOrderSummary(order),
		RedirectURL: redirectURL,
		ProviderRef: sessionID,
	}, nil
}

func (s *service) CreatePayPalOrder(ctx context.Context, input CreateOrderInput) (*CheckoutResult, error) {
	if s.paypalGW == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal is not configured")
	}

	order, err := s.intake(ctx, input, enums.PaymentMethodPayPal)
	if err != nil {
		return nil, err
	}

	result, err := s.paypalGW.CreateOrder(ctx, order.TotalCents, order.Currency, order.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create paypal order")
	}

	if err := s.repo.UpdateOrder(ctx, order.ID, map[string]any{"paypal_order_id": result.OrderID}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store paypal order reference")
	}
	order.PayPalOrderID = &result.OrderID

	return &CheckoutResult{
		Order:       toOrderSummary(order),
		RedirectURL: result.ApproveURL,
		ProviderRef: result.OrderID,
	}, nil
}

// intake validates the payload, builds the pending order, and persists it
// together with its order.created outbox row. Stock is read for sufficiency
// but never written.
func (s *service) intake(ctx context.Context, input CreateOrderInput, method enums.PaymentMethod) (*models.Order, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}
	if strings.TrimSpace(input.CustomerEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	// A colliding order number aborts the whole transaction, so each
	// attempt runs in a fresh one.
	for attempt := 0; attempt < orderNumberRetryLimit; attempt++ {
		created, err := s.persistOrder(ctx, input, method)
		if err == nil {
			return created, nil
		}
		if errors.Is(err, errOrderNumberTaken) {
			continue
		}
		return nil, err
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "could not allocate an order number")
}

var errOrderNumberTaken = errors.New("order number already taken")

func (s *service) persistOrder(ctx context.Context, input CreateOrderInput, method enums.PaymentMethod) (*models.Order, error) {
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		items, subtotal, err := s.priceItems(ctx, repo, input.Items)
		if err != nil {
			return err
		}

		order := &models.Order{
			ID:               uuid.New(),
			OrderID:          newOrderNumber(),
			CustomerName:     strings.TrimSpace(input.CustomerName),
			CustomerEmail:    strings.ToLower(strings.TrimSpace(input.CustomerEmail)),
			ShippingAddress:  input.ShippingAddress,
			Status:           enums.OrderStatusPending,
			PaymentStatus:    enums.PaymentStatusUnpaid,
			PaymentMethod:    method,
			Currency:         "usd",
			SubtotalCents:    subtotal,
			DeliveryFeeCents: s.cfg.DeliveryFeeCents,
			TotalCents:       subtotal + s.cfg.DeliveryFeeCents,
			Items:            items,
		}

		if cerr := repo.CreateOrder(ctx, order); cerr != nil {
			if db.IsUniqueViolation(cerr, "") && strings.Contains(cerr.Error(), "order_id") {
				return errOrderNumberTaken
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "create order")
		}
		created = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     outbox.EventOrderCreated,
			AggregateType: outbox.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderID,
				CustomerEmail: order.CustomerEmail,
				PaymentMethod: order.PaymentMethod,
				TotalCents:    order.TotalCents,
				Currency:      order.Currency,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// priceItems resolves every requested line against the catalog and returns
// priced order items plus the subtotal.
func (s *service) priceItems(ctx context.Context, repo Repository, inputs []ItemInput) ([]models.OrderItem, int, error) {
	items := make([]models.OrderItem, 0, len(inputs))
	subtotal := 0

	for _, line := range inputs {
		if line.Quantity <= 0 {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}

		product, err := repo.FindProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": line.ProductID})
			}
			return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not available").
				WithDetails(map[string]any{"product_id": product.ID})
		}

		item := models.OrderItem{
			ID:        uuid.New(),
			ProductID: product.ID,
			Title:     product.Title,
			Quantity:  line.Quantity,
		}

		switch {
		case line.VariantID != nil:
			variant := findVariantByID(product, *line.VariantID)
			if variant == nil {
				return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product").
					WithDetails(map[string]any{"variant_id": *line.VariantID})
			}
			if err := applyVariant(&item, product, variant, line.Quantity); err != nil {
				return nil, 0, err
			}
		case line.Size != nil || line.Color != nil:
			variant := findVariantBySelection(product, line.Size, line.Color)
			if variant == nil {
				return nil, 0, invalidSelection(product.ID, line.Size, line.Color)
			}
			if err := applyVariant(&item, product, variant, line.Quantity); err != nil {
				return nil, 0, err
			}
		case len(product.Variants) > 0:
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "variant selection required").
				WithDetails(map[string]any{"product_id": product.ID})
		default:
			if product.StockQuantity < line.Quantity {
				return nil, 0, insufficientStock(product.ID, nil, product.StockQuantity, line.Quantity)
			}
			item.UnitPriceCents = product.PriceCents
		}

		subtotal += item.UnitPriceCents * item.Quantity
		items = append(items, item)
	}

	return items, subtotal, nil
}

// applyVariant copies the variant's identity and price onto the order item
// after checking its stock.
func applyVariant(item *models.OrderItem, product *models.Product, variant *models.ProductVariant, qty int) error {
	if variant.Stock < qty {
		return insufficientStock(product.ID, &variant.ID, variant.Stock, qty)
	}
	item.VariantID = &variant.ID
	item.VariantLabel = &variant.Label
	sku := variant.SKU
	item.SKU = &sku
	if variant.Size != "" {
		size := variant.Size
		item.Size = &size
	}
	if variant.Color != "" {
		color := variant.Color
		item.Color = &color
	}
	item.UnitPriceCents = product.PriceCents
	if variant.PriceCents != nil {
		item.UnitPriceCents = *variant.PriceCents
	}
	return nil
}

func insufficientStock(productID uuid.UUID, variantID *uuid.UUID, available, requested int) error {
	details := map[string]any{
		"product_id": productID,
		"available":  available,
		"requested":  requested,
	}
	if variantID != nil {
		details["variant_id"] = *variantID
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithDetails(details)
}

func invalidSelection(productID uuid.UUID, size, color *string) error {
	details := map[string]any{"product_id": productID}
	if size != nil {
		details["size"] = *size
	}
	if color != nil {
		details["color"] = *color
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "no variant matches the requested selection").
		WithDetails(details)
}

func findVariantByID(product *models.Product, variantID uuid.UUID) *models.ProductVariant {
	for i := range product.Variants {
		if product.Variants[i].ID == variantID {
			return &product.Variants[i]
		}
	}
	return nil
}

// findVariantBySelection matches the size/color pair case-insensitively. An
// omitted dimension only matches variants that do not carry it, so a
// size-only request never picks an arbitrary color.
func findVariantBySelection(product *models.Product, size, color *string) *models.ProductVariant {
	for i := range product.Variants {
		v := &product.Variants[i]
		if selectorMatches(v.Size, size) && selectorMatches(v.Color, color) {
			return v
		}
	}
	return nil
}

func selectorMatches(value string, want *string) bool {
	if want == nil {
		return value == ""
	}
	return strings.EqualFold(value, strings.TrimSpace(*want))
}

// newOrderNumber produces the customer-facing ORD-nnnnnn reference.
func newOrderNumber() string {
	return fmt.Sprintf("ORD-%06d", rand.IntN(1_000_000))
}
