package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/internal/inventory"
	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/metrics"
	"github.com/kzarre/kzarre-backend/pkg/outbox"
	"github.com/kzarre/kzarre-backend/pkg/outbox/payloads"
	"github.com/kzarre/kzarre-backend/pkg/paypal"
)

const (
	providerStripe = "stripe"
	providerPayPal = "paypal"
)

// Service applies verified payment-provider events to orders. Every
// transition is idempotent: replays of the same event leave the order and
// the stock ledger untouched.
type Service interface {
	HandleStripeEvent(ctx context.Context, event *stripe.Event) error
	CapturePayPalOrder(ctx context.Context, paypalOrderID string) (*models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// ServiceParams collects the confirmation service dependencies.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Inventory inventory.Service
	Outbox    outboxPublisher
	Guard     eventGuard
	Metrics   *metrics.WebhookMetrics
	PayPal    paypal.Gateway
	Orders    config.OrdersConfig
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory inventory.Service
	outbox    outboxPublisher
	guard     eventGuard
	metrics   *metrics.WebhookMetrics
	paypalGW  paypal.Gateway
	cfg       config.OrdersConfig
	logg      *logger.Logger
}

// NewService builds the payment confirmation service. Guard, metrics, and
// the PayPal gateway are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		guard:     params.Guard,
		metrics:   params.Metrics,
		paypalGW:  params.PayPal,
		cfg:       params.Orders,
		logg:      params.Logger,
	}, nil
}

// orderRef carries the correlation candidates extracted from an event, in
// resolution order: embedded order id, session id, payment id.
type orderRef struct {
	orderID         *uuid.UUID
	stripeSessionID string
	paypalOrderID   string
	paymentID       string
}

func (s *service) HandleStripeEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)

	if s.guard != nil && event.ID != "" {
		duplicate, err := s.guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			// Redis being down must not drop payments; the transaction
			// guard still holds.
			s.logg.Error(ctx, "webhook idempotency check failed", err)
		} else if duplicate {
			if s.metrics != nil {
				s.metrics.IncDuplicate(providerStripe, eventType)
			}
			return nil
		}
	}

	err := s.dispatchStripe(ctx, event)
	if err != nil {
		if s.guard != nil && event.ID != "" {
			if rerr := s.guard.Release(ctx, event.ID); rerr != nil {
				s.logg.Error(ctx, "release webhook idempotency key", rerr)
			}
		}
		if s.metrics != nil {
			s.metrics.IncFailed(providerStripe, eventType)
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.IncProcessed(providerStripe, eventType)
	}
	return nil
}

func (s *service) dispatchStripe(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		ref := sessionRef(session)
		_, err = s.confirmSuccess(ctx, ref, providerStripe, paymentIntentID(session))
		return err

	case stripe.EventTypePaymentIntentSucceeded:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		_, err = s.confirmSuccess(ctx, intentRef(intent), providerStripe, intent.ID)
		return err

	case stripe.EventTypeCheckoutSessionExpired:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.markFailed(ctx, sessionRef(session), providerStripe, "checkout session expired")

	case stripe.EventTypePaymentIntentPaymentFailed:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		reason := "payment failed"
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			reason = intent.LastPaymentError.Msg
		}
		return s.markFailed(ctx, intentRef(intent), providerStripe, reason)

	case stripe.EventTypeChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
		}
		ref := orderRef{paymentID: charge.ID}
		if charge.PaymentIntent != nil && charge.PaymentIntent.ID != "" {
			ref.paymentID = charge.PaymentIntent.ID
		}
		if id, ok := metadataOrderID(charge.Metadata); ok {
			ref.orderID = &id
		}
		return s.markRefunded(ctx, ref, providerStripe)

	default:
		// Unsubscribed event types are acknowledged without action.
		return nil
	}
}

// CapturePayPalOrder captures an approved PayPal order and applies the same
// success transition the Stripe webhook path uses.
func (s *service) CapturePayPalOrder(ctx context.Context, paypalOrderID string) (*models.Order, error) {
	if paypalOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order id required")
	}
	if s.paypalGW == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal is not configured")
	}

	capture, err := s.paypalGW.CaptureOrder(ctx, paypalOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capture paypal order")
	}

	order, err := s.confirmSuccess(ctx, orderRef{paypalOrderID: paypalOrderID}, providerPayPal, capture.CaptureID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for paypal reference")
	}
	return order, nil
}

// confirmSuccess moves the order to paid, decrementing stock exactly once.
// A nil order return with nil error means the reference matched nothing and
// the event was deliberately ignored.
func (s *service) confirmSuccess(ctx context.Context, ref orderRef, provider, paymentID string) (*models.Order, error) {
	var confirmed *models.Order

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.resolveOrder(ctx, repo, ref)
		if err != nil {
			return err
		}
		if order == nil {
			s.logg.Warn(ctx, "payment event matched no order")
			return nil
		}
		ctx := s.logg.WithOrderID(ctx, order.OrderID)

		if order.Status == enums.OrderStatusPaid {
			confirmed = order
			return nil
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusPaid) {
			s.logg.Warn(ctx, "success event ignored for order in state "+order.Status.String())
			confirmed = order
			return nil
		}

		stockReduced := order.StockReduced
		if !stockReduced {
			if _, err := s.inventory.Decrement(ctx, tx, order.Items); err != nil {
				return err
			}
			stockReduced = true
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":         enums.OrderStatusPaid,
			"payment_status": enums.PaymentStatusPaid,
			"stock_reduced":  true,
			"paid_at":        now,
		}
		if paymentID != "" {
			updates["payment_id"] = paymentID
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}

		order.Status = enums.OrderStatusPaid
		order.PaymentStatus = enums.PaymentStatusPaid
		order.StockReduced = stockReduced
		order.PaidAt = &now
		if paymentID != "" {
			order.PaymentID = &paymentID
		}
		confirmed = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     outbox.EventOrderPaid,
			AggregateType: outbox.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderID,
				PaymentID:     paymentID,
				Provider:      provider,
				TotalCents:    order.TotalCents,
				StockReduced:  stockReduced,
				PaidAt:        now,
				CustomerEmail: order.CustomerEmail,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// markFailed handles failed and expired payments. Orders that already
// reached paid or refunded stay put; reduced stock is returned exactly.
func (s *service) markFailed(ctx context.Context, ref orderRef, provider, reason string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.resolveOrder(ctx, repo, ref)
		if err != nil {
			return err
		}
		if order == nil {
			s.logg.Warn(ctx, "failure event matched no order")
			return nil
		}
		ctx := s.logg.WithOrderID(ctx, order.OrderID)

		switch order.Status {
		case enums.OrderStatusFailed:
			return nil
		case enums.OrderStatusPaid, enums.OrderStatusRefunded,
			enums.OrderStatusCancelled, enums.OrderStatusShipped, enums.OrderStatusDelivered:
			s.logg.Warn(ctx, "failure event ignored for order in state "+order.Status.String())
			return nil
		}

		if order.StockReduced {
			if _, err := s.inventory.Restore(ctx, tx, order.Items); err != nil {
				return err
			}
		}

		updates := map[string]any{
			"status":         enums.OrderStatusFailed,
			"stock_reduced":  false,
			"failure_reason": reason,
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order failed")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     outbox.EventOrderFailed,
			AggregateType: outbox.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaymentFailedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderID,
				Provider:    provider,
				Reason:      reason,
			},
		})
	})
}

// markRefunded applies a provider refund. Stock restoration is a policy
// decision: a refund is not necessarily a return.
func (s *service) markRefunded(ctx context.Context, ref orderRef, provider string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.resolveOrder(ctx, repo, ref)
		if err != nil {
			return err
		}
		if order == nil {
			s.logg.Warn(ctx, "refund event matched no order")
			return nil
		}
		ctx := s.logg.WithOrderID(ctx, order.OrderID)

		if order.Status == enums.OrderStatusRefunded {
			return nil
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusRefunded) {
			s.logg.Warn(ctx, "refund event ignored for order in state "+order.Status.String())
			return nil
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":         enums.OrderStatusRefunded,
			"payment_status": enums.PaymentStatusRefunded,
			"refunded_at":    now,
		}

		stockRestored := false
		if s.cfg.RestoreStockOnRefund && order.StockReduced {
			if _, err := s.inventory.Restore(ctx, tx, order.Items); err != nil {
				return err
			}
			updates["stock_reduced"] = false
			stockRestored = true
		}

		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order refunded")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     outbox.EventOrderRefunded,
			AggregateType: outbox.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderRefundedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderID,
				Provider:      provider,
				RefundedAt:    now,
				StockRestored: stockRestored,
			},
		})
	})
}

// resolveOrder tries the correlation candidates in order. Unknown
// references resolve to nil so webhook deliveries for foreign objects are
// acknowledged rather than retried forever.
func (s *service) resolveOrder(ctx context.Context, repo Repository, ref orderRef) (*models.Order, error) {
	lookups := []func() (*models.Order, error){}
	if ref.orderID != nil {
		id := *ref.orderID
		lookups = append(lookups, func() (*models.Order, error) { return repo.FindOrderByID(ctx, id) })
	}
	if ref.stripeSessionID != "" {
		lookups = append(lookups, func() (*models.Order, error) {
			return repo.FindOrderByStripeSession(ctx, ref.stripeSessionID)
		})
	}
	if ref.paypalOrderID != "" {
		lookups = append(lookups, func() (*models.Order, error) {
			return repo.FindOrderByPayPalOrder(ctx, ref.paypalOrderID)
		})
	}
	if ref.paymentID != "" {
		lookups = append(lookups, func() (*models.Order, error) {
			return repo.FindOrderByPaymentID(ctx, ref.paymentID)
		})
	}

	for _, lookup := range lookups {
		order, err := lookup()
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve order")
		}
	}
	return nil, nil
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}
	return &session, nil
}

func decodeIntent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	return &intent, nil
}

func sessionRef(session *stripe.CheckoutSession) orderRef {
	ref := orderRef{stripeSessionID: session.ID}
	if id, ok := metadataOrderID(session.Metadata); ok {
		ref.orderID = &id
	}
	return ref
}

func intentRef(intent *stripe.PaymentIntent) orderRef {
	ref := orderRef{paymentID: intent.ID}
	if id, ok := metadataOrderID(intent.Metadata); ok {
		ref.orderID = &id
	}
	return ref
}

func paymentIntentID(session *stripe.CheckoutSession) string {
	if session.PaymentIntent != nil {
		return session.PaymentIntent.ID
	}
	return ""
}

func metadataOrderID(metadata map[string]string) (uuid.UUID, bool) {
	raw, ok := metadata["orderId"]
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
