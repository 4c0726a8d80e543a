package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/internal/inventory"
	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/outbox"
	"github.com/kzarre/kzarre-backend/pkg/outbox/payloads"
	"github.com/kzarre/kzarre-backend/pkg/pagination"
)

const expireBatchSize = 100

// Service exposes the order status API: reads, admin status patches, user
// cancellation, COD confirmation, and pending-order expiry.
type Service interface {
	GetOrder(ctx context.Context, orderNumber string) (*OrderDTO, error)
	ListOrders(ctx context.Context, filters OrderFilters) (*OrderList, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error)
	CancelOrder(ctx context.Context, input CancelOrderInput) (*OrderDTO, error)
	ConfirmCOD(ctx context.Context, orderNumber string, actor *outbox.ActorRef) (*OrderDTO, error)
	ExpirePending(ctx context.Context) (int, error)
}

// UpdateStatusInput is an admin-initiated status patch.
type UpdateStatusInput struct {
	OrderNumber string
	Status      enums.OrderStatus
	Reason      string
	Actor       *outbox.ActorRef
}

// CancelOrderInput cancels an order on the customer's or an admin's behalf.
type CancelOrderInput struct {
	OrderNumber string
	Reason      string
	Actor       *outbox.ActorRef
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory inventory.Service
	outbox    outboxPublisher
	cfg       config.OrdersConfig
	logg      *logger.Logger
}

// NewService builds the order status service.
func NewService(repo Repository, tx txRunner, inv inventory.Service, publisher outboxPublisher, cfg config.OrdersConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		inventory: inv,
		outbox:    publisher,
		cfg:       cfg,
		logg:      logg,
	}, nil
}

func (s *service) GetOrder(ctx context.Context, orderNumber string) (*OrderDTO, error) {
	order, err := s.loadByNumber(ctx, s.repo, orderNumber)
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

func (s *service) ListOrders(ctx context.Context, filters OrderFilters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	rows, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	rows, next := pagination.Page(rows, filters.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})

	list := &OrderList{
		Orders:     make([]OrderDTO, 0, len(rows)),
		NextCursor: next,
	}
	for i := range rows {
		list.Orders = append(list.Orders, *toOrderDTO(&rows[i]))
	}
	return list, nil
}

// UpdateStatus applies an admin status patch. With transition enforcement on
// (the default) the patch must be a legal state-machine move; turning the
// flag off allows any enumerated status except that cancellation always goes
// through the cancel matrix.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if input.Status == enums.OrderStatusCancelled {
		return s.CancelOrder(ctx, CancelOrderInput{
			OrderNumber: input.OrderNumber,
			Reason:      input.Reason,
			Actor:       input.Actor,
		})
	}

	var dto *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadByNumber(ctx, repo, input.OrderNumber)
		if err != nil {
			return err
		}
		if order.Status == input.Status {
			dto = toOrderDTO(order)
			return nil
		}
		if s.cfg.EnforceTransitions && !order.Status.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Status))
		}

		if err := s.applyStatus(ctx, tx, repo, order, input.Status, input.Reason, input.Actor); err != nil {
			return err
		}
		dto = toOrderDTO(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// CancelOrder enforces the cancel matrix regardless of the enforcement
// flag: delivered, refunded, and already-cancelled orders stay put.
func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) (*OrderDTO, error) {
	var dto *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadByNumber(ctx, repo, input.OrderNumber)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			dto = toOrderDTO(order)
			return nil
		}
		if !order.Status.IsCancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in state %s cannot be cancelled", order.Status))
		}

		if err := s.applyStatus(ctx, tx, repo, order, enums.OrderStatusCancelled, input.Reason, input.Actor); err != nil {
			return err
		}
		dto = toOrderDTO(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// ConfirmCOD marks a pending cash-on-delivery order as paid, taking stock
// the same way a gateway confirmation would.
func (s *service) ConfirmCOD(ctx context.Context, orderNumber string, actor *outbox.ActorRef) (*OrderDTO, error) {
	var dto *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadByNumber(ctx, repo, orderNumber)
		if err != nil {
			return err
		}
		if order.PaymentMethod != enums.PaymentMethodCOD {
			return pkgerrors.New(pkgerrors.CodeValidation, "order is not cash on delivery")
		}
		if order.Status == enums.OrderStatusPaid {
			dto = toOrderDTO(order)
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cod order in state %s cannot be confirmed", order.Status))
		}

		if err := s.applyStatus(ctx, tx, repo, order, enums.OrderStatusPaid, "", actor); err != nil {
			return err
		}
		dto = toOrderDTO(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// ExpirePending fails pending orders older than the configured TTL. Each
// order expires in its own transaction so one failure does not hold up the
// batch. Returns how many orders were expired.
func (s *service) ExpirePending(ctx context.Context) (int, error) {
	if s.cfg.PendingTTL <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-s.cfg.PendingTTL)

	rows, err := s.repo.ListExpiredPending(ctx, cutoff, expireBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired orders")
	}

	expired := 0
	for i := range rows {
		order := rows[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			fresh, err := repo.FindByID(ctx, order.ID)
			if err != nil {
				return err
			}
			if fresh.Status != enums.OrderStatusPending {
				return nil
			}
			return s.applyStatus(ctx, tx, repo, fresh, enums.OrderStatusFailed, "pending order expired", nil)
		})
		if err != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.OrderID), "expire pending order", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// applyStatus writes the target status and its side effects. Callers have
// already checked legality; this only keeps the stock ledger consistent.
func (s *service) applyStatus(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, target enums.OrderStatus, reason string, actor *outbox.ActorRef) error {
	now := time.Now().UTC()
	updates := map[string]any{"status": target}
	var event *outbox.DomainEvent

	switch target {
	case enums.OrderStatusPaid:
		if !order.StockReduced {
			if _, err := s.inventory.Decrement(ctx, tx, order.Items); err != nil {
				return err
			}
			order.StockReduced = true
		}
		updates["payment_status"] = enums.PaymentStatusPaid
		updates["stock_reduced"] = true
		updates["paid_at"] = now
		order.PaymentStatus = enums.PaymentStatusPaid
		order.PaidAt = &now
		event = &outbox.DomainEvent{
			EventType:     outbox.EventOrderPaid,
			AggregateType: outbox.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderID,
				Provider:      string(order.PaymentMethod),
				TotalCents:    order.TotalCents,
				StockReduced:  true,
				PaidAt:        now,
				CustomerEmail: order.CustomerEmail,
			},
		}

	case enums.OrderStatusFailed:
		if order.StockReduced {
			if _, err := s.inventory.Restore(ctx, tx, order.Items); err != nil {
				return err
			}
			order.StockReduced = false
		}
		updates["stock_reduced"] = false
		if reason != "" {
			updates["failure_reason"] = reason
			order.FailureReason = &reason
		}
		event = &outbox.DomainEvent{
			EventType:     outbox.EventOrderFailed,
			AggregateType: outbox.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderPaymentFailedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderID,
				Provider:    string(order.PaymentMethod),
				Reason:      reason,
			},
		}

	case enums.OrderStatusCancelled:
		if order.StockReduced {
			if _, err := s.inventory.Restore(ctx, tx, order.Items); err != nil {
				return err
			}
			order.StockReduced = false
		}
		updates["stock_reduced"] = false
		updates["cancelled_at"] = now
		order.CancelledAt = &now
		event = &outbox.DomainEvent{
			EventType:     outbox.EventOrderCanceled,
			AggregateType: outbox.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderCanceledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderID,
				CanceledAt:  now,
				Reason:      reason,
			},
		}

	case enums.OrderStatusRefunded:
		stockRestored := false
		if s.cfg.RestoreStockOnRefund && order.StockReduced {
			if _, err := s.inventory.Restore(ctx, tx, order.Items); err != nil {
				return err
			}
			order.StockReduced = false
			updates["stock_reduced"] = false
			stockRestored = true
		}
		updates["payment_status"] = enums.PaymentStatusRefunded
		updates["refunded_at"] = now
		order.PaymentStatus = enums.PaymentStatusRefunded
		order.RefundedAt = &now
		event = &outbox.DomainEvent{
			EventType:     outbox.EventOrderRefunded,
			AggregateType: outbox.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderRefundedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderID,
				Provider:      string(order.PaymentMethod),
				RefundedAt:    now,
				StockRestored: stockRestored,
			},
		}

	case enums.OrderStatusShipped:
		updates["shipped_at"] = now
		order.ShippedAt = &now

	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
		order.DeliveredAt = &now
	}

	if err := repo.Update(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	order.Status = target

	if event != nil {
		return s.outbox.Emit(ctx, tx, *event)
	}
	return nil
}

func (s *service) loadByNumber(ctx context.Context, repo Repository, orderNumber string) (*models.Order, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
