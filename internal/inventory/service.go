package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
)

// Movement records the outcome of a single line's stock decrement.
type Movement struct {
	OrderItemID uuid.UUID  `json:"order_item_id"`
	ProductID   uuid.UUID  `json:"product_id"`
	VariantID   *uuid.UUID `json:"variant_id,omitempty"`
	Requested   int        `json:"requested"`
	Applied     int        `json:"applied"`
}

// Service maintains the stock ledger for orders. Decrement is applied once
// when a payment confirms, Restore returns exactly what Decrement took.
type Service interface {
	Decrement(ctx context.Context, tx *gorm.DB, items []models.OrderItem) ([]Movement, error)
	Restore(ctx context.Context, tx *gorm.DB, items []models.OrderItem) (int, error)
}

type service struct {
	repo Repository
}

// NewService builds the inventory ledger service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

// Decrement removes stock for each order item, clamping at zero when a line
// is oversold, and records the applied quantity on the item itself. The
// recorded quantity is the only amount a later Restore will return.
func (s *service) Decrement(ctx context.Context, tx *gorm.DB, items []models.OrderItem) ([]Movement, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock decrement")
	}

	repo := s.repo.WithTx(tx)
	movements := make([]Movement, 0, len(items))
	touched := make(map[uuid.UUID]struct{})

	for i := range items {
		item := &items[i]
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order item quantity must be positive")
		}

		var (
			applied int
			err     error
		)
		if item.VariantID != nil {
			applied, err = repo.DecrementVariantStock(ctx, *item.VariantID, item.Quantity)
			touched[item.ProductID] = struct{}{}
		} else {
			applied, err = repo.DecrementProductStock(ctx, item.ProductID, item.Quantity)
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}

		if err := repo.SetItemDecrementedQty(ctx, item.ID, applied); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record decremented quantity")
		}
		item.DecrementedQty = applied

		movements = append(movements, Movement{
			OrderItemID: item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			Requested:   item.Quantity,
			Applied:     applied,
		})
	}

	for productID := range touched {
		if err := repo.RecalcProductStock(ctx, productID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recalculate product stock")
		}
	}

	return movements, nil
}

// Restore returns previously decremented stock. Each item gives back its
// recorded DecrementedQty, never the ordered quantity, and the record is
// cleared so a repeated restore is a no-op. Returns the total units restored.
func (s *service) Restore(ctx context.Context, tx *gorm.DB, items []models.OrderItem) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock restore")
	}

	repo := s.repo.WithTx(tx)
	restored := 0
	touched := make(map[uuid.UUID]struct{})

	for i := range items {
		item := &items[i]
		qty := item.DecrementedQty
		if qty <= 0 {
			continue
		}

		var err error
		if item.VariantID != nil {
			err = repo.RestoreVariantStock(ctx, *item.VariantID, qty)
			touched[item.ProductID] = struct{}{}
		} else {
			err = repo.RestoreProductStock(ctx, item.ProductID, qty)
		}
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}

		if err := repo.SetItemDecrementedQty(ctx, item.ID, 0); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear decremented quantity")
		}
		item.DecrementedQty = 0
		restored += qty
	}

	for productID := range touched {
		if err := repo.RecalcProductStock(ctx, productID); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recalculate product stock")
		}
	}

	return restored, nil
}
