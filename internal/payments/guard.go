package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kzarre/kzarre-backend/pkg/redis"
)

// EventGuard is the first idempotency layer: a Redis SETNX on the provider
// event id. The second layer is the status/stock_reduced check inside the
// confirmation transaction, which also covers Redis being unavailable.
type EventGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewEventGuard builds a guard scoped to one provider's webhook stream.
func NewEventGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*EventGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &EventGuard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark claims the event id, reporting true when another delivery
// already holds it.
func (g *EventGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release frees the claim so the provider's retry can reprocess the event.
func (g *EventGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, eventID))
}
