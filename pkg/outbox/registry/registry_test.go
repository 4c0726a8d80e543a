package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/outbox"
	"github.com/kzarre/kzarre-backend/pkg/outbox/payloads"
)

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrdersTopic:    "kz-order-events",
		MarketingTopic: "kz-marketing-events",
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func envelopeRow(t *testing.T, eventType, aggregateType string, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{MarketingTopic: "m"}); err == nil {
		t.Fatalf("expected error without orders topic")
	}
	if _, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "o"}); err == nil {
		t.Fatalf("expected error without marketing topic")
	}
}

func TestResolveOrderCreated(t *testing.T) {
	reg := testRegistry(t)
	orderID := uuid.New()
	row := envelopeRow(t, outbox.EventOrderCreated, outbox.AggregateOrder, payloads.OrderCreatedEvent{OrderID: orderID})

	resolved, err := reg.Resolve(row)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Descriptor.Topic != "kz-order-events" {
		t.Fatalf("unexpected topic %s", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID {
		t.Fatalf("payload order id mismatch")
	}
}

func TestResolveCampaignSentRoutesToMarketingTopic(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, outbox.EventCampaignSent, outbox.AggregateCampaign, payloads.CampaignSentEvent{CampaignID: uuid.New()})

	resolved, err := reg.Resolve(row)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Descriptor.Topic != "kz-marketing-events" {
		t.Fatalf("unexpected topic %s", resolved.Descriptor.Topic)
	}
}

func TestResolveRejectsUnknownEventType(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, "order.teleported", outbox.AggregateOrder, payloads.OrderCreatedEvent{})

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestResolveRejectsAggregateMismatch(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, outbox.EventOrderCreated, outbox.AggregateCampaign, payloads.OrderCreatedEvent{})

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestResolveRejectsEmptyData(t *testing.T) {
	reg := testRegistry(t)
	row := envelopeRow(t, outbox.EventOrderCreated, outbox.AggregateOrder, nil)

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}
