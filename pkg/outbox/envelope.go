package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type and aggregate identifiers recorded on outbox rows.
const (
	EventOrderCreated  = "order.created"
	EventOrderPaid     = "order.paid"
	EventOrderFailed   = "order.payment_failed"
	EventOrderRefunded = "order.refunded"
	EventOrderCanceled = "order.cancelled"
	EventCampaignSent  = "campaign.sent"

	AggregateOrder    = "order"
	AggregateCampaign = "campaign"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	AdminID uuid.UUID `json:"adminId"`
	Role    string    `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
