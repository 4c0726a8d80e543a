package traffic

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
)

// TrackInput is a single page view reported by the storefront.
type TrackInput struct {
	Path      string  `json:"path" validate:"required,max=2048"`
	Referrer  *string `json:"referrer" validate:"omitempty,max=2048"`
	VisitorID string  `json:"visitor_id" validate:"required,max=128"`

	// Filled from the request by the controller, not the client body.
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// TrackResult reports what the tracker recorded.
type TrackResult struct {
	EventID    uuid.UUID `json:"event_id"`
	FirstVisit bool      `json:"first_visit"`
}

// EventFilters narrows the admin event listing.
type EventFilters struct {
	Path      *string
	VisitorID *string
	Limit     int
	Cursor    string
}

// EventDTO is the API shape of a recorded page view.
type EventDTO struct {
	ID        uuid.UUID `json:"id"`
	Path      string    `json:"path"`
	Referrer  *string   `json:"referrer,omitempty"`
	VisitorID string    `json:"visitor_id"`
	IP        string    `json:"ip"`
	Browser   *string   `json:"browser,omitempty"`
	OS        *string   `json:"os,omitempty"`
	Device    *string   `json:"device,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventList is a cursor page of events.
type EventList struct {
	Events     []EventDTO `json:"events"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// StatsDTO aggregates traffic over a window.
type StatsDTO struct {
	PageViews      int64     `json:"page_views"`
	UniqueVisitors int64     `json:"unique_visitors"`
	Since          time.Time `json:"since"`
}

func toEventDTO(event *models.TrafficEvent) EventDTO {
	return EventDTO{
		ID:        event.ID,
		Path:      event.Path,
		Referrer:  event.Referrer,
		VisitorID: event.VisitorID,
		IP:        event.IP,
		Browser:   event.Browser,
		OS:        event.OS,
		Device:    event.Device,
		CreatedAt: event.CreatedAt,
	}
}
