package campaigns

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
)

// CreateCampaignInput is the payload for drafting a new campaign.
type CreateCampaignInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Subject  string `json:"subject" validate:"required,max=300"`
	BodyHTML string `json:"body_html" validate:"required"`
}

// UpdateCampaignInput carries partial edits to a draft campaign.
type UpdateCampaignInput struct {
	Name     *string `json:"name" validate:"omitempty,max=200"`
	Subject  *string `json:"subject" validate:"omitempty,max=300"`
	BodyHTML *string `json:"body_html"`
}

// ScheduleCampaignInput sets the send time for a draft campaign.
type ScheduleCampaignInput struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// SubscribeInput registers an address on the marketing list.
type SubscribeInput struct {
	Email string  `json:"email" validate:"required,email"`
	Name  *string `json:"name" validate:"omitempty,max=200"`
}

// CampaignDTO is the API shape of a campaign.
type CampaignDTO struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Subject        string     `json:"subject"`
	BodyHTML       string     `json:"body_html"`
	Status         string     `json:"status"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	RecipientCount int        `json:"recipient_count"`
	FailureCount   int        `json:"failure_count"`
	LastError      *string    `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SubscriberDTO is the API shape of a list member.
type SubscriberDTO struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	Name           *string    `json:"name,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toCampaignDTO(campaign *models.Campaign) *CampaignDTO {
	return &CampaignDTO{
		ID:             campaign.ID,
		Name:           campaign.Name,
		Subject:        campaign.Subject,
		BodyHTML:       campaign.BodyHTML,
		Status:         campaign.Status.String(),
		ScheduledAt:    campaign.ScheduledAt,
		SentAt:         campaign.SentAt,
		RecipientCount: campaign.RecipientCount,
		FailureCount:   campaign.FailureCount,
		LastError:      campaign.LastError,
		CreatedAt:      campaign.CreatedAt,
		UpdatedAt:      campaign.UpdatedAt,
	}
}

func toSubscriberDTO(sub *models.Subscriber) *SubscriberDTO {
	return &SubscriberDTO{
		ID:             sub.ID,
		Email:          sub.Email,
		Name:           sub.Name,
		UnsubscribedAt: sub.UnsubscribedAt,
		CreatedAt:      sub.CreatedAt,
	}
}
