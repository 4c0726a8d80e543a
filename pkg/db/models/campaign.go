package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/enums"
)

// Campaign is an email marketing campaign sent to subscribers.
type Campaign struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string               `gorm:"column:name;not null"`
	Subject        string               `gorm:"column:subject;not null"`
	BodyHTML       string               `gorm:"column:body_html;not null"`
	Status         enums.CampaignStatus `gorm:"column:status;type:text;not null;default:'draft'"`
	ScheduledAt    *time.Time           `gorm:"column:scheduled_at;index"`
	SentAt         *time.Time           `gorm:"column:sent_at"`
	RecipientCount int                  `gorm:"column:recipient_count;not null;default:0"`
	FailureCount   int                  `gorm:"column:failure_count;not null;default:0"`
	LastError      *string              `gorm:"column:last_error"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// Subscriber is a marketing list member.
type Subscriber struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name           *string    `gorm:"column:name"`
	UnsubscribedAt *time.Time `gorm:"column:unsubscribed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
