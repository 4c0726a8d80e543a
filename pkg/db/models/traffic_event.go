package models

import (
	"time"

	"github.com/google/uuid"
)

// TrafficEvent is a single storefront page view.
type TrafficEvent struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Path      string    `gorm:"column:path;not null;index"`
	Referrer  *string   `gorm:"column:referrer"`
	VisitorID string    `gorm:"column:visitor_id;not null;index"`
	IP        string    `gorm:"column:ip;not null"`
	UserAgent *string   `gorm:"column:user_agent"`
	Browser   *string   `gorm:"column:browser"`
	OS        *string   `gorm:"column:os"`
	Device    *string   `gorm:"column:device"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}
