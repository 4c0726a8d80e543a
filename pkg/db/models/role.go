package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Role names a reusable set of admin capabilities.
type Role struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string         `gorm:"column:name;not null;uniqueIndex"`
	Description  *string        `gorm:"column:description"`
	Capabilities pq.StringArray `gorm:"column:capabilities;type:text[]"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
