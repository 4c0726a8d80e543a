package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/types"
)

// AuditSettings is the persisted audit configuration. Exactly one row is
// expected; readers fall back to defaults when none exists.
type AuditSettings struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Enabled       bool      `gorm:"column:enabled;not null;default:true"`
	RetentionDays int       `gorm:"column:retention_days;not null;default:90"`
	MaskIPs       bool      `gorm:"column:mask_ips;not null;default:false"`
	UpdatedBy     *uuid.UUID `gorm:"column:updated_by;type:uuid"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// AuditLog is an append-only record of an admin action.
type AuditLog struct {
	ID         uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActorID    uuid.UUID     `gorm:"column:actor_id;type:uuid;not null;index"`
	Action     string        `gorm:"column:action;not null"`
	Resource   string        `gorm:"column:resource;not null;index"`
	ResourceID *string       `gorm:"column:resource_id"`
	Metadata   types.JSONMap `gorm:"column:metadata;type:jsonb;serializer:json"`
	IP         *string       `gorm:"column:ip"`
	CreatedAt  time.Time     `gorm:"column:created_at;autoCreateTime;index"`
}
