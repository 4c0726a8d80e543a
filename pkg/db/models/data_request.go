package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/enums"
)

// DataRequest is a customer privacy request (export or erasure).
type DataRequest struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email       string                  `gorm:"column:email;not null;index"`
	Type        enums.DataRequestType   `gorm:"column:type;type:text;not null"`
	Status      enums.DataRequestStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Notes       *string                 `gorm:"column:notes"`
	ProcessedBy *uuid.UUID              `gorm:"column:processed_by;type:uuid"`
	ProcessedAt *time.Time              `gorm:"column:processed_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
