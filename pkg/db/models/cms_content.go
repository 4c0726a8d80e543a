package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/enums"
)

// CMSContent is a scheduled storefront content entry (banners, pages, blocks).
type CMSContent struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug        string          `gorm:"column:slug;not null;uniqueIndex"`
	Kind        string          `gorm:"column:kind;not null;index"`
	Title       string          `gorm:"column:title;not null"`
	Body        string          `gorm:"column:body;not null"`
	Status      enums.CMSStatus `gorm:"column:status;type:text;not null;default:'draft'"`
	VisibleAt   *time.Time      `gorm:"column:visible_at;index"`
	PublishedAt *time.Time      `gorm:"column:published_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
