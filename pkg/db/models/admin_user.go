package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AdminUser represents a back-office operator identity.
type AdminUser struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Name         string     `gorm:"column:name;not null"`
	RoleID       *uuid.UUID `gorm:"column:role_id;type:uuid"`
	Role         *Role      `gorm:"foreignKey:RoleID"`
	// Grants are capabilities assigned directly to the admin on top of the
	// role's set.
	Grants       pq.StringArray `gorm:"column:grants;type:text[]"`
	IsSuperAdmin bool           `gorm:"column:is_super_admin;not null;default:false"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
