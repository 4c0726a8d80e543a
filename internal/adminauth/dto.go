package adminauth

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/internal/rbac"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
)

// LoginRequest carries admin credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the token pair and the authenticated admin.
type LoginResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	Admin        AdminDTO `json:"admin"`
}

// RefreshRequest rotates a token pair.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshResponse carries the rotated pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest revokes the session tied to the access token.
type LogoutRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

// CreateAdminInput provisions a back-office operator.
type CreateAdminInput struct {
	Email    string     `json:"email" validate:"required,email"`
	Name     string     `json:"name" validate:"required,min=2,max=120"`
	Password string     `json:"password,omitempty" validate:"omitempty,min=10"`
	RoleID   *uuid.UUID `json:"role_id,omitempty"`
	Grants   []string   `json:"grants,omitempty"`
}

// CreateAdminResult returns the created admin and, when no password was
// supplied, the generated temporary one.
type CreateAdminResult struct {
	Admin        AdminDTO `json:"admin"`
	TempPassword string   `json:"temp_password,omitempty"`
}

// UpdateAdminInput patches an admin. Nil fields stay untouched.
type UpdateAdminInput struct {
	Name     *string    `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	RoleID   *uuid.UUID `json:"role_id,omitempty"`
	Grants   *[]string  `json:"grants,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}

// AdminDTO is the API shape of an admin user.
type AdminDTO struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	RoleID       *uuid.UUID `json:"role_id,omitempty"`
	RoleName     string     `json:"role_name,omitempty"`
	Grants       []string   `json:"grants,omitempty"`
	Capabilities []string   `json:"capabilities"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toAdminDTO(admin *models.AdminUser) AdminDTO {
	dto := AdminDTO{
		ID:           admin.ID,
		Email:        admin.Email,
		Name:         admin.Name,
		RoleID:       admin.RoleID,
		Grants:       append([]string(nil), admin.Grants...),
		IsSuperAdmin: admin.IsSuperAdmin,
		IsActive:     admin.IsActive,
		LastLoginAt:  admin.LastLoginAt,
		CreatedAt:    admin.CreatedAt,
	}
	if admin.Role != nil {
		dto.RoleName = admin.Role.Name
	}
	if set, err := rbac.EffectiveSet(admin); err == nil {
		dto.Capabilities = set.Strings()
	}
	return dto
}
