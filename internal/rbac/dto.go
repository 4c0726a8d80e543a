package rbac

import (
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
)

// CreateRoleInput carries a new role definition.
type CreateRoleInput struct {
	Name         string   `json:"name" validate:"required,min=2,max=64"`
	Description  *string  `json:"description,omitempty"`
	Capabilities []string `json:"capabilities" validate:"required,min=1"`
}

// UpdateRoleInput patches an existing role. Nil fields stay untouched.
type UpdateRoleInput struct {
	Name         *string   `json:"name,omitempty" validate:"omitempty,min=2,max=64"`
	Description  *string   `json:"description,omitempty"`
	Capabilities *[]string `json:"capabilities,omitempty" validate:"omitempty,min=1"`
}

// RoleDTO is the API shape of a role.
type RoleDTO struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	Capabilities []string  `json:"capabilities"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toRoleDTO(role *models.Role) *RoleDTO {
	return &RoleDTO{
		ID:           role.ID,
		Name:         role.Name,
		Description:  role.Description,
		Capabilities: append([]string(nil), role.Capabilities...),
		CreatedAt:    role.CreatedAt,
		UpdatedAt:    role.UpdatedAt,
	}
}
