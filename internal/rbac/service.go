package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
)

// Service manages admin roles.
type Service interface {
	CreateRole(ctx context.Context, input CreateRoleInput) (*RoleDTO, error)
	UpdateRole(ctx context.Context, id uuid.UUID, input UpdateRoleInput) (*RoleDTO, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	GetRole(ctx context.Context, id uuid.UUID) (*RoleDTO, error)
	ListRoles(ctx context.Context) ([]RoleDTO, error)
}

type service struct {
	repo Repository
}

// NewService builds the role service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rbac repository required")
	}
	return &service{repo: repo}, nil
}

// EffectiveSet resolves the capabilities an admin actually holds: super
// admins bypass everything, everyone else gets role capabilities plus
// direct grants.
func EffectiveSet(admin *models.AdminUser) (Set, error) {
	if admin == nil {
		return Set{}, fmt.Errorf("admin required")
	}
	if admin.IsSuperAdmin {
		return SuperAdminSet(), nil
	}
	set := NewSet()
	if admin.Role != nil {
		roleSet, err := ParseSet(admin.Role.Capabilities)
		if err != nil {
			return Set{}, fmt.Errorf("role %s: %w", admin.Role.Name, err)
		}
		set = set.Union(roleSet)
	}
	grants, err := ParseSet(admin.Grants)
	if err != nil {
		return Set{}, fmt.Errorf("admin grants: %w", err)
	}
	return set.Union(grants), nil
}

func (s *service) CreateRole(ctx context.Context, input CreateRoleInput) (*RoleDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role name required")
	}
	set, err := ParseSet(input.Capabilities)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid capabilities")
	}
	if len(set.List()) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one capability required")
	}

	role := &models.Role{
		ID:           uuid.New(),
		Name:         name,
		Description:  input.Description,
		Capabilities: pq.StringArray(set.Strings()),
	}
	if err := s.repo.Create(ctx, role); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "role name already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create role")
	}
	return toRoleDTO(role), nil
}

func (s *service) UpdateRole(ctx context.Context, id uuid.UUID, input UpdateRoleInput) (*RoleDTO, error) {
	role, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "role name required")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Capabilities != nil {
		set, err := ParseSet(*input.Capabilities)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid capabilities")
		}
		if len(set.List()) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one capability required")
		}
		updates["capabilities"] = pq.StringArray(set.Strings())
	}
	if len(updates) == 0 {
		return toRoleDTO(role), nil
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "role name already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
	}
	return s.GetRole(ctx, id)
}

func (s *service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountAdminsWithRole(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count role admins")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("role is assigned to %d admin(s)", count))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete role")
	}
	return nil
}

func (s *service) GetRole(ctx context.Context, id uuid.UUID) (*RoleDTO, error) {
	role, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toRoleDTO(role), nil
}

func (s *service) ListRoles(ctx context.Context) ([]RoleDTO, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list roles")
	}
	out := make([]RoleDTO, 0, len(roles))
	for i := range roles {
		out = append(out, *toRoleDTO(&roles[i]))
	}
	return out, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "role not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load role")
	}
	return role, nil
}
