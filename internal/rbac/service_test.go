package rbac

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
)

func setupRBACTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:rbac_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	stmts := []string{`
CREATE TABLE IF NOT EXISTS roles (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  description TEXT,
  capabilities TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS admin_users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  name TEXT NOT NULL,
  role_id TEXT,
  grants TEXT,
  is_super_admin INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`}

	for _, stmt := range stmts {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func newRBACService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := setupRBACTestDB(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return svc, conn
}

func TestCapabilitySet(t *testing.T) {
	t.Parallel()

	set := NewSet(CapOrdersRead, CapOrdersWrite)
	assert.True(t, set.Has(CapOrdersRead))
	assert.False(t, set.Has(CapCatalogWrite))
	assert.False(t, set.IsSuper())

	super := SuperAdminSet()
	assert.True(t, super.Has(CapPrivacyWrite))
	assert.True(t, super.IsSuper())
	assert.Empty(t, super.List())

	merged := set.Union(NewSet(CapCatalogWrite))
	assert.True(t, merged.Has(CapCatalogWrite))
	assert.Equal(t, []string{"catalog.write", "orders.read", "orders.write"}, merged.Strings())

	assert.True(t, set.Union(super).IsSuper())

	_, err := ParseSet([]string{"orders.read", "*"})
	assert.Error(t, err)
}

func TestEffectiveSet(t *testing.T) {
	t.Parallel()

	role := &models.Role{Name: "support", Capabilities: []string{"orders.read"}}

	admin := &models.AdminUser{Role: role, Grants: []string{"cms.write"}}
	set, err := EffectiveSet(admin)
	require.NoError(t, err)
	assert.True(t, set.Has(CapOrdersRead))
	assert.True(t, set.Has(CapCMSWrite))
	assert.False(t, set.Has(CapAdminsWrite))

	super := &models.AdminUser{IsSuperAdmin: true}
	set, err = EffectiveSet(super)
	require.NoError(t, err)
	assert.True(t, set.Has(CapAdminsWrite))

	roleless := &models.AdminUser{}
	set, err = EffectiveSet(roleless)
	require.NoError(t, err)
	assert.False(t, set.Has(CapOrdersRead))
}

func TestCreateRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newRBACService(t)

	dto, err := svc.CreateRole(ctx, CreateRoleInput{
		Name:         "Content Editor",
		Capabilities: []string{"cms.write", "campaigns.write"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Content Editor", dto.Name)
	assert.Equal(t, []string{"campaigns.write", "cms.write"}, dto.Capabilities)

	_, err = svc.CreateRole(ctx, CreateRoleInput{
		Name:         "Content Editor",
		Capabilities: []string{"cms.write"},
	})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	_, err = svc.CreateRole(ctx, CreateRoleInput{
		Name:         "Wildcards",
		Capabilities: []string{"*"},
	})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestUpdateRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newRBACService(t)

	created, err := svc.CreateRole(ctx, CreateRoleInput{
		Name:         "support",
		Capabilities: []string{"orders.read"},
	})
	require.NoError(t, err)

	caps := []string{"orders.read", "orders.write"}
	updated, err := svc.UpdateRole(ctx, created.ID, UpdateRoleInput{Capabilities: &caps})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders.read", "orders.write"}, updated.Capabilities)

	_, err = svc.UpdateRole(ctx, uuid.New(), UpdateRoleInput{})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestDeleteRoleInUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, conn := newRBACService(t)

	created, err := svc.CreateRole(ctx, CreateRoleInput{
		Name:         "ops",
		Capabilities: []string{"orders.write"},
	})
	require.NoError(t, err)

	admin := &models.AdminUser{
		ID:           uuid.New(),
		Email:        "ops@kzarre.com",
		PasswordHash: "x",
		Name:         "Ops Admin",
		RoleID:       &created.ID,
		IsActive:     true,
	}
	require.NoError(t, conn.Create(admin).Error)

	err = svc.DeleteRole(ctx, created.ID)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	require.NoError(t, conn.Delete(&models.AdminUser{}, "id = ?", admin.ID).Error)
	require.NoError(t, svc.DeleteRole(ctx, created.ID))

	_, err = svc.GetRole(ctx, created.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
