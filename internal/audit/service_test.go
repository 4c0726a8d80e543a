package audit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/types"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:audit_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	stmts := []string{`
CREATE TABLE IF NOT EXISTS audit_settings (
  id TEXT PRIMARY KEY,
  enabled INTEGER NOT NULL DEFAULT 1,
  retention_days INTEGER NOT NULL DEFAULT 90,
  mask_ips INTEGER NOT NULL DEFAULT 0,
  updated_by TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS audit_logs (
  id TEXT PRIMARY KEY,
  actor_id TEXT NOT NULL,
  action TEXT NOT NULL,
  resource TEXT NOT NULL,
  resource_id TEXT,
  metadata TEXT,
  ip TEXT,
  created_at DATETIME
);`}

	for _, stmt := range stmts {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func newAuditService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := setupAuditTestDB(t)
	svc, err := NewService(NewRepository(conn), logger.New(logger.Options{ServiceName: "audit-test", Output: io.Discard}))
	require.NoError(t, err)
	return svc, conn
}

func TestSettingsDefaultsAndLatestWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newAuditService(t)

	settings, err := svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.Equal(t, 90, settings.RetentionDays)
	assert.Nil(t, settings.UpdatedBy)

	admin := uuid.New()
	_, err = svc.SaveSettings(ctx, SaveSettingsInput{Enabled: true, RetentionDays: 30, UpdatedBy: admin})
	require.NoError(t, err)

	other := uuid.New()
	saved, err := svc.SaveSettings(ctx, SaveSettingsInput{Enabled: false, RetentionDays: 14, MaskIPs: true, UpdatedBy: other})
	require.NoError(t, err)
	assert.False(t, saved.Enabled)
	assert.Equal(t, 14, saved.RetentionDays)
	require.NotNil(t, saved.UpdatedBy)
	assert.Equal(t, other, *saved.UpdatedBy)

	_, err = svc.SaveSettings(ctx, SaveSettingsInput{RetentionDays: 0, UpdatedBy: admin})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestRecordHonorsSettings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, conn := newAuditService(t)
	actor := uuid.New()

	resourceID := "ORD-000201"
	ip := "203.0.113.77"
	require.NoError(t, svc.Record(ctx, Entry{
		ActorID:    actor,
		Action:     "order.cancel",
		Resource:   "orders",
		ResourceID: &resourceID,
		Metadata:   types.JSONMap{"reason": "customer request"},
		IP:         &ip,
	}))

	var stored models.AuditLog
	require.NoError(t, conn.First(&stored, "actor_id = ?", actor).Error)
	assert.Equal(t, "order.cancel", stored.Action)
	require.NotNil(t, stored.IP)
	assert.Equal(t, ip, *stored.IP)

	// Masking applies to entries recorded after the setting flips.
	_, err := svc.SaveSettings(ctx, SaveSettingsInput{Enabled: true, RetentionDays: 90, MaskIPs: true, UpdatedBy: actor})
	require.NoError(t, err)
	require.NoError(t, svc.Record(ctx, Entry{ActorID: actor, Action: "order.refund", Resource: "orders", IP: &ip}))

	var masked models.AuditLog
	require.NoError(t, conn.First(&masked, "action = ?", "order.refund").Error)
	require.NotNil(t, masked.IP)
	assert.Equal(t, "203.0.113.0", *masked.IP)

	// Disabled auditing drops entries silently.
	_, err = svc.SaveSettings(ctx, SaveSettingsInput{Enabled: false, RetentionDays: 90, UpdatedBy: actor})
	require.NoError(t, err)
	require.NoError(t, svc.Record(ctx, Entry{ActorID: actor, Action: "order.ship", Resource: "orders"}))

	var count int64
	require.NoError(t, conn.Model(&models.AuditLog{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestListLogsPagination(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, conn := newAuditService(t)
	actor := uuid.New()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		entry := &models.AuditLog{
			ID:        uuid.New(),
			ActorID:   actor,
			Action:    "catalog.update",
			Resource:  "products",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(entry).Error)
	}

	page, err := svc.ListLogs(ctx, LogFilters{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 3)
	require.NotEmpty(t, page.NextCursor)

	rest, err := svc.ListLogs(ctx, LogFilters{Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, rest.Entries, 2)
	assert.Empty(t, rest.NextCursor)

	resource := "nothing"
	empty, err := svc.ListLogs(ctx, LogFilters{Resource: &resource, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
}

func TestPruneExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, conn := newAuditService(t)
	actor := uuid.New()

	_, err := svc.SaveSettings(ctx, SaveSettingsInput{Enabled: true, RetentionDays: 30, UpdatedBy: actor})
	require.NoError(t, err)

	old := &models.AuditLog{
		ID:        uuid.New(),
		ActorID:   actor,
		Action:    "login",
		Resource:  "auth",
		CreatedAt: time.Now().UTC().AddDate(0, 0, -45),
	}
	recent := &models.AuditLog{
		ID:        uuid.New(),
		ActorID:   actor,
		Action:    "login",
		Resource:  "auth",
		CreatedAt: time.Now().UTC().AddDate(0, 0, -5),
	}
	require.NoError(t, conn.Create(old).Error)
	require.NoError(t, conn.Create(recent).Error)

	deleted, err := svc.PruneExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var count int64
	require.NoError(t, conn.Model(&models.AuditLog{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
