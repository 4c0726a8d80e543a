package audit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/pagination"
	"github.com/kzarre/kzarre-backend/pkg/types"
)

const (
	defaultRetentionDays = 90
	maxRetentionDays     = 3650
)

// Settings is the effective audit configuration.
type Settings struct {
	Enabled       bool       `json:"enabled"`
	RetentionDays int        `json:"retention_days"`
	MaskIPs       bool       `json:"mask_ips"`
	UpdatedBy     *uuid.UUID `json:"updated_by,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// SaveSettingsInput writes a new settings row.
type SaveSettingsInput struct {
	Enabled       bool      `json:"enabled"`
	RetentionDays int       `json:"retention_days" validate:"required,min=1"`
	MaskIPs       bool      `json:"mask_ips"`
	UpdatedBy     uuid.UUID `json:"-"`
}

// Entry is one admin action to record.
type Entry struct {
	ActorID    uuid.UUID
	Action     string
	Resource   string
	ResourceID *string
	Metadata   types.JSONMap
	IP         *string
}

// LogFilters narrows log listings.
type LogFilters struct {
	Resource *string
	ActorID  *uuid.UUID
	Limit    int
	Cursor   string
}

// LogPage is a cursor page of audit entries.
type LogPage struct {
	Entries    []models.AuditLog `json:"entries"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// Service manages audit configuration and the action log.
type Service interface {
	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, input SaveSettingsInput) (*Settings, error)
	Record(ctx context.Context, entry Entry) error
	ListLogs(ctx context.Context, filters LogFilters) (*LogPage, error)
	PruneExpired(ctx context.Context) (int64, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the audit service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// GetSettings reads the latest settings row. A missing row means defaults:
// auditing on, 90 day retention, raw IPs.
func (s *service) GetSettings(ctx context.Context) (*Settings, error) {
	stored, err := s.repo.LatestSettings(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Settings{Enabled: true, RetentionDays: defaultRetentionDays}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load audit settings")
	}
	updatedAt := stored.UpdatedAt
	return &Settings{
		Enabled:       stored.Enabled,
		RetentionDays: stored.RetentionDays,
		MaskIPs:       stored.MaskIPs,
		UpdatedBy:     stored.UpdatedBy,
		UpdatedAt:     &updatedAt,
	}, nil
}

// SaveSettings inserts a new row rather than mutating the previous one, so
// concurrent readers never observe a half-applied configuration.
func (s *service) SaveSettings(ctx context.Context, input SaveSettingsInput) (*Settings, error) {
	if input.RetentionDays < 1 || input.RetentionDays > maxRetentionDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("retention days must be between 1 and %d", maxRetentionDays))
	}
	if input.UpdatedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "updated_by required")
	}

	updatedBy := input.UpdatedBy
	row := &models.AuditSettings{
		ID:            uuid.New(),
		Enabled:       input.Enabled,
		RetentionDays: input.RetentionDays,
		MaskIPs:       input.MaskIPs,
		UpdatedBy:     &updatedBy,
	}
	if err := s.repo.InsertSettings(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save audit settings")
	}
	return s.GetSettings(ctx)
}

// Record appends an action entry. Recording never fails a caller's request
// path: with auditing disabled it is a no-op, and a write failure surfaces
// as an error for the caller to log.
func (s *service) Record(ctx context.Context, entry Entry) error {
	if entry.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor required")
	}
	if strings.TrimSpace(entry.Action) == "" || strings.TrimSpace(entry.Resource) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "action and resource required")
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return err
	}
	if !settings.Enabled {
		return nil
	}

	ip := entry.IP
	if settings.MaskIPs && ip != nil {
		masked := maskIP(*ip)
		ip = &masked
	}

	row := &models.AuditLog{
		ID:         uuid.New(),
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		Metadata:   entry.Metadata,
		IP:         ip,
	}
	if err := s.repo.AppendLog(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append audit log")
	}
	return nil
}

func (s *service) ListLogs(ctx context.Context, filters LogFilters) (*LogPage, error) {
	rows, err := s.repo.ListLogs(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit logs")
	}
	rows, next := pagination.Page(rows, filters.Limit, func(l models.AuditLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
	})
	return &LogPage{Entries: rows, NextCursor: next}, nil
}

// PruneExpired deletes log entries older than the configured retention.
func (s *service) PruneExpired(ctx context.Context) (int64, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -settings.RetentionDays)
	deleted, err := s.repo.DeleteLogsBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune audit logs")
	}
	if deleted > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{"deleted": deleted})
		s.logg.Info(logCtx, "audit retention pruned entries")
	}
	return deleted, nil
}

// maskIP zeroes the host portion: the last octet for IPv4, the last 80 bits
// for IPv6. Unparseable values are dropped entirely.
func maskIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return ip.Mask(net.CIDRMask(48, 128)).String()
}
