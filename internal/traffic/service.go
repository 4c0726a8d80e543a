package traffic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/pagination"
)

// Service records and reports storefront traffic.
type Service interface {
	Track(ctx context.Context, input TrackInput) (*TrackResult, error)
	ListEvents(ctx context.Context, filters EventFilters) (*EventList, error)
	Stats(ctx context.Context, window time.Duration) (*StatsDTO, error)
	PruneExpired(ctx context.Context) (int64, error)
}

// eventSink streams accepted page views to an analytics warehouse. A nil
// sink disables streaming without changing tracking behavior.
type eventSink interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type service struct {
	repo Repository
	sink eventSink
	cfg  config.TrafficConfig
	bq   config.BigQueryConfig
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the traffic service. sink may be nil when BigQuery is
// not configured.
func NewService(repo Repository, sink eventSink, cfg config.TrafficConfig, bq config.BigQueryConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("traffic repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo: repo,
		sink: sink,
		cfg:  cfg,
		bq:   bq,
		logg: logg,
		now:  time.Now,
	}, nil
}

func (s *service) Track(ctx context.Context, input TrackInput) (*TrackResult, error) {
	visitorID := strings.TrimSpace(input.VisitorID)
	if visitorID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "visitor_id is required")
	}
	path := strings.TrimSpace(input.Path)
	if path == "" {
		path = "/"
	}

	seen, err := s.repo.VisitorSeen(ctx, visitorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "visitor lookup")
	}

	event := &models.TrafficEvent{
		ID:        uuid.New(),
		Path:      path,
		Referrer:  input.Referrer,
		VisitorID: visitorID,
		IP:        NormalizeIP(input.IP),
	}
	if ua := strings.TrimSpace(input.UserAgent); ua != "" {
		event.UserAgent = &ua
		browser, osName, device := ClassifyUserAgent(ua)
		event.Browser = browser
		event.OS = osName
		event.Device = &device
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record page view")
	}

	s.stream(ctx, event, !seen)

	return &TrackResult{EventID: event.ID, FirstVisit: !seen}, nil
}

// stream forwards the event to the warehouse sink. Failures are logged and
// swallowed so analytics outages never break tracking.
func (s *service) stream(ctx context.Context, event *models.TrafficEvent, firstVisit bool) {
	if s.sink == nil {
		return
	}
	row := warehouseRow{
		EventID:    event.ID.String(),
		Path:       event.Path,
		VisitorID:  event.VisitorID,
		IP:         event.IP,
		FirstVisit: firstVisit,
		CreatedAt:  event.CreatedAt,
	}
	if event.Referrer != nil {
		row.Referrer = *event.Referrer
	}
	if event.Browser != nil {
		row.Browser = *event.Browser
	}
	if event.OS != nil {
		row.OS = *event.OS
	}
	if event.Device != nil {
		row.Device = *event.Device
	}
	if err := s.sink.InsertRows(ctx, s.bq.TrafficTable, []any{row}); err != nil {
		s.logg.Error(ctx, "stream traffic event", err)
	}
}

// warehouseRow is the flattened shape streamed to BigQuery.
type warehouseRow struct {
	EventID    string    `bigquery:"event_id"`
	Path       string    `bigquery:"path"`
	Referrer   string    `bigquery:"referrer"`
	VisitorID  string    `bigquery:"visitor_id"`
	IP         string    `bigquery:"ip"`
	Browser    string    `bigquery:"browser"`
	OS         string    `bigquery:"os"`
	Device     string    `bigquery:"device"`
	FirstVisit bool      `bigquery:"first_visit"`
	CreatedAt  time.Time `bigquery:"created_at"`
}

func (s *service) ListEvents(ctx context.Context, filters EventFilters) (*EventList, error) {
	rows, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list traffic events")
	}

	trimmed, nextCursor := pagination.Page(rows, filters.Limit, func(e models.TrafficEvent) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})

	dtos := make([]EventDTO, 0, len(trimmed))
	for i := range trimmed {
		dtos = append(dtos, toEventDTO(&trimmed[i]))
	}
	return &EventList{Events: dtos, NextCursor: nextCursor}, nil
}

func (s *service) Stats(ctx context.Context, window time.Duration) (*StatsDTO, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	stats, err := s.repo.Stats(ctx, s.now().UTC().Add(-window))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "traffic stats")
	}
	return stats, nil
}

// PruneExpired deletes page views older than the configured retention and
// returns how many rows were removed.
func (s *service) PruneExpired(ctx context.Context) (int64, error) {
	days := s.cfg.RetentionDays
	if days <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune traffic events")
	}
	return deleted, nil
}

// NormalizeIP strips the IPv4-mapped IPv6 prefix and folds the IPv6
// loopback onto its IPv4 form.
func NormalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	ip = strings.TrimPrefix(ip, "::ffff:")
	if ip == "::1" {
		return "127.0.0.1"
	}
	return ip
}

// ClassifyUserAgent extracts a coarse browser, OS and device class from a
// raw user-agent header. Unknown browsers and systems come back nil; the
// device falls back to desktop.
func ClassifyUserAgent(ua string) (browser, os *string, device string) {
	lower := strings.ToLower(ua)

	switch {
	case strings.Contains(lower, "edg/"), strings.Contains(lower, "edge"):
		browser = ptr("Edge")
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		browser = ptr("Opera")
	case strings.Contains(lower, "firefox"):
		browser = ptr("Firefox")
	case strings.Contains(lower, "chrome"):
		browser = ptr("Chrome")
	case strings.Contains(lower, "safari"):
		browser = ptr("Safari")
	}

	switch {
	case strings.Contains(lower, "android"):
		os = ptr("Android")
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		os = ptr("iOS")
	case strings.Contains(lower, "windows"):
		os = ptr("Windows")
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		os = ptr("macOS")
	case strings.Contains(lower, "linux"):
		os = ptr("Linux")
	}

	device = "desktop"
	switch {
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"):
		device = "tablet"
	case strings.Contains(lower, "mobile"), strings.Contains(lower, "iphone"), strings.Contains(lower, "android"):
		device = "mobile"
	}
	return browser, os, device
}

func ptr(value string) *string {
	return &value
}
