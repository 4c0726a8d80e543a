package cms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
)

// CreateContentInput defines a new content entry. A future VisibleAt puts
// the entry on the schedule; omitting it keeps the entry a draft.
type CreateContentInput struct {
	Slug      string     `json:"slug" validate:"required,min=2,max=120"`
	Kind      string     `json:"kind" validate:"required,min=2,max=40"`
	Title     string     `json:"title" validate:"required,min=2,max=200"`
	Body      string     `json:"body" validate:"required"`
	VisibleAt *time.Time `json:"visible_at,omitempty"`
}

// UpdateContentInput patches an entry. Nil fields stay untouched.
type UpdateContentInput struct {
	Title     *string    `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	Body      *string    `json:"body,omitempty"`
	VisibleAt *time.Time `json:"visible_at,omitempty"`
	Archive   bool       `json:"archive,omitempty"`
}

// Service manages scheduled storefront content.
type Service interface {
	CreateContent(ctx context.Context, input CreateContentInput) (*models.CMSContent, error)
	UpdateContent(ctx context.Context, id uuid.UUID, input UpdateContentInput) (*models.CMSContent, error)
	DeleteContent(ctx context.Context, id uuid.UUID) error
	GetContent(ctx context.Context, id uuid.UUID) (*models.CMSContent, error)
	ListContent(ctx context.Context, kind *string, status *enums.CMSStatus) ([]models.CMSContent, error)
	GetPublished(ctx context.Context, slug string) (*models.CMSContent, error)
	ListPublished(ctx context.Context, kind string) ([]models.CMSContent, error)
	PublishDue(ctx context.Context) (int, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the content service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cms repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

func (s *service) CreateContent(ctx context.Context, input CreateContentInput) (*models.CMSContent, error) {
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}

	status := enums.CMSStatusDraft
	if input.VisibleAt != nil {
		status = enums.CMSStatusScheduled
	}

	entry := &models.CMSContent{
		ID:        uuid.New(),
		Slug:      slug,
		Kind:      strings.ToLower(strings.TrimSpace(input.Kind)),
		Title:     title,
		Body:      input.Body,
		Status:    status,
		VisibleAt: input.VisibleAt,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create content")
	}
	return entry, nil
}

func (s *service) UpdateContent(ctx context.Context, id uuid.UUID, input UpdateContentInput) (*models.CMSContent, error) {
	entry, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
		}
		updates["title"] = title
	}
	if input.Body != nil {
		updates["body"] = *input.Body
	}
	if input.VisibleAt != nil {
		if entry.Status == enums.CMSStatusPublished {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "published content cannot be rescheduled")
		}
		updates["visible_at"] = *input.VisibleAt
		updates["status"] = enums.CMSStatusScheduled
	}
	if input.Archive {
		updates["status"] = enums.CMSStatusArchived
	}
	if len(updates) == 0 {
		return entry, nil
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update content")
	}
	return s.load(ctx, id)
}

func (s *service) DeleteContent(ctx context.Context, id uuid.UUID) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete content")
	}
	return nil
}

func (s *service) GetContent(ctx context.Context, id uuid.UUID) (*models.CMSContent, error) {
	return s.load(ctx, id)
}

func (s *service) ListContent(ctx context.Context, kind *string, status *enums.CMSStatus) ([]models.CMSContent, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown content status")
	}
	rows, err := s.repo.List(ctx, kind, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list content")
	}
	return rows, nil
}

// GetPublished serves the storefront: anything not yet published reads as
// missing.
func (s *service) GetPublished(ctx context.Context, slug string) (*models.CMSContent, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug required")
	}
	entry, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load content")
	}
	if entry.Status != enums.CMSStatusPublished {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
	}
	return entry, nil
}

func (s *service) ListPublished(ctx context.Context, kind string) ([]models.CMSContent, error) {
	status := enums.CMSStatusPublished
	kindFilter := strings.ToLower(strings.TrimSpace(kind))
	var kindPtr *string
	if kindFilter != "" {
		kindPtr = &kindFilter
	}
	rows, err := s.repo.List(ctx, kindPtr, &status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list content")
	}
	return rows, nil
}

// PublishDue flips scheduled entries whose visibility time has passed.
// Returns how many entries were published.
func (s *service) PublishDue(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due content")
	}

	published := 0
	for i := range due {
		entry := due[i]
		updates := map[string]any{
			"status":       enums.CMSStatusPublished,
			"published_at": now,
		}
		if err := s.repo.Update(ctx, entry.ID, updates); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "slug", entry.Slug), "publish content", err)
			continue
		}
		published++
	}
	return published, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.CMSContent, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load content")
	}
	return entry, nil
}
