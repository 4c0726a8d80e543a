package campaigns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kzarre/kzarre-backend/pkg/db/models"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/mailer"
	"github.com/kzarre/kzarre-backend/pkg/outbox"
	"github.com/kzarre/kzarre-backend/pkg/outbox/payloads"
)

// Service manages marketing campaigns and the subscriber list.
type Service interface {
	CreateCampaign(ctx context.Context, input CreateCampaignInput) (*CampaignDTO, error)
	UpdateCampaign(ctx context.Context, id uuid.UUID, input UpdateCampaignInput) (*CampaignDTO, error)
	ScheduleCampaign(ctx context.Context, id uuid.UUID, input ScheduleCampaignInput) (*CampaignDTO, error)
	DeleteCampaign(ctx context.Context, id uuid.UUID) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*CampaignDTO, error)
	ListCampaigns(ctx context.Context, status *string) ([]CampaignDTO, error)

	Subscribe(ctx context.Context, input SubscribeInput) (*SubscriberDTO, error)
	Unsubscribe(ctx context.Context, email string) error
	ListSubscribers(ctx context.Context) ([]SubscriberDTO, error)

	SendDue(ctx context.Context) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo   Repository
	tx     txRunner
	mail   mailer.Mailer
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the campaigns service.
func NewService(repo Repository, tx txRunner, mail mailer.Mailer, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("campaigns repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if mail == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		mail:   mail,
		outbox: publisher,
		logg:   logg,
		now:    time.Now,
	}, nil
}

func (s *service) CreateCampaign(ctx context.Context, input CreateCampaignInput) (*CampaignDTO, error) {
	campaign := &models.Campaign{
		ID:       uuid.New(),
		Name:     strings.TrimSpace(input.Name),
		Subject:  strings.TrimSpace(input.Subject),
		BodyHTML: input.BodyHTML,
		Status:   enums.CampaignStatusDraft,
	}
	if campaign.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign name is required")
	}
	if campaign.Subject == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign subject is required")
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create campaign")
	}
	return toCampaignDTO(campaign), nil
}

func (s *service) UpdateCampaign(ctx context.Context, id uuid.UUID, input UpdateCampaignInput) (*CampaignDTO, error) {
	campaign, err := s.loadCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != enums.CampaignStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only draft campaigns can be edited")
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Subject != nil {
		subject := strings.TrimSpace(*input.Subject)
		if subject == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign subject cannot be empty")
		}
		updates["subject"] = subject
	}
	if input.BodyHTML != nil {
		updates["body_html"] = *input.BodyHTML
	}
	if len(updates) == 0 {
		return toCampaignDTO(campaign), nil
	}
	if err := s.repo.Update(ctx, campaign.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update campaign")
	}
	campaign, err = s.loadCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return toCampaignDTO(campaign), nil
}

func (s *service) ScheduleCampaign(ctx context.Context, id uuid.UUID, input ScheduleCampaignInput) (*CampaignDTO, error) {
	campaign, err := s.loadCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != enums.CampaignStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only draft campaigns can be scheduled")
	}
	if input.ScheduledAt.Before(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled_at must be in the future")
	}
	updates := map[string]any{
		"status":       enums.CampaignStatusScheduled,
		"scheduled_at": input.ScheduledAt,
	}
	if err := s.repo.Update(ctx, campaign.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule campaign")
	}
	campaign.Status = enums.CampaignStatusScheduled
	campaign.ScheduledAt = &input.ScheduledAt
	return toCampaignDTO(campaign), nil
}

func (s *service) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	campaign, err := s.loadCampaign(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status == enums.CampaignStatusSending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "campaign is currently sending")
	}
	if err := s.repo.Delete(ctx, campaign.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete campaign")
	}
	return nil
}

func (s *service) GetCampaign(ctx context.Context, id uuid.UUID) (*CampaignDTO, error) {
	campaign, err := s.loadCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return toCampaignDTO(campaign), nil
}

func (s *service) ListCampaigns(ctx context.Context, status *string) ([]CampaignDTO, error) {
	var filter *enums.CampaignStatus
	if status != nil && *status != "" {
		parsed, err := enums.ParseCampaignStatus(*status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid campaign status")
		}
		filter = &parsed
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list campaigns")
	}
	dtos := make([]CampaignDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toCampaignDTO(&rows[i]))
	}
	return dtos, nil
}

func (s *service) Subscribe(ctx context.Context, input SubscribeInput) (*SubscriberDTO, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	existing, err := s.repo.FindSubscriberByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscriber")
	}
	if existing != nil {
		// Resubscribing clears the opt-out without creating a duplicate row.
		if existing.UnsubscribedAt != nil {
			updates := map[string]any{"unsubscribed_at": nil}
			if input.Name != nil {
				updates["name"] = *input.Name
			}
			if err := s.repo.UpdateSubscriber(ctx, existing.ID, updates); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resubscribe")
			}
			existing.UnsubscribedAt = nil
			if input.Name != nil {
				existing.Name = input.Name
			}
		}
		return toSubscriberDTO(existing), nil
	}

	sub := &models.Subscriber{
		ID:    uuid.New(),
		Email: email,
		Name:  input.Name,
	}
	if err := s.repo.UpsertSubscriber(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscriber")
	}
	return toSubscriberDTO(sub), nil
}

func (s *service) Unsubscribe(ctx context.Context, email string) error {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	sub, err := s.repo.FindSubscriberByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscriber not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscriber")
	}
	if sub.UnsubscribedAt != nil {
		return nil
	}
	now := s.now().UTC()
	if err := s.repo.UpdateSubscriber(ctx, sub.ID, map[string]any{"unsubscribed_at": now}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unsubscribe")
	}
	return nil
}

func (s *service) ListSubscribers(ctx context.Context) ([]SubscriberDTO, error) {
	subs, err := s.repo.ActiveSubscribers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscribers")
	}
	dtos := make([]SubscriberDTO, 0, len(subs))
	for i := range subs {
		dtos = append(dtos, *toSubscriberDTO(&subs[i]))
	}
	return dtos, nil
}

// SendDue delivers every scheduled campaign whose send time has passed and
// returns how many campaigns were processed. Individual recipient failures
// are counted but do not abort the run.
func (s *service) SendDue(ctx context.Context) (int, error) {
	due, err := s.repo.ListDue(ctx, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due campaigns")
	}

	processed := 0
	for i := range due {
		campaign := due[i]
		if err := s.sendCampaign(ctx, &campaign); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "campaign_id", campaign.ID.String()), "campaign send failed", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *service) sendCampaign(ctx context.Context, campaign *models.Campaign) error {
	// Claim the campaign before sending so a concurrent worker cycle
	// cannot pick it up again.
	if err := s.repo.Update(ctx, campaign.ID, map[string]any{"status": enums.CampaignStatusSending}); err != nil {
		return fmt.Errorf("claim campaign: %w", err)
	}

	subs, err := s.repo.ActiveSubscribers(ctx)
	if err != nil {
		s.markFailed(ctx, campaign.ID, err)
		return fmt.Errorf("load subscribers: %w", err)
	}

	sent := 0
	failed := 0
	var lastErr error
	for i := range subs {
		msg := mailer.Message{
			To:       subs[i].Email,
			Subject:  campaign.Subject,
			HTMLBody: campaign.BodyHTML,
		}
		if err := s.mail.Send(ctx, msg); err != nil {
			failed++
			lastErr = err
			continue
		}
		sent++
	}

	sentAt := s.now().UTC()
	updates := map[string]any{
		"status":          enums.CampaignStatusSent,
		"sent_at":         sentAt,
		"recipient_count": sent,
		"failure_count":   failed,
	}
	if lastErr != nil {
		updates["last_error"] = lastErr.Error()
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, campaign.ID, updates); err != nil {
			return fmt.Errorf("mark campaign sent: %w", err)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     outbox.EventCampaignSent,
			AggregateType: outbox.AggregateCampaign,
			AggregateID:   campaign.ID,
			Data: payloads.CampaignSentEvent{
				CampaignID:     campaign.ID,
				RecipientCount: sent,
				FailureCount:   failed,
				SentAt:         sentAt,
			},
		})
	})
}

func (s *service) markFailed(ctx context.Context, id uuid.UUID, cause error) {
	updates := map[string]any{
		"status":     enums.CampaignStatusFailed,
		"last_error": cause.Error(),
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		s.logg.Error(ctx, "mark campaign failed", err)
	}
}

func (s *service) loadCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	campaign, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load campaign")
	}
	return campaign, nil
}
