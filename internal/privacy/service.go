package privacy

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
	"github.com/kzarre/kzarre-backend/pkg/types"
)

// Service handles customer data-subject requests.
type Service interface {
	CreateRequest(ctx context.Context, input CreateRequestInput) (*RequestDTO, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*RequestDTO, error)
	ListRequests(ctx context.Context, status *string) ([]RequestDTO, error)
	ProcessExport(ctx context.Context, id uuid.UUID, processedBy uuid.UUID) (*ExportBundle, error)
	ProcessErasure(ctx context.Context, id uuid.UUID, processedBy uuid.UUID) (*ErasureResult, error)
	RejectRequest(ctx context.Context, id uuid.UUID, processedBy uuid.UUID, input RejectRequestInput) (*RequestDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the privacy service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("privacy repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg, now: time.Now}, nil
}

func (s *service) CreateRequest(ctx context.Context, input CreateRequestInput) (*RequestDTO, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	kind, err := enums.ParseDataRequestType(input.Type)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request type")
	}

	request := &models.DataRequest{
		ID:     uuid.New(),
		Email:  email,
		Type:   kind,
		Status: enums.DataRequestStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create data request")
	}
	return toRequestDTO(request), nil
}

func (s *service) GetRequest(ctx context.Context, id uuid.UUID) (*RequestDTO, error) {
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return toRequestDTO(request), nil
}

func (s *service) ListRequests(ctx context.Context, status *string) ([]RequestDTO, error) {
	var filter *enums.DataRequestStatus
	if status != nil && *status != "" {
		parsed, err := enums.ParseDataRequestStatus(*status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request status")
		}
		filter = &parsed
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list data requests")
	}
	dtos := make([]RequestDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *toRequestDTO(&rows[i]))
	}
	return dtos, nil
}

// ProcessExport collects every record held for the request's email and
// marks the request completed. The bundle is returned to the caller for
// delivery; nothing is mutated besides the request row.
func (s *service) ProcessExport(ctx context.Context, id uuid.UUID, processedBy uuid.UUID) (*ExportBundle, error) {
	request, err := s.pendingRequest(ctx, id, enums.DataRequestTypeExport, processedBy)
	if err != nil {
		return nil, err
	}

	orders, err := s.repo.OrdersByEmail(ctx, request.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "collect orders")
	}

	bundle := &ExportBundle{
		Email:       request.Email,
		GeneratedAt: s.now().UTC(),
		Orders:      make([]ExportOrder, 0, len(orders)),
	}
	for i := range orders {
		bundle.Orders = append(bundle.Orders, toExportOrder(&orders[i]))
	}

	sub, err := s.repo.SubscriberByEmail(ctx, request.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "collect subscription")
	}
	if sub != nil {
		bundle.Subscription = &ExportSubscription{
			Subscribed:     sub.UnsubscribedAt == nil,
			SubscribedAt:   &sub.CreatedAt,
			UnsubscribedAt: sub.UnsubscribedAt,
		}
	}

	if err := s.complete(ctx, s.repo, request.ID, processedBy, nil); err != nil {
		return nil, err
	}
	return bundle, nil
}

// ProcessErasure anonymizes the subject's orders and removes them from the
// marketing list in a single transaction, then marks the request completed.
// Order financial rows survive with the identity fields blanked.
func (s *service) ProcessErasure(ctx context.Context, id uuid.UUID, processedBy uuid.UUID) (*ErasureResult, error) {
	request, err := s.pendingRequest(ctx, id, enums.DataRequestTypeErasure, processedBy)
	if err != nil {
		return nil, err
	}

	result := &ErasureResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		placeholder := fmt.Sprintf("erased-%s@redacted.invalid", request.ID)
		anonymized, err := repo.AnonymizeOrders(ctx, request.Email, map[string]any{
			"customer_name":    "Redacted",
			"customer_email":   placeholder,
			"shipping_address": types.Address{},
		})
		if err != nil {
			return fmt.Errorf("anonymize orders: %w", err)
		}
		result.OrdersAnonymized = anonymized

		deleted, err := repo.DeleteSubscribers(ctx, request.Email)
		if err != nil {
			return fmt.Errorf("delete subscribers: %w", err)
		}
		result.SubscribersDeleted = deleted

		notes := fmt.Sprintf("anonymized %d order(s), removed %d subscriber(s)", anonymized, deleted)
		return s.complete(ctx, repo, request.ID, processedBy, &notes)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "process erasure")
	}
	return result, nil
}

func (s *service) RejectRequest(ctx context.Context, id uuid.UUID, processedBy uuid.UUID, input RejectRequestInput) (*RequestDTO, error) {
	if strings.TrimSpace(input.Notes) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection notes are required")
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if processedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "processing admin is required")
	}
	if request.Status != enums.DataRequestStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request has already been processed")
	}

	now := s.now().UTC()
	updates := map[string]any{
		"status":       enums.DataRequestStatusRejected,
		"notes":        input.Notes,
		"processed_by": processedBy,
		"processed_at": now,
	}
	if err := s.repo.Update(ctx, request.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject data request")
	}
	request.Status = enums.DataRequestStatusRejected
	request.Notes = &input.Notes
	request.ProcessedBy = &processedBy
	request.ProcessedAt = &now
	return toRequestDTO(request), nil
}

func (s *service) pendingRequest(ctx context.Context, id uuid.UUID, kind enums.DataRequestType, processedBy uuid.UUID) (*models.DataRequest, error) {
	if processedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "processing admin is required")
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Type != kind {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("request is not an %s request", kind))
	}
	if request.Status != enums.DataRequestStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request has already been processed")
	}
	return request, nil
}

func (s *service) complete(ctx context.Context, repo Repository, id uuid.UUID, processedBy uuid.UUID, notes *string) error {
	updates := map[string]any{
		"status":       enums.DataRequestStatusCompleted,
		"processed_by": processedBy,
		"processed_at": s.now().UTC(),
	}
	if notes != nil {
		updates["notes"] = *notes
	}
	if err := repo.Update(ctx, id, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete data request")
	}
	return nil
}

func (s *service) loadRequest(ctx context.Context, id uuid.UUID) (*models.DataRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "data request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load data request")
	}
	return request, nil
}

func toExportOrder(order *models.Order) ExportOrder {
	items := make([]ExportOrderItem, 0, len(order.Items))
	for i := range order.Items {
		items = append(items, ExportOrderItem{
			Title:          order.Items[i].Title,
			SKU:            order.Items[i].SKU,
			Size:           order.Items[i].Size,
			Color:          order.Items[i].Color,
			VariantLabel:   order.Items[i].VariantLabel,
			Quantity:       order.Items[i].Quantity,
			UnitPriceCents: order.Items[i].UnitPriceCents,
		})
	}
	return ExportOrder{
		OrderNumber:   order.OrderID,
		Status:        order.Status.String(),
		PaymentMethod: order.PaymentMethod.String(),
		TotalCents:    order.TotalCents,
		Currency:      order.Currency,
		PlacedAt:      order.CreatedAt,
		Items:         items,
	}
}
