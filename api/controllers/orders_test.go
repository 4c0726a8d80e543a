package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/api/middleware"
	"github.com/kzarre/kzarre-backend/internal/orders"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/outbox"
)

func TestGetOrder(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})

	t.Run("missing order number", func(t *testing.T) {
		req := orderRequest(http.MethodGet, "/api/v1/orders/", "", nil)
		rec := httptest.NewRecorder()
		GetOrder(&stubOrdersService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 without order number, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubOrdersService{order: &orders.OrderDTO{}}
		req := orderRequest(http.MethodGet, "/api/v1/orders/ORD-104233", "ORD-104233", nil)
		rec := httptest.NewRecorder()
		GetOrder(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.lastOrderNumber != "ORD-104233" {
			t.Fatalf("unexpected order number %q", stub.lastOrderNumber)
		}
	})
}

func TestAdminUpdateOrderStatus(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	adminID := uuid.New()

	t.Run("missing admin context", func(t *testing.T) {
		req := orderRequest(http.MethodPatch, "/api/admin/v1/orders/ORD-000051/status", "ORD-000051", strings.NewReader(`{"status":"shipped"}`))
		rec := httptest.NewRecorder()
		AdminUpdateOrderStatus(&stubOrdersService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 without admin context, got %d", rec.Code)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		req := orderRequest(http.MethodPatch, "/api/admin/v1/orders/ORD-000051/status", "ORD-000051", strings.NewReader(`{"status":"teleported"}`))
		req = req.WithContext(middleware.WithAdminID(req.Context(), adminID.String()))
		rec := httptest.NewRecorder()
		AdminUpdateOrderStatus(&stubOrdersService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid status, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubOrdersService{order: &orders.OrderDTO{}}
		req := orderRequest(http.MethodPatch, "/api/admin/v1/orders/ORD-000051/status", "ORD-000051", strings.NewReader(`{"status":"shipped","reason":"dispatched"}`))
		req = req.WithContext(middleware.WithAdminID(req.Context(), adminID.String()))
		rec := httptest.NewRecorder()
		AdminUpdateOrderStatus(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.lastUpdate == nil {
			t.Fatalf("expected UpdateStatus to be invoked")
		}
		if stub.lastUpdate.Status != enums.OrderStatusShipped {
			t.Fatalf("unexpected status %s", stub.lastUpdate.Status)
		}
		if stub.lastUpdate.Actor == nil || stub.lastUpdate.Actor.AdminID != adminID {
			t.Fatalf("actor not propagated: %+v", stub.lastUpdate.Actor)
		}
	})
}

func TestAdminCancelOrderAcceptsEmptyBody(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	stub := &stubOrdersService{order: &orders.OrderDTO{}}

	req := orderRequest(http.MethodPost, "/api/admin/v1/orders/ORD-000051/cancel", "ORD-000051", nil)
	req = req.WithContext(middleware.WithAdminID(req.Context(), uuid.NewString()))
	rec := httptest.NewRecorder()
	AdminCancelOrder(stub, logg).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for bodyless cancel, got %d", rec.Code)
	}
	if stub.lastCancel == nil {
		t.Fatalf("expected CancelOrder to be invoked")
	}
	if stub.lastCancel.Reason != "" {
		t.Fatalf("unexpected reason %q", stub.lastCancel.Reason)
	}
}

func orderRequest(method, target, orderNumber string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	routeCtx := chi.NewRouteContext()
	if orderNumber != "" {
		routeCtx.URLParams.Add("orderNumber", orderNumber)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

type stubOrdersService struct {
	order           *orders.OrderDTO
	lastOrderNumber string
	lastUpdate      *orders.UpdateStatusInput
	lastCancel      *orders.CancelOrderInput
}

func (s *stubOrdersService) GetOrder(ctx context.Context, orderNumber string) (*orders.OrderDTO, error) {
	s.lastOrderNumber = orderNumber
	return s.order, nil
}

func (s *stubOrdersService) ListOrders(ctx context.Context, filters orders.OrderFilters) (*orders.OrderList, error) {
	panic("unimplemented")
}

func (s *stubOrdersService) UpdateStatus(ctx context.Context, input orders.UpdateStatusInput) (*orders.OrderDTO, error) {
	s.lastUpdate = &input
	return s.order, nil
}

func (s *stubOrdersService) CancelOrder(ctx context.Context, input orders.CancelOrderInput) (*orders.OrderDTO, error) {
	s.lastCancel = &input
	return s.order, nil
}

func (s *stubOrdersService) ConfirmCOD(ctx context.Context, orderNumber string, actor *outbox.ActorRef) (*orders.OrderDTO, error) {
	s.lastOrderNumber = orderNumber
	return s.order, nil
}

func (s *stubOrdersService) ExpirePending(ctx context.Context) (int, error) {
	return 0, nil
}
