package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/internal/checkout"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	"github.com/kzarre/kzarre-backend/pkg/logger"
)

func TestCreateOrder(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	productID := uuid.New()

	validBody := `{
		"customer_name": "Ada Lovelace",
		"customer_email": "ada@example.com",
		"payment_method": "cod",
		"shipping_address": {
			"full_name": "Ada Lovelace",
			"line1": "1 Main St",
			"city": "Springfield",
			"postal_code": "12345",
			"country": "us"
		},
		"items": [{"product_id": "` + productID.String() + `", "quantity": 2}]
	}`

	t.Run("nil service", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(validBody))
		rec := httptest.NewRecorder()
		CreateOrder(nil, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500 for nil service, got %d", rec.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		CreateOrder(&stubCheckoutService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
		}
	})

	t.Run("unknown payment method", func(t *testing.T) {
		body := strings.Replace(validBody, `"cod"`, `"wire"`, 1)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
		rec := httptest.NewRecorder()
		CreateOrder(&stubCheckoutService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown payment method, got %d", rec.Code)
		}
	})

	t.Run("missing items", func(t *testing.T) {
		body := strings.Replace(validBody, `[{"product_id": "`+productID.String()+`", "quantity": 2}]`, "[]", 1)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
		rec := httptest.NewRecorder()
		CreateOrder(&stubCheckoutService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for empty items, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubCheckoutService{result: &checkout.CheckoutResult{}}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(validBody))
		rec := httptest.NewRecorder()
		CreateOrder(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201 on success, got %d", rec.Code)
		}
		if stub.lastInput == nil {
			t.Fatalf("expected CreateOrder to be invoked")
		}
		if stub.lastInput.ShippingAddress.Country != "US" {
			t.Fatalf("country not normalized: %q", stub.lastInput.ShippingAddress.Country)
		}
		if stub.lastInput.PaymentMethod != enums.PaymentMethodCOD {
			t.Fatalf("unexpected payment method %s", stub.lastInput.PaymentMethod)
		}
		if len(stub.lastInput.Items) != 1 || stub.lastInput.Items[0].ProductID != productID {
			t.Fatalf("items not mapped: %+v", stub.lastInput.Items)
		}

		var body struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(body.Data) == 0 {
			t.Fatalf("expected data envelope in response")
		}
	})
}

type stubCheckoutService struct {
	result    *checkout.CheckoutResult
	lastInput *checkout.CreateOrderInput
}

func (s *stubCheckoutService) CreateOrder(ctx context.Context, input checkout.CreateOrderInput) (*checkout.CheckoutResult, error) {
	s.lastInput = &input
	return s.result, nil
}

func (s *stubCheckoutService) CreateStripeSession(ctx context.Context, input checkout.CreateOrderInput) (*checkout.CheckoutResult, error) {
	panic("unimplemented")
}

func (s *stubCheckoutService) CreatePayPalOrder(ctx context.Context, input checkout.CreateOrderInput) (*checkout.CheckoutResult, error) {
	panic("unimplemented")
}
