package paypal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	paypalsdk "github.com/plutov/paypal/v4"

	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/logger"
)

// OrderResult carries the provider-side identifiers for a created order.
type OrderResult struct {
	OrderID    string
	ApproveURL string
}

// CaptureResult reports the outcome of an order capture.
type CaptureResult struct {
	CaptureID string
	Completed bool
}

// Gateway exposes the subset of PayPal operations needed by checkout and payments.
type Gateway interface {
	CreateOrder(ctx context.Context, totalCents int, currency, orderNumber string) (*OrderResult, error)
	CaptureOrder(ctx context.Context, paypalOrderID string) (*CaptureResult, error)
}

// Client wraps the PayPal REST client.
type Client struct {
	api *paypalsdk.Client
}

// NewClient builds a PayPal client for the configured mode.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("paypal client id and secret are required")
	}

	base := paypalsdk.APIBaseSandBox
	if strings.EqualFold(cfg.Mode, "live") {
		base = paypalsdk.APIBaseLive
	}

	api, err := paypalsdk.NewClient(cfg.ClientID, cfg.Secret, base)
	if err != nil {
		return nil, fmt.Errorf("creating paypal client: %w", err)
	}
	if _, err := api.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "paypal client initialized")
	}

	return &Client{api: api}, nil
}

// CreateOrder opens a PayPal order for the given total.
func (c *Client) CreateOrder(ctx context.Context, totalCents int, currency, orderNumber string) (*OrderResult, error) {
	if totalCents <= 0 {
		return nil, errors.New("total must be positive")
	}

	units := []paypalsdk.PurchaseUnitRequest{{
		ReferenceID: orderNumber,
		Amount: &paypalsdk.PurchaseUnitAmount{
			Currency: strings.ToUpper(currency),
			Value:    fmt.Sprintf("%d.%02d", totalCents/100, totalCents%100),
		},
	}}

	order, err := c.api.CreateOrder(ctx, paypalsdk.OrderIntentCapture, units, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	result := &OrderResult{OrderID: order.ID}
	for _, link := range order.Links {
		if link.Rel == "approve" {
			result.ApproveURL = link.Href
			break
		}
	}
	return result, nil
}

// CaptureOrder captures an approved PayPal order.
func (c *Client) CaptureOrder(ctx context.Context, paypalOrderID string) (*CaptureResult, error) {
	if strings.TrimSpace(paypalOrderID) == "" {
		return nil, errors.New("paypal order id is required")
	}

	capture, err := c.api.CaptureOrder(ctx, paypalOrderID, paypalsdk.CaptureOrderRequest{})
	if err != nil {
		return nil, fmt.Errorf("paypal capture order: %w", err)
	}

	result := &CaptureResult{Completed: capture.Status == "COMPLETED"}
	for _, unit := range capture.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			result.CaptureID = unit.Payments.Captures[0].ID
			break
		}
	}
	return result, nil
}
