package checkout

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v84"

	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db/models"
	kzstripe "github.com/kzarre/kzarre-backend/pkg/stripe"
)

type stripeGateway struct {
	sessions   kzstripe.CheckoutSessionClient
	successURL string
	cancelURL  string
}

// NewStripeGateway wraps the hosted-checkout session call. The created
// session carries the internal order id in its metadata so the webhook can
// resolve the order even without the stored session reference.
func NewStripeGateway(sessions kzstripe.CheckoutSessionClient, cfg config.StripeConfig) (StripeGateway, error) {
	if sessions == nil {
		return nil, fmt.Errorf("stripe checkout session client required")
	}
	return &stripeGateway{
		sessions:   sessions,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}, nil
}

func (g *stripeGateway) CreateSession(ctx context.Context, order *models.Order) (string, string, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items)+1)
	for _, item := range order.Items {
		name := item.Title
		if item.VariantLabel != nil {
			name = fmt.Sprintf("%s (%s)", item.Title, *item.VariantLabel)
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(order.Currency),
				UnitAmount: stripe.Int64(int64(item.UnitPriceCents)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		})
	}
	if order.DeliveryFeeCents > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(order.Currency),
				UnitAmount: stripe.Int64(int64(order.DeliveryFeeCents)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Delivery"),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:     lineItems,
		CustomerEmail: stripe.String(order.CustomerEmail),
		SuccessURL:    stripe.String(g.successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(g.cancelURL),
	}
	params.AddMetadata("orderId", order.ID.String())
	params.AddMetadata("orderNumber", order.OrderID)

	session, err := g.sessions.Create(ctx, params)
	if err != nil {
		return "", "", err
	}
	return session.ID, session.URL, nil
}
