package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
)

// CheckoutSessionClient exposes the subset of Stripe operations required by checkout.
type CheckoutSessionClient interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type checkoutSessionWrapper struct{}

// NewCheckoutSessionClient wraps the initialized Stripe client so checkout can be tested.
func NewCheckoutSessionClient(api *Client) CheckoutSessionClient {
	if api == nil {
		return nil
	}
	return &checkoutSessionWrapper{}
}

func (w *checkoutSessionWrapper) Create(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}
