package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/api/responses"
	"github.com/kzarre/kzarre-backend/api/validators"
	"github.com/kzarre/kzarre-backend/internal/checkout"
	"github.com/kzarre/kzarre-backend/pkg/enums"
	pkgerrors "github.com/kzarre/kzarre-backend/pkg/errors"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/types"
)

type checkoutItemRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid4"`
	VariantID *string `json:"variant_id,omitempty" validate:"omitempty,uuid4"`
	Size      *string `json:"size,omitempty" validate:"omitempty,max=64"`
	Color     *string `json:"color,omitempty" validate:"omitempty,max=64"`
	Quantity  int     `json:"quantity" validate:"required,min=1"`
}

type checkoutAddressRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required,len=2"`
	Phone      string `json:"phone,omitempty"`
}

type createOrderRequest struct {
	CustomerName    string                 `json:"customer_name" validate:"required,min=2,max=200"`
	CustomerEmail   string                 `json:"customer_email" validate:"required,email"`
	ShippingAddress checkoutAddressRequest `json:"shipping_address" validate:"required"`
	PaymentMethod   string                 `json:"payment_method" validate:"required,oneof=stripe paypal cod"`
	Items           []checkoutItemRequest  `json:"items" validate:"required,min=1,dive"`
}

func (req createOrderRequest) toInput() (checkout.CreateOrderInput, error) {
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(req.PaymentMethod))
	if err != nil {
		return checkout.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	items := make([]checkout.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return checkout.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
		}
		var variantID *uuid.UUID
		if item.VariantID != nil {
			parsed, err := uuid.Parse(*item.VariantID)
			if err != nil {
				return checkout.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid variant id")
			}
			variantID = &parsed
		}
		items = append(items, checkout.ItemInput{
			ProductID: productID,
			VariantID: variantID,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
		})
	}

	return checkout.CreateOrderInput{
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		ShippingAddress: types.Address{
			FullName:   strings.TrimSpace(req.ShippingAddress.FullName),
			Line1:      strings.TrimSpace(req.ShippingAddress.Line1),
			Line2:      strings.TrimSpace(req.ShippingAddress.Line2),
			City:       strings.TrimSpace(req.ShippingAddress.City),
			State:      strings.TrimSpace(req.ShippingAddress.State),
			PostalCode: strings.TrimSpace(req.ShippingAddress.PostalCode),
			Country:    strings.ToUpper(strings.TrimSpace(req.ShippingAddress.Country)),
			Phone:      strings.TrimSpace(req.ShippingAddress.Phone),
		},
		PaymentMethod: method,
		Items:         items,
	}, nil
}

// CreateOrder accepts a storefront checkout and routes it to the selected
// payment method.
func CreateOrder(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
