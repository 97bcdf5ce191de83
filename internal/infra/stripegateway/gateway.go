// Package stripegateway implements gateway.Gateway on Stripe Checkout.
package stripegateway

import (
	"context"
	"fmt"
	"strings"

	"travel-marketplace/internal/domain/orders"
	"travel-marketplace/internal/gateway"

	"github.com/stripe/stripe-go/v75"
	checkoutsession "github.com/stripe/stripe-go/v75/checkout/session"
)

type Gateway struct {
	sessions checkoutsession.Client
}

// New builds a gateway with the default Stripe API backend.
func New(secretKey string) *Gateway {
	return NewWithBackend(secretKey, stripe.GetBackend(stripe.APIBackend))
}

func NewWithBackend(secretKey string, backend stripe.Backend) *Gateway {
	return &Gateway{sessions: checkoutsession.Client{B: backend, Key: secretKey}}
}

func (g *Gateway) CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) (gateway.Checkout, error) {
	o := req.Order
	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(req.ReturnURL),
		CancelURL:  stripe.String(req.CancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(o.Currency)),
					UnitAmount: stripe.Int64(o.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Product),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(o.ID),
		Metadata: map[string]string{
			"order_id": o.ID,
			"user_id":  fmt.Sprint(o.UserID),
			"credits":  fmt.Sprint(o.CreditsRequested),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("checkout-" + o.ID)

	s, err := g.sessions.New(params)
	if err != nil {
		return gateway.Checkout{}, fmt.Errorf("create checkout session: %w", err)
	}
	return gateway.Checkout{ProviderRef: s.ID, RedirectURL: s.URL}, nil
}

func (g *Gateway) QueryStatus(ctx context.Context, o orders.Order) (gateway.Status, error) {
	if o.ProviderRef == "" {
		return "", gateway.ErrNoCheckout
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.sessions.Get(o.ProviderRef, params)
	if err != nil {
		return "", fmt.Errorf("fetch checkout session %s: %w", o.ProviderRef, err)
	}
	if s.ClientReferenceID != o.ID {
		return "", fmt.Errorf("%w: session %s belongs to %q", gateway.ErrAmbiguous, s.ID, s.ClientReferenceID)
	}

	st, err := MapSession(s)
	if err != nil {
		return "", err
	}
	if st == gateway.StatusPaid && s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		if s.AmountTotal != o.Amount || !strings.EqualFold(string(s.Currency), o.Currency) {
			return "", fmt.Errorf("%w: session %s paid %d %s, order expects %d %s",
				gateway.ErrAmbiguous, s.ID, s.AmountTotal, s.Currency, o.Amount, o.Currency)
		}
	}
	return st, nil
}

// ExpireCheckout expires an open session. Stripe rejects this for sessions
// that are already complete, which callers handle as "maybe paid".
func (g *Gateway) ExpireCheckout(ctx context.Context, o orders.Order) error {
	if o.ProviderRef == "" {
		return gateway.ErrNoCheckout
	}
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := g.sessions.Expire(o.ProviderRef, params); err != nil {
		return fmt.Errorf("expire checkout session %s: %w", o.ProviderRef, err)
	}
	return nil
}

// MapSession translates a checkout session into a gateway status.
//
//	payment_status paid | no_payment_required  -> paid
//	status expired                             -> failed
//	status open | complete, payment unpaid     -> unpaid
//	anything else                              -> ErrAmbiguous
func MapSession(s *stripe.CheckoutSession) (gateway.Status, error) {
	if s == nil {
		return "", fmt.Errorf("%w: nil session", gateway.ErrAmbiguous)
	}
	switch s.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return gateway.StatusPaid, nil
	}
	switch s.Status {
	case stripe.CheckoutSessionStatusExpired:
		return gateway.StatusFailed, nil
	case stripe.CheckoutSessionStatusOpen, stripe.CheckoutSessionStatusComplete:
		if s.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			return gateway.StatusUnpaid, nil
		}
	}
	return "", fmt.Errorf("%w: status=%q payment_status=%q", gateway.ErrAmbiguous, s.Status, s.PaymentStatus)
}
