// Package gateway is the payment provider boundary.
package gateway

import (
	"context"
	"errors"

	"travel-marketplace/internal/domain/orders"
)

// Status is the provider's verdict on an order, as seen server-to-server.
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
	StatusFailed Status = "failed"
)

var (
	// ErrAmbiguous is returned when the provider answered with a state that
	// cannot be mapped to a Status. Callers treat it as retryable.
	ErrAmbiguous = errors.New("gateway: ambiguous payment status")
	// ErrNoCheckout means the order never got a provider checkout, so no
	// payment can exist for it.
	ErrNoCheckout = errors.New("gateway: order has no checkout")
)

type CheckoutRequest struct {
	Order     orders.Order
	Product   string
	ReturnURL string
	CancelURL string
}

type Checkout struct {
	ProviderRef string
	RedirectURL string
}

type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
	QueryStatus(ctx context.Context, order orders.Order) (Status, error)
	// ExpireCheckout closes the provider checkout so it can no longer be paid.
	ExpireCheckout(ctx context.Context, order orders.Order) error
}
