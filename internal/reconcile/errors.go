package reconcile

import "errors"

var (
	ErrGatewayUnavailable = errors.New("reconcile: payment gateway unavailable")
	// ErrOrderAlreadyTerminal means the gateway reported a payment for an
	// order that had already been closed as failed or expired.
	ErrOrderAlreadyTerminal = errors.New("reconcile: order already terminal")
	ErrOrderMismatch        = errors.New("reconcile: order reference does not match handoff")
	ErrForbidden            = errors.New("reconcile: action not allowed")
	ErrOrderNotFound        = errors.New("reconcile: order not found")
	ErrInvalidRequest       = errors.New("reconcile: invalid purchase request")
)
