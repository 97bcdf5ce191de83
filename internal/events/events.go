// Package events carries order lifecycle notifications to external consumers.
package events

import (
	"context"
	"time"
)

type Type string

const (
	OrderPaid    Type = "order.paid"
	OrderFailed  Type = "order.failed"
	OrderExpired Type = "order.expired"
)

// Event is emitted after an order reaches a terminal status.
type Event struct {
	Type          Type      `json:"type"`
	OrderID       string    `json:"order_id"`
	UserID        uint      `json:"user_id"`
	Credits       int64     `json:"credits"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Granted       bool      `json:"granted"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers events best effort. A failed publish is logged and not
// retried, and a replayed settlement does not publish again, so the stream
// may miss events; the ledger and orders tables are the record. Consumers
// dedupe on OrderID+Type.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
