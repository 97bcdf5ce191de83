package orders

import "time"

type Status string

const (
	StatusPending              Status = "pending"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusPaid                 Status = "paid"
	StatusFailed               Status = "failed"
	StatusExpired              Status = "expired"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Sources lists the statuses an order may move to target from. Status
// updates are always conditioned on these, which keeps transitions monotonic.
func Sources(target Status) []Status {
	switch target {
	case StatusAwaitingConfirmation:
		return []Status{StatusPending}
	case StatusPaid, StatusFailed, StatusExpired:
		return []Status{StatusPending, StatusAwaitingConfirmation}
	}
	return nil
}

type Order struct {
	ID               string     `gorm:"primaryKey;size:64" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	PackageID        *uint      `json:"package_id,omitempty"`
	Amount           int64      `gorm:"not null" json:"amount"` // minor units
	Currency         string     `gorm:"size:8;not null" json:"currency"`
	CreditsRequested int64      `gorm:"not null" json:"credits_requested"`
	Status           Status     `gorm:"size:32;not null;index" json:"status"`
	ProviderRef      string     `gorm:"size:255;index" json:"provider_ref,omitempty"`
	FailureReason    string     `gorm:"size:255" json:"failure_reason,omitempty"`
	ExpiresAt        time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
}

func (Order) TableName() string { return "orders" }
