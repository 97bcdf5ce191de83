package credits

import "time"

type TxType string

const (
	TxConsume TxType = "consume"
	TxGrant   TxType = "grant"
)

// CreditAccount holds the derived balance. Only the ledger writes it.
type CreditAccount struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0;check:chk_credit_accounts_balance,balance >= 0" json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CreditAccount) TableName() string { return "credit_accounts" }

// CreditTransaction is an append-only ledger row. OrderID is only set for
// grants; its unique index is what makes a grant apply at most once per order.
type CreditTransaction struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Type      TxType    `gorm:"size:16;not null" json:"type"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Remark    string    `gorm:"size:255" json:"remark"`
	OrderID   *string   `gorm:"size:64;uniqueIndex:idx_credit_transactions_order_id" json:"order_id,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }
