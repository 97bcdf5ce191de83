// Package ledger is the single writer of credit balances.
//
// Every mutation runs as one database transaction that appends a
// credit_transactions row and adjusts credit_accounts with a conditional
// update, so check-and-mutate can never interleave with another writer.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"travel-marketplace/internal/domain/credits"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidAmount       = errors.New("ledger: amount must be positive")
	ErrMissingOrderID      = errors.New("ledger: grant requires an order id")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrGrantOwnerMismatch means an order id was replayed for a different
	// user than the one it was granted to. It indicates a caller bug.
	ErrGrantOwnerMismatch = errors.New("ledger: order already granted to another user")
)

// GrantResult describes the outcome of Grant. Granted is false when the
// order had already been credited; Balance and TransactionID then refer to
// the current balance and the original grant row.
type GrantResult struct {
	Balance       int64  `json:"balance"`
	TransactionID string `json:"transaction_id"`
	Granted       bool   `json:"granted"`
}

type Ledger struct {
	db    *gorm.DB
	now   func() time.Time
	newID func() string
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// WithTx returns a ledger whose operations join tx. Used to settle an order
// and its grant atomically.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	cp := *l
	cp.db = tx
	return &cp
}

// WithClock overrides the timestamp source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	cp := *l
	cp.now = now
	return &cp
}

// Consume debits amount from the user's balance. It fails with
// ErrInsufficientBalance rather than clamping.
func (l *Ledger) Consume(ctx context.Context, userID uint, amount int64, remark string) (int64, string, error) {
	if amount <= 0 {
		return 0, "", ErrInvalidAmount
	}

	var (
		balance int64
		txID    string
	)
	now := l.now()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&credits.CreditAccount{}).
			Where("user_id = ? AND balance >= ?", userID, amount).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance - ?", amount),
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("debit account: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		row := credits.CreditTransaction{
			ID:        l.newID(),
			UserID:    userID,
			Type:      credits.TxConsume,
			Amount:    amount,
			Remark:    remark,
			CreatedAt: now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("append consume transaction: %w", err)
		}
		txID = row.ID

		b, err := balanceOf(tx, userID)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	if err != nil {
		return 0, "", err
	}
	return balance, txID, nil
}

// Grant credits amount to the user, at most once per orderID. A repeated
// call for the same order returns the original grant with Granted=false.
func (l *Ledger) Grant(ctx context.Context, userID uint, amount int64, remark, orderID string) (GrantResult, error) {
	if amount <= 0 {
		return GrantResult{}, ErrInvalidAmount
	}
	if orderID == "" {
		return GrantResult{}, ErrMissingOrderID
	}

	var out GrantResult
	now := l.now()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		oid := orderID
		row := credits.CreditTransaction{
			ID:        l.newID(),
			UserID:    userID,
			Type:      credits.TxGrant,
			Amount:    amount,
			Remark:    remark,
			OrderID:   &oid,
			CreatedAt: now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("append grant transaction: %w", res.Error)
		}

		if res.RowsAffected == 0 {
			var existing credits.CreditTransaction
			if err := tx.Where("order_id = ?", orderID).Take(&existing).Error; err != nil {
				return fmt.Errorf("load existing grant for order %s: %w", orderID, err)
			}
			if existing.UserID != userID {
				return fmt.Errorf("%w: order %s", ErrGrantOwnerMismatch, orderID)
			}
			b, err := balanceOf(tx, userID)
			if err != nil {
				return err
			}
			out = GrantResult{Balance: b, TransactionID: existing.ID, Granted: false}
			return nil
		}

		account := credits.CreditAccount{UserID: userID, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&account).Error; err != nil {
			return fmt.Errorf("open account: %w", err)
		}
		if err := tx.Model(&credits.CreditAccount{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance + ?", amount),
				"updated_at": now,
			}).Error; err != nil {
			return fmt.Errorf("credit account: %w", err)
		}

		b, err := balanceOf(tx, userID)
		if err != nil {
			return err
		}
		out = GrantResult{Balance: b, TransactionID: row.ID, Granted: true}
		return nil
	})
	if err != nil {
		return GrantResult{}, err
	}
	return out, nil
}

// Balance reads the committed balance; users without an account have 0.
func (l *Ledger) Balance(ctx context.Context, userID uint) (int64, error) {
	return balanceOf(l.db.WithContext(ctx), userID)
}

// Transactions lists the user's ledger rows, newest first.
func (l *Ledger) Transactions(ctx context.Context, userID uint, limit int) ([]credits.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []credits.CreditTransaction
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return rows, nil
}

// GrantForOrder returns the grant recorded for orderID, if any.
func (l *Ledger) GrantForOrder(ctx context.Context, orderID string) (*credits.CreditTransaction, bool, error) {
	var row credits.CreditTransaction
	err := l.db.WithContext(ctx).
		Where("order_id = ? AND type = ?", orderID, credits.TxGrant).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load grant for order %s: %w", orderID, err)
	}
	return &row, true, nil
}

func balanceOf(db *gorm.DB, userID uint) (int64, error) {
	var account credits.CreditAccount
	err := db.Where("user_id = ?", userID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return account.Balance, nil
}
