package handoff

import "time"

// SessionHandoff binds an order to the credentials of the user who started
// it, so the session can be restored when the provider redirects back.
// Token columns are blanked once the record is redeemed.
type SessionHandoff struct {
	HandoffID    string `gorm:"primaryKey;size:64"`
	UserID       uint   `gorm:"not null;index"`
	AccessToken  string `gorm:"type:text"`
	RefreshToken string `gorm:"type:text"`
	OrderID      string `gorm:"size:64;not null;index"`
	CreatedAt    time.Time
	ExpiresAt    time.Time `gorm:"not null;index"`
	Consumed     bool      `gorm:"not null;default:false"`
	ConsumedAt   *time.Time
}

func (SessionHandoff) TableName() string { return "session_handoffs" }
