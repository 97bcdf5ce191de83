package packages

// CreditPackage is the server-side allow list of purchasable credit bundles.
// Clients pick a package id; they never choose the price.
type CreditPackage struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:128;not null" json:"name"`
	Credits     int64  `gorm:"not null" json:"credits"`
	AmountMinor int64  `gorm:"not null" json:"amount"` // minor units, e.g. fen
	Currency    string `gorm:"size:8;not null" json:"currency"`
	Active      bool   `gorm:"not null;default:true" json:"active"`
}

func (CreditPackage) TableName() string { return "credit_packages" }

// Defaults are seeded on an empty table.
func Defaults() []CreditPackage {
	return []CreditPackage{
		{Name: "Starter", Credits: 100, AmountMinor: 1000, Currency: "cny", Active: true},
		{Name: "Explorer", Credits: 550, AmountMinor: 5000, Currency: "cny", Active: true},
		{Name: "Globetrotter", Credits: 1200, AmountMinor: 10000, Currency: "cny", Active: true},
	}
}
