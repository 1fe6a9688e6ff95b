package models

// Wallet holds one row per user and exists mainly as the per-user
// serialization point for ledger writes: spends lock this row so that
// two concurrent debits cannot both observe a sufficient balance.
// Balance is a cache of the transaction sum, refreshed on every append;
// the ledger remains the source of truth.
type Wallet struct {
	Base
	UserID  string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Balance int64  `gorm:"type:bigint;not null;default:0" json:"balance"`
	Version uint   `gorm:"not null;default:0" json:"-"`
}
