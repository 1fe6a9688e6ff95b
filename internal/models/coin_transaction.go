package models

// TransactionKind classifies a ledger entry. Amounts are always stored
// positive; the kind implies the sign (purchase, bonus and refund credit
// the balance, spend debits it).
type TransactionKind string

const (
	TransactionKindPurchase TransactionKind = "purchase"
	TransactionKindSpend    TransactionKind = "spend"
	TransactionKindRefund   TransactionKind = "refund"
	TransactionKindBonus    TransactionKind = "bonus"
)

// Credits reports whether this kind increases the spendable balance.
func (k TransactionKind) Credits() bool {
	switch k {
	case TransactionKindPurchase, TransactionKindBonus, TransactionKindRefund:
		return true
	}
	return false
}

// Valid reports whether the kind is one of the allowed ledger kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindPurchase, TransactionKindSpend, TransactionKindRefund, TransactionKindBonus:
		return true
	}
	return false
}

// CoinTransaction is a single append-only entry in the DasWos Coins ledger.
// Rows are never updated or deleted; the spendable balance is always the
// signed sum over a user's entries.
type CoinTransaction struct {
	Base
	UserID           string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount           int64           `gorm:"type:bigint;not null" json:"amount"`
	Kind             TransactionKind `gorm:"not null" json:"kind"`
	Description      string          `json:"description"`
	RecommendationID *string         `gorm:"type:uuid" json:"recommendation_id,omitempty"`
	OrderRef         string          `json:"order_ref,omitempty"`
}

// Signed returns the amount with the sign implied by the kind.
func (t *CoinTransaction) Signed() int64 {
	if t.Kind.Credits() {
		return t.Amount
	}
	return -t.Amount
}
