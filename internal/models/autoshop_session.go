package models

import "time"

// SessionStatus is the scheduler state machine for a shopping session.
// active is the only non-terminal state; re-entering it requires a new
// session.
type SessionStatus string

const (
	SessionStatusActive          SessionStatus = "active"
	SessionStatusStopped         SessionStatus = "stopped"
	SessionStatusExpired         SessionStatus = "expired"
	SessionStatusBudgetExhausted SessionStatus = "budget_exhausted"
)

// Terminal reports whether the session can no longer run cycles.
func (s SessionStatus) Terminal() bool {
	return s != SessionStatusActive
}

// AutoShopSession is one time-boxed autonomous shopping window. Budget
// limit and confidence threshold are snapshotted from the policy at
// start so that mid-window settings edits apply from the next session.
type AutoShopSession struct {
	Base
	UserID    string        `gorm:"type:uuid;not null;index" json:"user_id"`
	Status    SessionStatus `gorm:"not null;default:'active';index" json:"status"`
	StartTime time.Time     `gorm:"not null" json:"start_time"`
	EndTime   time.Time     `gorm:"not null" json:"end_time"`
	StoppedAt *time.Time    `json:"stopped_at,omitempty"`

	// Policy snapshot.
	BudgetLimit         int64   `gorm:"type:bigint;not null" json:"budget_limit"`
	ConfidenceThreshold float64 `gorm:"not null" json:"confidence_threshold"`

	// Rolling window counters, updated after each successful purchase.
	SpentTotal    int64 `gorm:"type:bigint;not null;default:0" json:"spent_total"`
	PurchaseCount int   `gorm:"not null;default:0" json:"purchase_count"`
}

// Remaining returns how much of the session budget is still spendable.
func (s *AutoShopSession) Remaining() int64 {
	if s.BudgetLimit <= 0 {
		return 0
	}
	r := s.BudgetLimit - s.SpentTotal
	if r < 0 {
		return 0
	}
	return r
}
