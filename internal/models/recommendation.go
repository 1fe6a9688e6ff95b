package models

import "time"

// RecommendationStatus represents the lifecycle state of a recommendation.
// pending and added_to_cart may still transition; purchased and rejected
// are terminal.
type RecommendationStatus string

const (
	RecommendationStatusPending     RecommendationStatus = "pending"
	RecommendationStatusAddedToCart RecommendationStatus = "added_to_cart"
	RecommendationStatusPurchased   RecommendationStatus = "purchased"
	RecommendationStatusRejected    RecommendationStatus = "rejected"
)

// Terminal reports whether no further status transition is allowed.
func (s RecommendationStatus) Terminal() bool {
	return s == RecommendationStatusPurchased || s == RecommendationStatusRejected
}

// RejectionKind distinguishes recommendations that may be retried on a
// later cycle from those the user should never see again.
type RejectionKind string

const (
	RejectionKindRetryable RejectionKind = "retryable"
	RejectionKindPermanent RejectionKind = "permanent"
)

// Recommendation is a candidate product selected by the recommendation
// engine for a user, together with the engine's confidence in the match.
// Product fields are denormalized at creation time; the catalog is an
// external service and is not joined against.
type Recommendation struct {
	Base
	UserID         string               `gorm:"type:uuid;not null;index" json:"user_id"`
	ProductID      string               `gorm:"not null" json:"product_id"`
	ProductName    string               `json:"product_name"`
	Price          int64                `gorm:"type:bigint;not null" json:"price"`
	Reason         string               `json:"reason"`
	Confidence     int                  `gorm:"not null" json:"confidence"`
	Status         RecommendationStatus `gorm:"not null;default:'pending';index" json:"status"`
	RejectedReason string               `json:"rejected_reason,omitempty"`
	RejectionKind  RejectionKind        `json:"rejection_kind,omitempty"`
	SessionID      *string              `gorm:"type:uuid" json:"session_id,omitempty"`
	PurchasedAt    *time.Time           `json:"purchased_at,omitempty"`
}
