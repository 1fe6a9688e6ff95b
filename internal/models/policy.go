package models

// PaymentMethod selects how autonomous purchases are paid for.
type PaymentMethod string

const (
	PaymentMethodCoins PaymentMethod = "coins"
	PaymentMethodCard  PaymentMethod = "card"
)

// Sphere is the catalog trust tier queried during product selection.
type Sphere string

const (
	SphereSafe Sphere = "safesphere"
	SphereOpen Sphere = "opensphere"
)

// AutoShopPolicy is a user's autonomous-shopping configuration. It bounds
// what the scheduler may buy and how fast it may spend. The policy is
// mutated only through the settings-update operation.
type AutoShopPolicy struct {
	Base
	UserID string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	Enabled      bool `gorm:"default:false" json:"enabled"`
	AutoPurchase bool `gorm:"default:false" json:"auto_purchase"`

	// ConfidenceThreshold is a fraction in [0,1]; a recommendation with
	// confidence/100 below it is rejected.
	ConfidenceThreshold float64 `gorm:"not null;default:0.75" json:"confidence_threshold"`

	// Price bounds in smallest currency units.
	MaxPricePerItem int64 `gorm:"type:bigint;not null;default:0" json:"max_price_per_item"`
	MinItemPrice    int64 `gorm:"type:bigint;not null;default:0" json:"min_item_price"`
	BudgetLimit     int64 `gorm:"type:bigint;not null;default:0" json:"budget_limit"`

	// Coin spending caps.
	MaxCoinsPerItem int64 `gorm:"type:bigint;not null;default:0" json:"max_coins_per_item"`
	MaxCoinsPerDay  int64 `gorm:"type:bigint;not null;default:0" json:"max_coins_per_day"`
	MaxCoinsOverall int64 `gorm:"type:bigint;not null;default:0" json:"max_coins_overall"`

	// Purchase frequency caps (number of purchases per window; 0 = no cap).
	HourlyLimit  int `gorm:"default:0" json:"hourly_limit"`
	DailyLimit   int `gorm:"default:0" json:"daily_limit"`
	MonthlyLimit int `gorm:"default:0" json:"monthly_limit"`

	// Selection preferences. Comma-separated lists; matching is
	// case-insensitive on whole tags.
	PreferredCategories string `json:"preferred_categories"`
	AvoidTags           string `json:"avoid_tags"`
	MinimumTrustScore   int    `gorm:"default:0" json:"minimum_trust_score"`
	Sphere              Sphere `gorm:"default:'safesphere'" json:"sphere"`

	PaymentMethod    PaymentMethod `gorm:"default:'coins'" json:"payment_method"`
	PaymentMethodRef string        `json:"payment_method_ref,omitempty"`
}
