package models

import "time"

// User represents a marketplace user. Wallets, policies, transactions
// and recommendations all hang off the user by foreign key.
type User struct {
	Base
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"not null" json:"-"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	IsActive            bool       `gorm:"default:true" json:"is_active"`
	RefreshTokenHash    string     `gorm:"size:64" json:"-"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`

	Wallet          *Wallet           `gorm:"foreignKey:UserID" json:"wallet,omitempty"`
	Policy          *AutoShopPolicy   `gorm:"foreignKey:UserID" json:"policy,omitempty"`
	Transactions    []CoinTransaction `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
	Recommendations []Recommendation  `gorm:"foreignKey:UserID" json:"recommendations,omitempty"`
	Sessions        []AutoShopSession `gorm:"foreignKey:UserID" json:"sessions,omitempty"`
}
