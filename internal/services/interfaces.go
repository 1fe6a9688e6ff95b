package services

import (
	"context"
	"time"

	"daswos/internal/catalog"
	"daswos/internal/models"
	"daswos/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// AppendInput carries optional metadata for a ledger append.
type AppendInput struct {
	RecommendationID *string
	OrderRef         string
}

// LedgerServicer defines the contract for the DasWos Coins ledger. Append
// is the only balance mutator in the system; everything else reads.
type LedgerServicer interface {
	Append(userID string, amount int64, kind models.TransactionKind, description string, meta *AppendInput) (*models.CoinTransaction, error)
	Balance(userID string) (int64, error)
	History(userID string, limit int) ([]models.CoinTransaction, error)
	Transactions(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.CoinTransaction], error)
	PurchaseCoins(ctx context.Context, userID string, amount int64, methodRef string) (*models.CoinTransaction, error)
	WindowStats(userID string, since time.Time) (WindowStats, error)
	TotalSpent(userID string) (int64, error)
}

// WindowStats aggregates autonomous spending inside a time window.
type WindowStats struct {
	PurchaseCount int
	CoinsSpent    int64
}

// PolicyServicer defines the contract for AutoShop settings. Update is
// the only mutation path for a user's policy.
type PolicyServicer interface {
	Get(userID string) (*models.AutoShopPolicy, error)
	Update(userID string, fields PolicyUpdateFields) (*models.AutoShopPolicy, error)
}

// PolicyUpdateFields holds optional settings updates; nil fields are left
// unchanged.
type PolicyUpdateFields struct {
	Enabled             *bool
	AutoPurchase        *bool
	ConfidenceThreshold *float64
	MaxPricePerItem     *int64
	MinItemPrice        *int64
	BudgetLimit         *int64
	MaxCoinsPerItem     *int64
	MaxCoinsPerDay      *int64
	MaxCoinsOverall     *int64
	HourlyLimit         *int
	DailyLimit          *int
	MonthlyLimit        *int
	PreferredCategories *string
	AvoidTags           *string
	MinimumTrustScore   *int
	Sphere              *models.Sphere
	PaymentMethod       *models.PaymentMethod
	PaymentMethodRef    *string
}

// SearchContext narrows a generation run beyond the policy's defaults.
type SearchContext struct {
	Text string
	// RandomMode selects uniformly among the filtered candidates with a
	// mid-range confidence instead of scoring.
	RandomMode bool
	SessionID  *string
}

// RecommendationServicer defines the contract for generating and managing
// recommendations.
type RecommendationServicer interface {
	Generate(ctx context.Context, userID string, policy *models.AutoShopPolicy, search SearchContext) (*models.Recommendation, error)
	ListPending(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Recommendation], error)
	ListPurchased(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Recommendation], error)
	GetByID(userID, recommendationID string) (*models.Recommendation, error)
	MarkPurchased(recommendationID string) (*models.Recommendation, error)
	Reject(recommendationID, reason string, kind models.RejectionKind) (*models.Recommendation, error)
	UpdateStatus(userID, recommendationID string, status models.RecommendationStatus, reason string, kind models.RejectionKind) (*models.Recommendation, error)
}

// Decision is the outcome of a purchase validation.
type Decision struct {
	Approved bool
	Reason   string
	// Permanent marks rejections that should never be retried.
	Permanent bool
}

// PurchaseValidatorer gates recommendations before any money moves.
type PurchaseValidatorer interface {
	Validate(rec *models.Recommendation, product *catalog.Product, policy *models.AutoShopPolicy, session *models.AutoShopSession) (Decision, error)
}

// AutoShopServicer drives autonomous shopping sessions.
type AutoShopServicer interface {
	Start(ctx context.Context, userID string, duration time.Duration) (*models.AutoShopSession, error)
	Stop(userID string) (*models.AutoShopSession, error)
	Status(userID string) (*models.AutoShopSession, error)
	RunCycle(ctx context.Context, sessionID string) error
	SweepExpired() (int, error)
	Shutdown()
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
