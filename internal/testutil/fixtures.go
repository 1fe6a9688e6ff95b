package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"daswos/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestTransaction creates a ledger entry of the given kind and amount.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, kind models.TransactionKind, amount int64) *models.CoinTransaction {
	t.Helper()

	txn := &models.CoinTransaction{
		UserID: userID,
		Amount: amount,
		Kind:   kind,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return txn
}

// CreateTestPolicy creates an enabled AutoShop policy that pays with coins
// and auto-purchases anything with at least mid-range confidence.
func CreateTestPolicy(t *testing.T, db *gorm.DB, userID string) *models.AutoShopPolicy {
	t.Helper()

	policy := &models.AutoShopPolicy{
		UserID:              userID,
		Enabled:             true,
		AutoPurchase:        true,
		ConfidenceThreshold: 0.5,
		Sphere:              models.SphereSafe,
		PaymentMethod:       models.PaymentMethodCoins,
	}
	if err := db.Create(policy).Error; err != nil {
		t.Fatalf("failed to create test policy: %v", err)
	}
	return policy
}

// CreateTestSession creates an active session for the user with the given
// window and budget snapshot.
func CreateTestSession(t *testing.T, db *gorm.DB, userID string, duration time.Duration, budget int64) *models.AutoShopSession {
	t.Helper()

	now := time.Now()
	session := &models.AutoShopSession{
		UserID:              userID,
		Status:              models.SessionStatusActive,
		StartTime:           now,
		EndTime:             now.Add(duration),
		BudgetLimit:         budget,
		ConfidenceThreshold: 0.5,
	}
	if err := db.Create(session).Error; err != nil {
		t.Fatalf("failed to create test session: %v", err)
	}
	return session
}

// CreateTestRecommendation creates a pending recommendation for the user.
func CreateTestRecommendation(t *testing.T, db *gorm.DB, userID string, price int64, confidence int) *models.Recommendation {
	t.Helper()

	n := nextID()
	rec := &models.Recommendation{
		UserID:      userID,
		ProductID:   fmt.Sprintf("prod-%d", n),
		ProductName: fmt.Sprintf("Test Product %d", n),
		Price:       price,
		Confidence:  confidence,
		Status:      models.RecommendationStatusPending,
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("failed to create test recommendation: %v", err)
	}
	return rec
}
