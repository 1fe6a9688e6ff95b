package services

import (
	"time"

	"daswos/internal/catalog"
	"daswos/internal/models"
)

// purchaseValidator gates recommendations against a user's policy before
// any money moves. Validation is a pure decision: Approve never debits;
// the caller settles afterwards and must handle losing that race.
type purchaseValidator struct {
	ledger LedgerServicer
}

// NewPurchaseValidator creates a new PurchaseValidatorer.
func NewPurchaseValidator(ledger LedgerServicer) PurchaseValidatorer {
	return &purchaseValidator{ledger: ledger}
}

// Validate runs the safety checks in order; the first failing check wins.
// A returned error means a check could not be evaluated (ledger
// unavailable), not that the purchase was declined.
func (v *purchaseValidator) Validate(rec *models.Recommendation, product *catalog.Product, policy *models.AutoShopPolicy, session *models.AutoShopSession) (Decision, error) {
	if !policy.AutoPurchase {
		return reject("auto-purchase disabled"), nil
	}

	if float64(rec.Confidence)/100 < policy.ConfidenceThreshold {
		return reject("confidence below threshold"), nil
	}

	if policy.MaxPricePerItem > 0 && product.Price > policy.MaxPricePerItem {
		return reject("price exceeds limit"), nil
	}
	budgetLimit := policy.BudgetLimit
	if session != nil {
		budgetLimit = session.BudgetLimit
	}
	if budgetLimit > 0 && product.Price > budgetLimit {
		return reject("price exceeds limit"), nil
	}
	if policy.PaymentMethod == models.PaymentMethodCoins &&
		policy.MaxCoinsPerItem > 0 && product.Price > policy.MaxCoinsPerItem {
		return reject("price exceeds limit"), nil
	}

	switch policy.PaymentMethod {
	case models.PaymentMethodCoins:
		balance, err := v.ledger.Balance(rec.UserID)
		if err != nil {
			return Decision{}, err
		}
		if balance < product.Price {
			return reject("insufficient funds"), nil
		}
	case models.PaymentMethodCard:
		if policy.PaymentMethodRef == "" {
			return reject("no payment method"), nil
		}
	}

	if decision, err := v.checkRateLimits(rec.UserID, product.Price, policy); err != nil {
		return Decision{}, err
	} else if !decision.Approved {
		return decision, nil
	}

	return Decision{Approved: true}, nil
}

// checkRateLimits enforces the hourly/daily/monthly purchase counts and
// the daily/overall coin caps, derived from ledger history on every call.
func (v *purchaseValidator) checkRateLimits(userID string, price int64, policy *models.AutoShopPolicy) (Decision, error) {
	now := time.Now()

	windows := []struct {
		since time.Time
		limit int
	}{
		{now.Add(-time.Hour), policy.HourlyLimit},
		{now.Add(-24 * time.Hour), policy.DailyLimit},
		{now.AddDate(0, -1, 0), policy.MonthlyLimit},
	}

	var dayStats WindowStats
	for i, w := range windows {
		if w.limit <= 0 && !(i == 1 && policy.MaxCoinsPerDay > 0) {
			continue
		}
		stats, err := v.ledger.WindowStats(userID, w.since)
		if err != nil {
			return Decision{}, err
		}
		if w.limit > 0 && stats.PurchaseCount+1 > w.limit {
			return reject("rate limit exceeded"), nil
		}
		if i == 1 {
			dayStats = stats
		}
	}

	if policy.MaxCoinsPerDay > 0 && dayStats.CoinsSpent+price > policy.MaxCoinsPerDay {
		return reject("rate limit exceeded"), nil
	}

	if policy.MaxCoinsOverall > 0 {
		total, err := v.ledger.TotalSpent(userID)
		if err != nil {
			return Decision{}, err
		}
		if total+price > policy.MaxCoinsOverall {
			return reject("rate limit exceeded"), nil
		}
	}

	return Decision{Approved: true}, nil
}

func reject(reason string) Decision {
	return Decision{Approved: false, Reason: reason}
}
