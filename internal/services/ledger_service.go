package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "daswos/internal/errors"
	"daswos/internal/models"
	"daswos/internal/pagination"
	"daswos/internal/payment"
)

// signedSumExpr folds the kind-implied sign into a single aggregate so the
// balance is always computed from the append-only log itself.
const signedSumExpr = "COALESCE(SUM(CASE WHEN kind = 'spend' THEN -amount ELSE amount END), 0)"

// ledgerService implements the DasWos Coins ledger over an append-only
// coin_transactions log. The wallet row is the per-user serialization
// point: spends lock it before the check-then-append so two concurrent
// debits cannot both observe a sufficient balance.
type ledgerService struct {
	db      *gorm.DB
	gateway payment.Gateway
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB, gateway payment.Gateway) LedgerServicer {
	return &ledgerService{db: db, gateway: gateway}
}

// Append records a single ledger entry. For spends, the balance check and
// the insert run as one serialized unit per user.
func (s *ledgerService) Append(userID string, amount int64, kind models.TransactionKind, description string, meta *AppendInput) (*models.CoinTransaction, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	if !kind.Valid() {
		return nil, apperrors.ErrInvalidKind
	}

	txn := &models.CoinTransaction{
		UserID:      userID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
	}
	if meta != nil {
		txn.RecommendationID = meta.RecommendationID
		txn.OrderRef = meta.OrderRef
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		wallet, err := s.lockWallet(tx, userID)
		if err != nil {
			return err
		}

		balance, err := sumBalance(tx, userID)
		if err != nil {
			return err
		}

		if kind == models.TransactionKindSpend && amount > balance {
			return apperrors.ErrInsufficientBalance
		}

		if err := tx.Create(txn).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		// Refresh the cached balance under the same lock. The cache is
		// advisory; the transaction sum stays the source of truth.
		updates := map[string]interface{}{
			"balance": balance + txn.Signed(),
			"version": gorm.Expr("version + 1"),
		}
		if err := tx.Model(wallet).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Balance returns the signed sum over the user's ledger entries.
func (s *ledgerService) Balance(userID string) (int64, error) {
	return sumBalance(s.db, userID)
}

// History returns the user's ledger entries, newest first. A limit of
// zero or less returns all entries.
func (s *ledgerService) History(userID string, limit int) ([]models.CoinTransaction, error) {
	q := s.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var txns []models.CoinTransaction
	if err := q.Find(&txns).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return txns, nil
}

// Transactions returns a paginated view of the user's ledger, newest first.
func (s *ledgerService) Transactions(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.CoinTransaction], error) {
	page.Defaults()

	base := s.db.Model(&models.CoinTransaction{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var txns []models.CoinTransaction
	if err := base.Scopes(pagination.Paginate(page)).
		Order("created_at DESC, id DESC").
		Find(&txns).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(txns, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// PurchaseCoins settles a top-up through the payment gateway, then
// credits the ledger. A failed settlement leaves the ledger untouched.
func (s *ledgerService) PurchaseCoins(ctx context.Context, userID string, amount int64, methodRef string) (*models.CoinTransaction, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	result, err := s.gateway.Settle(ctx, userID, amount, methodRef)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSettlementFailed, err)
	}
	if !result.Success {
		return nil, apperrors.WithMessage(apperrors.ErrSettlementFailed, "Payment settlement failed: "+result.Reason)
	}

	return s.Append(userID, amount, models.TransactionKindPurchase, "Coin purchase", &AppendInput{OrderRef: result.Reference})
}

// WindowStats aggregates spend entries since the given time. Used by the
// purchase validator for hourly/daily/monthly caps.
func (s *ledgerService) WindowStats(userID string, since time.Time) (WindowStats, error) {
	var stats struct {
		Count int
		Spent int64
	}
	err := s.db.Model(&models.CoinTransaction{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS spent").
		Where("user_id = ? AND kind = ? AND created_at >= ?", userID, models.TransactionKindSpend, since).
		Scan(&stats).Error
	if err != nil {
		return WindowStats{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return WindowStats{PurchaseCount: stats.Count, CoinsSpent: stats.Spent}, nil
}

// TotalSpent returns the all-time sum of spend entries for the user.
func (s *ledgerService) TotalSpent(userID string) (int64, error) {
	var total int64
	err := s.db.Model(&models.CoinTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND kind = ?", userID, models.TransactionKindSpend).
		Scan(&total).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return total, nil
}

// lockWallet fetches (or lazily creates) the user's wallet row with a row
// lock on engines that support it. SQLite serializes writers on its own,
// so the locking clause is skipped there.
func (s *ledgerService) lockWallet(tx *gorm.DB, userID string) (*models.Wallet, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var wallet models.Wallet
	err := q.Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	wallet = models.Wallet{UserID: userID}
	if err := tx.Create(&wallet).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &wallet, nil
}

// sumBalance computes the signed transaction sum for a user.
func sumBalance(tx *gorm.DB, userID string) (int64, error) {
	var balance int64
	err := tx.Model(&models.CoinTransaction{}).
		Select(signedSumExpr).
		Where("user_id = ?", userID).
		Scan(&balance).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return balance, nil
}
