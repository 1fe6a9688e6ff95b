package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"daswos/internal/catalog"
	apperrors "daswos/internal/errors"
	"daswos/internal/logger"
	"daswos/internal/models"
	"daswos/internal/payment"
)

// autoShopService drives autonomous shopping sessions. Each active
// session gets its own ticker goroutine; session state lives in the
// database so a sweep can expire sessions orphaned by a restart.
type autoShopService struct {
	db              *gorm.DB
	policies        PolicyServicer
	recommendations RecommendationServicer
	validator       PurchaseValidatorer
	ledger          LedgerServicer
	gateway         catalog.Gateway
	payments        payment.Gateway
	tick            time.Duration

	mu      sync.Mutex
	runners map[string]*sessionRunner
}

type sessionRunner struct {
	stop chan struct{}
	done chan struct{}
}

// NewAutoShopService creates a new AutoShopServicer. tick is the interval
// between selection cycles for each active session.
func NewAutoShopService(
	db *gorm.DB,
	policies PolicyServicer,
	recommendations RecommendationServicer,
	validator PurchaseValidatorer,
	ledger LedgerServicer,
	gateway catalog.Gateway,
	payments payment.Gateway,
	tick time.Duration,
) AutoShopServicer {
	if tick <= 0 {
		tick = time.Minute
	}
	return &autoShopService{
		db:              db,
		policies:        policies,
		recommendations: recommendations,
		validator:       validator,
		ledger:          ledger,
		gateway:         gateway,
		payments:        payments,
		tick:            tick,
		runners:         make(map[string]*sessionRunner),
	}
}

// Start begins a time-boxed session for the user: one cycle runs
// immediately, then the session ticks until it expires, exhausts its
// budget, or is stopped.
func (s *autoShopService) Start(ctx context.Context, userID string, duration time.Duration) (*models.AutoShopSession, error) {
	if duration <= 0 {
		return nil, apperrors.ErrInvalidDuration
	}

	policy, err := s.policies.Get(userID)
	if err != nil {
		return nil, err
	}
	if !policy.Enabled {
		return nil, apperrors.ErrAutoShopDisabled
	}

	var active int64
	if err := s.db.Model(&models.AutoShopSession{}).
		Where("user_id = ? AND status = ?", userID, models.SessionStatusActive).
		Count(&active).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if active > 0 {
		return nil, apperrors.ErrSessionAlreadyActive
	}

	now := time.Now()
	session := &models.AutoShopSession{
		UserID:              userID,
		Status:              models.SessionStatusActive,
		StartTime:           now,
		EndTime:             now.Add(duration),
		BudgetLimit:         policy.BudgetLimit,
		ConfidenceThreshold: policy.ConfidenceThreshold,
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.RunCycle(ctx, session.ID); err != nil {
		logger.Get().Warnw("initial autoshop cycle failed", "session_id", session.ID, "error", err)
	}

	// Reload in case the first cycle already finished the session.
	if err := s.db.Where("id = ?", session.ID).First(session).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if session.Status == models.SessionStatusActive {
		s.launchRunner(session.ID)
	}
	return session, nil
}

// Stop halts the user's active session. Idempotent: stopping an already
// finished session returns it unchanged.
func (s *autoShopService) Stop(userID string) (*models.AutoShopSession, error) {
	session, err := s.Status(userID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return session, nil
	}

	now := time.Now()
	res := s.db.Model(&models.AutoShopSession{}).
		Where("id = ? AND status = ?", session.ID, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":     models.SessionStatusStopped,
			"stopped_at": &now,
		})
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}

	s.stopRunner(session.ID)

	if err := s.db.Where("id = ?", session.ID).First(session).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return session, nil
}

// Status returns the user's most recent session.
func (s *autoShopService) Status(userID string) (*models.AutoShopSession, error) {
	var session models.AutoShopSession
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &session, nil
}

// RunCycle executes one selection cycle for a session. Recoverable
// failures (no match, catalog hiccup, validator rejection) leave the
// session active; only a failure to persist session state is returned
// as an error.
func (s *autoShopService) RunCycle(ctx context.Context, sessionID string) error {
	log := logger.Get()

	var session models.AutoShopSession
	if err := s.db.Where("id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrSessionNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if session.Status.Terminal() {
		return nil
	}

	if time.Now().After(session.EndTime) {
		return s.finish(&session, models.SessionStatusExpired)
	}

	policy, err := s.policies.Get(session.UserID)
	if err != nil {
		log.Warnw("autoshop cycle could not load policy", "session_id", sessionID, "error", err)
		return nil
	}

	exhausted, err := s.budgetExhausted(&session, policy)
	if err != nil {
		log.Warnw("autoshop cycle could not check budget", "session_id", sessionID, "error", err)
		return nil
	}
	if exhausted {
		return s.finish(&session, models.SessionStatusBudgetExhausted)
	}

	rec, err := s.recommendations.Generate(ctx, session.UserID, policy, SearchContext{SessionID: &session.ID})
	if err != nil {
		if errors.Is(err, apperrors.ErrNoMatch) {
			log.Debugw("autoshop cycle found no match", "session_id", sessionID)
		} else {
			log.Warnw("autoshop cycle could not generate recommendation", "session_id", sessionID, "error", err)
		}
		return nil
	}

	product, err := s.gateway.GetProduct(ctx, rec.ProductID)
	if err != nil {
		log.Warnw("autoshop cycle could not load product", "session_id", sessionID, "product_id", rec.ProductID, "error", err)
		s.rejectQuietly(rec.ID, "catalog lookup failed", models.RejectionKindRetryable)
		return nil
	}
	if product == nil {
		s.rejectQuietly(rec.ID, "product no longer available", models.RejectionKindPermanent)
		return nil
	}

	decision, err := s.validator.Validate(rec, product, policy, &session)
	if err != nil {
		log.Warnw("autoshop cycle could not validate purchase", "session_id", sessionID, "error", err)
		s.rejectQuietly(rec.ID, "validation unavailable", models.RejectionKindRetryable)
		return nil
	}
	if !decision.Approved {
		kind := models.RejectionKindRetryable
		if decision.Permanent {
			kind = models.RejectionKindPermanent
		}
		s.rejectQuietly(rec.ID, decision.Reason, kind)
		return nil
	}

	return s.settle(ctx, &session, policy, rec, product)
}

// settle moves the money for an approved recommendation and records the
// purchase. Losing the balance race rejects the recommendation rather
// than leaving it pending.
func (s *autoShopService) settle(ctx context.Context, session *models.AutoShopSession, policy *models.AutoShopPolicy, rec *models.Recommendation, product *catalog.Product) error {
	log := logger.Get()

	switch policy.PaymentMethod {
	case models.PaymentMethodCard:
		result, err := s.payments.Settle(ctx, session.UserID, product.Price, policy.PaymentMethodRef)
		if err != nil {
			log.Warnw("autoshop card settlement failed", "session_id", session.ID, "error", err)
			s.rejectQuietly(rec.ID, "payment settlement failed", models.RejectionKindRetryable)
			return nil
		}
		if !result.Success {
			s.rejectQuietly(rec.ID, "payment settlement failed: "+result.Reason, models.RejectionKindRetryable)
			return nil
		}
	default:
		_, err := s.ledger.Append(session.UserID, product.Price, models.TransactionKindSpend,
			"AutoShop purchase: "+product.Name, &AppendInput{RecommendationID: &rec.ID})
		if err != nil {
			if errors.Is(err, apperrors.ErrInsufficientBalance) {
				s.rejectQuietly(rec.ID, "insufficient balance at settlement", models.RejectionKindRetryable)
				return nil
			}
			log.Warnw("autoshop ledger debit failed", "session_id", session.ID, "error", err)
			s.rejectQuietly(rec.ID, "ledger unavailable", models.RejectionKindRetryable)
			return nil
		}
	}

	if _, err := s.recommendations.MarkPurchased(rec.ID); err != nil {
		// The recommendation was resolved concurrently (e.g. the user
		// rejected it between validation and settlement). Reverse the
		// coin debit so balance and status stay consistent.
		log.Warnw("autoshop purchase lost status race", "session_id", session.ID, "recommendation_id", rec.ID, "error", err)
		if policy.PaymentMethod != models.PaymentMethodCard {
			if _, refundErr := s.ledger.Append(session.UserID, product.Price, models.TransactionKindRefund,
				"AutoShop purchase reversed: "+product.Name, &AppendInput{RecommendationID: &rec.ID}); refundErr != nil {
				log.Errorw("autoshop refund failed", "session_id", session.ID, "recommendation_id", rec.ID, "error", refundErr)
			}
		}
		return nil
	}

	res := s.db.Model(&models.AutoShopSession{}).
		Where("id = ? AND status = ?", session.ID, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"spent_total":    gorm.Expr("spent_total + ?", product.Price),
			"purchase_count": gorm.Expr("purchase_count + 1"),
		})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}

	log.Infow("autoshop purchase completed",
		"session_id", session.ID,
		"user_id", session.UserID,
		"product_id", product.ID,
		"price", product.Price,
	)
	return nil
}

// SweepExpired transitions active sessions whose window has elapsed to
// expired. Run periodically so sessions orphaned by a restart still end.
func (s *autoShopService) SweepExpired() (int, error) {
	res := s.db.Model(&models.AutoShopSession{}).
		Where("status = ? AND end_time < ?", models.SessionStatusActive, time.Now()).
		Update("status", models.SessionStatusExpired)
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return int(res.RowsAffected), nil
}

// Shutdown stops all session runners and waits for in-flight cycles.
func (s *autoShopService) Shutdown() {
	s.mu.Lock()
	runners := make([]*sessionRunner, 0, len(s.runners))
	for id, r := range s.runners {
		runners = append(runners, r)
		delete(s.runners, id)
	}
	s.mu.Unlock()

	for _, r := range runners {
		close(r.stop)
		<-r.done
	}
}

// budgetExhausted reports whether the session can no longer spend: the
// window budget is used up, or the coin balance fell below the policy's
// minimum item price.
func (s *autoShopService) budgetExhausted(session *models.AutoShopSession, policy *models.AutoShopPolicy) (bool, error) {
	if session.BudgetLimit > 0 && session.SpentTotal >= session.BudgetLimit {
		return true, nil
	}
	if policy.PaymentMethod == models.PaymentMethodCoins && policy.MinItemPrice > 0 {
		balance, err := s.ledger.Balance(session.UserID)
		if err != nil {
			return false, err
		}
		if balance < policy.MinItemPrice {
			return true, nil
		}
	}
	return false, nil
}

// finish transitions a session to a terminal state, conditional on it
// still being active, and signals its runner to exit. finish runs on the
// runner goroutine when a ticked cycle ends the session, so it must not
// wait for the runner. Failure to persist the transition is fatal to the
// session.
func (s *autoShopService) finish(session *models.AutoShopSession, status models.SessionStatus) error {
	updates := map[string]interface{}{"status": status}
	if status == models.SessionStatusStopped {
		now := time.Now()
		updates["stopped_at"] = &now
	}
	res := s.db.Model(&models.AutoShopSession{}).
		Where("id = ? AND status = ?", session.ID, models.SessionStatusActive).
		Updates(updates)
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	session.Status = status
	s.signalRunner(session.ID)

	logger.Get().Infow("autoshop session finished",
		"session_id", session.ID,
		"user_id", session.UserID,
		"status", status,
		"spent_total", session.SpentTotal,
		"purchase_count", session.PurchaseCount,
	)
	return nil
}

// rejectQuietly rejects a recommendation and logs (instead of returning)
// any failure, keeping the cycle loop non-fatal.
func (s *autoShopService) rejectQuietly(recommendationID, reason string, kind models.RejectionKind) {
	if _, err := s.recommendations.Reject(recommendationID, reason, kind); err != nil {
		logger.Get().Warnw("failed to reject recommendation", "recommendation_id", recommendationID, "error", err)
	}
}

// launchRunner starts the periodic cycle goroutine for a session.
func (s *autoShopService) launchRunner(sessionID string) {
	runner := &sessionRunner{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if _, exists := s.runners[sessionID]; exists {
		s.mu.Unlock()
		return
	}
	s.runners[sessionID] = runner
	s.mu.Unlock()

	go func() {
		defer close(runner.done)
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-runner.stop:
				return
			case <-ticker.C:
				if err := s.RunCycle(context.Background(), sessionID); err != nil {
					logger.Get().Errorw("autoshop cycle failed, stopping session",
						"session_id", sessionID, "error", err)
					s.abortSession(sessionID)
					return
				}
				if s.isTerminal(sessionID) {
					s.forgetRunner(sessionID)
					return
				}
			}
		}
	}()
}

// abortSession stops a session whose state could not be persisted.
func (s *autoShopService) abortSession(sessionID string) {
	now := time.Now()
	s.db.Model(&models.AutoShopSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":     models.SessionStatusStopped,
			"stopped_at": &now,
		})
	s.forgetRunner(sessionID)
}

func (s *autoShopService) isTerminal(sessionID string) bool {
	var session models.AutoShopSession
	if err := s.db.Select("status").Where("id = ?", sessionID).First(&session).Error; err != nil {
		return true
	}
	return session.Status.Terminal()
}

// signalRunner removes a session's runner and tells it to exit, without
// waiting. Safe to call from the runner goroutine itself; the runner
// observes the closed stop channel or the terminal status and returns.
func (s *autoShopService) signalRunner(sessionID string) *sessionRunner {
	s.mu.Lock()
	runner, ok := s.runners[sessionID]
	if ok {
		delete(s.runners, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	close(runner.stop)
	return runner
}

// stopRunner signals a session's runner and waits for it to exit, so no
// new cycle starts after Stop returns. Must only be called from outside
// the runner goroutine.
func (s *autoShopService) stopRunner(sessionID string) {
	if runner := s.signalRunner(sessionID); runner != nil {
		<-runner.done
	}
}

// forgetRunner removes a runner entry from inside the runner goroutine.
func (s *autoShopService) forgetRunner(sessionID string) {
	s.mu.Lock()
	delete(s.runners, sessionID)
	s.mu.Unlock()
}
