package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"gorm.io/gorm"

	"daswos/internal/catalog"
	apperrors "daswos/internal/errors"
	"daswos/internal/models"
	"daswos/internal/pagination"
)

// defaultConfidence is assigned when a candidate is picked without any
// scoring signal (random mode or an empty preference set).
const defaultConfidence = 50

// recommendationService selects candidate products for a user and manages
// the recommendation lifecycle.
type recommendationService struct {
	db      *gorm.DB
	gateway catalog.Gateway
}

// NewRecommendationService creates a new RecommendationServicer.
func NewRecommendationService(db *gorm.DB, gateway catalog.Gateway) RecommendationServicer {
	return &recommendationService{db: db, gateway: gateway}
}

// Generate queries the catalog, filters by the policy's safety settings,
// scores the survivors and persists a pending recommendation for the best
// candidate. Returns ErrNoMatch when nothing survives filtering; the
// scheduler treats that as "skip this tick".
func (s *recommendationService) Generate(ctx context.Context, userID string, policy *models.AutoShopPolicy, search SearchContext) (*models.Recommendation, error) {
	products, err := s.gateway.QueryProducts(ctx, catalog.Query{
		Sphere: string(policy.Sphere),
		Text:   search.Text,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCatalogUnavailable, err)
	}

	excluded, err := s.permanentlyRejectedProductIDs(userID)
	if err != nil {
		return nil, err
	}

	avoid := splitList(policy.AvoidTags)
	candidates := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if excluded[p.ID] {
			continue
		}
		if p.TrustScore < policy.MinimumTrustScore {
			continue
		}
		if hasAnyTag(&p, avoid) {
			continue
		}
		candidates = append(candidates, p)
	}

	// Preferred categories are a soft filter: when nothing matches, fall
	// back to the unfiltered candidate set rather than stalling the
	// scheduler with NoMatch forever.
	preferred := splitList(policy.PreferredCategories)
	if len(preferred) > 0 {
		var matched []catalog.Product
		for _, p := range candidates {
			if hasAnyTag(&p, preferred) || containsFold(preferred, p.Category) {
				matched = append(matched, p)
			}
		}
		if len(matched) > 0 {
			candidates = matched
		}
	}

	if len(candidates) == 0 {
		return nil, apperrors.ErrNoMatch
	}

	var pick catalog.Product
	var confidence int
	var reason string

	if search.RandomMode || len(preferred) == 0 {
		pick = candidates[rand.Intn(len(candidates))]
		confidence = defaultConfidence
		reason = "Selected from " + string(policy.Sphere) + " catalog results"
	} else {
		pick = candidates[0]
		confidence = scoreProduct(&pick, policy, preferred)
		for i := 1; i < len(candidates); i++ {
			if score := scoreProduct(&candidates[i], policy, preferred); score > confidence {
				pick = candidates[i]
				confidence = score
			}
		}
		reason = fmt.Sprintf("Matches your preferred categories (%s)", policy.PreferredCategories)
	}

	rec := &models.Recommendation{
		UserID:      userID,
		ProductID:   pick.ID,
		ProductName: pick.Name,
		Price:       pick.Price,
		Reason:      reason,
		Confidence:  confidence,
		Status:      models.RecommendationStatusPending,
		SessionID:   search.SessionID,
	}
	if err := s.db.Create(rec).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rec, nil
}

// ListPending returns the user's pending recommendations, newest first.
func (s *recommendationService) ListPending(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Recommendation], error) {
	return s.listByStatus(userID, models.RecommendationStatusPending, page)
}

// ListPurchased returns the user's purchased recommendations, newest first.
func (s *recommendationService) ListPurchased(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Recommendation], error) {
	return s.listByStatus(userID, models.RecommendationStatusPurchased, page)
}

func (s *recommendationService) listByStatus(userID string, status models.RecommendationStatus, page pagination.PageRequest) (*pagination.PageResponse[models.Recommendation], error) {
	page.Defaults()

	base := s.db.Model(&models.Recommendation{}).Where("user_id = ? AND status = ?", userID, status)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var recs []models.Recommendation
	if err := base.Scopes(pagination.Paginate(page)).
		Order("created_at DESC").
		Find(&recs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(recs, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetByID retrieves a recommendation scoped to its owner.
func (s *recommendationService) GetByID(userID, recommendationID string) (*models.Recommendation, error) {
	var rec models.Recommendation
	if err := s.db.Where("id = ? AND user_id = ?", recommendationID, userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecommendationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &rec, nil
}

// MarkPurchased transitions a recommendation to purchased, conditional on
// it still being pending or in the cart. Callers must have already
// committed the corresponding ledger debit or card settlement.
func (s *recommendationService) MarkPurchased(recommendationID string) (*models.Recommendation, error) {
	now := time.Now()
	return s.transition(recommendationID, map[string]interface{}{
		"status":       models.RecommendationStatusPurchased,
		"purchased_at": &now,
	})
}

// Reject transitions a recommendation to rejected with a reason. The
// rejection kind distinguishes "try again later" from "never show again".
func (s *recommendationService) Reject(recommendationID, reason string, kind models.RejectionKind) (*models.Recommendation, error) {
	return s.transition(recommendationID, map[string]interface{}{
		"status":          models.RecommendationStatusRejected,
		"rejected_reason": reason,
		"rejection_kind":  kind,
	})
}

// UpdateStatus is the user-facing transition path: accepting into the
// cart or rejecting. Purchases only happen through the ledger path.
func (s *recommendationService) UpdateStatus(userID, recommendationID string, status models.RecommendationStatus, reason string, kind models.RejectionKind) (*models.Recommendation, error) {
	rec, err := s.GetByID(userID, recommendationID)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		return nil, apperrors.ErrRecommendationTerminal
	}

	switch status {
	case models.RecommendationStatusAddedToCart:
		return s.transition(recommendationID, map[string]interface{}{
			"status": models.RecommendationStatusAddedToCart,
		})
	case models.RecommendationStatusRejected:
		if kind == "" {
			kind = models.RejectionKindRetryable
		}
		return s.Reject(recommendationID, reason, kind)
	default:
		return nil, apperrors.ErrInvalidStatusTransition
	}
}

// transition applies updates conditional on the recommendation still being
// in a non-terminal state. A zero-row update means the row either does not
// exist or lost a race to a concurrent transition.
func (s *recommendationService) transition(recommendationID string, updates map[string]interface{}) (*models.Recommendation, error) {
	res := s.db.Model(&models.Recommendation{}).
		Where("id = ? AND status IN ?", recommendationID, []models.RecommendationStatus{
			models.RecommendationStatusPending,
			models.RecommendationStatusAddedToCart,
		}).
		Updates(updates)
	if res.Error != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}

	var rec models.Recommendation
	if err := s.db.Where("id = ?", recommendationID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecommendationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if res.RowsAffected == 0 {
		return &rec, apperrors.ErrRecommendationConflict
	}
	return &rec, nil
}

// permanentlyRejectedProductIDs returns product IDs the user has marked
// "never show again".
func (s *recommendationService) permanentlyRejectedProductIDs(userID string) (map[string]bool, error) {
	var ids []string
	err := s.db.Model(&models.Recommendation{}).
		Where("user_id = ? AND status = ? AND rejection_kind = ?",
			userID, models.RecommendationStatusRejected, models.RejectionKindPermanent).
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// scoreProduct computes a 0-100 confidence from tag affinity, trust score
// and price fit against the per-item cap.
func scoreProduct(p *catalog.Product, policy *models.AutoShopPolicy, preferred []string) int {
	score := 40

	if hasAnyTag(p, preferred) {
		score += 25
	}
	if containsFold(preferred, p.Category) {
		score += 10
	}

	// Trust contributes up to 15 points above the configured floor.
	if p.TrustScore > policy.MinimumTrustScore {
		headroom := 100 - policy.MinimumTrustScore
		if headroom > 0 {
			score += 15 * (p.TrustScore - policy.MinimumTrustScore) / headroom
		}
	}

	// Cheaper items relative to the per-item cap score higher.
	if policy.MaxPricePerItem > 0 && p.Price <= policy.MaxPricePerItem {
		score += int(10 * (policy.MaxPricePerItem - p.Price) / policy.MaxPricePerItem)
	}

	if score > 100 {
		score = 100
	}
	return score
}

// splitList parses a comma-separated tag list, trimming blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func hasAnyTag(p *catalog.Product, tags []string) bool {
	for _, t := range tags {
		if p.HasTag(t) {
			return true
		}
	}
	return false
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
