package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "daswos/internal/errors"
	"daswos/internal/models"
)

// policyService handles AutoShop settings.
type policyService struct {
	db *gorm.DB
}

// NewPolicyService creates a new PolicyServicer.
func NewPolicyService(db *gorm.DB) PolicyServicer {
	return &policyService{db: db}
}

// Get returns the user's AutoShop policy, creating a disabled default on
// first read.
func (s *policyService) Get(userID string) (*models.AutoShopPolicy, error) {
	var policy models.AutoShopPolicy
	err := s.db.Where("user_id = ?", userID).First(&policy).Error
	if err == nil {
		return &policy, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	policy = models.AutoShopPolicy{
		UserID:              userID,
		ConfidenceThreshold: 0.75,
		Sphere:              models.SphereSafe,
		PaymentMethod:       models.PaymentMethodCoins,
	}
	if err := s.db.Create(&policy).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &policy, nil
}

// Update applies the given settings changes. This is the only mutation
// path for a policy; nil fields are left unchanged.
func (s *policyService) Update(userID string, fields PolicyUpdateFields) (*models.AutoShopPolicy, error) {
	policy, err := s.Get(userID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if fields.Enabled != nil {
		updates["enabled"] = *fields.Enabled
	}
	if fields.AutoPurchase != nil {
		updates["auto_purchase"] = *fields.AutoPurchase
	}
	if fields.ConfidenceThreshold != nil {
		if *fields.ConfidenceThreshold < 0 || *fields.ConfidenceThreshold > 1 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "confidence threshold must be between 0 and 1")
		}
		updates["confidence_threshold"] = *fields.ConfidenceThreshold
	}
	if fields.MaxPricePerItem != nil {
		updates["max_price_per_item"] = *fields.MaxPricePerItem
	}
	if fields.MinItemPrice != nil {
		updates["min_item_price"] = *fields.MinItemPrice
	}
	if fields.BudgetLimit != nil {
		updates["budget_limit"] = *fields.BudgetLimit
	}
	if fields.MaxCoinsPerItem != nil {
		updates["max_coins_per_item"] = *fields.MaxCoinsPerItem
	}
	if fields.MaxCoinsPerDay != nil {
		updates["max_coins_per_day"] = *fields.MaxCoinsPerDay
	}
	if fields.MaxCoinsOverall != nil {
		updates["max_coins_overall"] = *fields.MaxCoinsOverall
	}
	if fields.HourlyLimit != nil {
		updates["hourly_limit"] = *fields.HourlyLimit
	}
	if fields.DailyLimit != nil {
		updates["daily_limit"] = *fields.DailyLimit
	}
	if fields.MonthlyLimit != nil {
		updates["monthly_limit"] = *fields.MonthlyLimit
	}
	if fields.PreferredCategories != nil {
		updates["preferred_categories"] = *fields.PreferredCategories
	}
	if fields.AvoidTags != nil {
		updates["avoid_tags"] = *fields.AvoidTags
	}
	if fields.MinimumTrustScore != nil {
		if *fields.MinimumTrustScore < 0 || *fields.MinimumTrustScore > 100 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "minimum trust score must be between 0 and 100")
		}
		updates["minimum_trust_score"] = *fields.MinimumTrustScore
	}
	if fields.Sphere != nil {
		updates["sphere"] = *fields.Sphere
	}
	if fields.PaymentMethod != nil {
		updates["payment_method"] = *fields.PaymentMethod
	}
	if fields.PaymentMethodRef != nil {
		updates["payment_method_ref"] = *fields.PaymentMethodRef
	}

	if len(updates) > 0 {
		if err := s.db.Model(policy).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.db.Where("id = ?", policy.ID).First(policy).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return policy, nil
}
