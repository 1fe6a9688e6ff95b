// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("transaction_kind", validateTransactionKind)
		_ = v.RegisterValidation("recommendation_status", validateRecommendationStatus)
		_ = v.RegisterValidation("rejection_kind", validateRejectionKind)
		_ = v.RegisterValidation("sphere", validateSphere)
		_ = v.RegisterValidation("payment_method", validatePaymentMethod)
	}
}

func validateTransactionKind(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "purchase", "spend", "refund", "bonus":
		return true
	}
	return false
}

func validateRecommendationStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "pending", "added_to_cart", "purchased", "rejected":
		return true
	}
	return false
}

func validateRejectionKind(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "retryable", "permanent":
		return true
	}
	return false
}

func validateSphere(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "safesphere", "opensphere":
		return true
	}
	return false
}

func validatePaymentMethod(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "coins", "card":
		return true
	}
	return false
}
