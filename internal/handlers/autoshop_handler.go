package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "daswos/internal/errors"
	"daswos/internal/models"
	"daswos/internal/pagination"
	"daswos/internal/services"
)

// AutoShopHandler handles AutoShop session and settings requests.
type AutoShopHandler struct {
	autoShopService services.AutoShopServicer
	policyService   services.PolicyServicer
	recService      services.RecommendationServicer
	auditService    services.AuditServicer
}

// NewAutoShopHandler creates a new AutoShopHandler.
func NewAutoShopHandler(
	autoShopService services.AutoShopServicer,
	policyService services.PolicyServicer,
	recService services.RecommendationServicer,
	auditService services.AuditServicer,
) *AutoShopHandler {
	return &AutoShopHandler{
		autoShopService: autoShopService,
		policyService:   policyService,
		recService:      recService,
		auditService:    auditService,
	}
}

// StartSessionRequest represents the session start payload.
type StartSessionRequest struct {
	DurationMinutes int `json:"duration_minutes" binding:"required,gt=0,lte=1440"`
}

// UpdateSettingsRequest represents the AutoShop settings payload. Nil
// fields are left unchanged.
type UpdateSettingsRequest struct {
	Enabled             *bool                 `json:"enabled"`
	AutoPurchase        *bool                 `json:"auto_purchase"`
	ConfidenceThreshold *float64              `json:"confidence_threshold" binding:"omitempty,gte=0,lte=1"`
	MaxPricePerItem     *int64                `json:"max_price_per_item" binding:"omitempty,gte=0"`
	MinItemPrice        *int64                `json:"min_item_price" binding:"omitempty,gte=0"`
	BudgetLimit         *int64                `json:"budget_limit" binding:"omitempty,gte=0"`
	MaxCoinsPerItem     *int64                `json:"max_coins_per_item" binding:"omitempty,gte=0"`
	MaxCoinsPerDay      *int64                `json:"max_coins_per_day" binding:"omitempty,gte=0"`
	MaxCoinsOverall     *int64                `json:"max_coins_overall" binding:"omitempty,gte=0"`
	HourlyLimit         *int                  `json:"hourly_limit" binding:"omitempty,gte=0"`
	DailyLimit          *int                  `json:"daily_limit" binding:"omitempty,gte=0"`
	MonthlyLimit        *int                  `json:"monthly_limit" binding:"omitempty,gte=0"`
	PreferredCategories *string               `json:"preferred_categories" binding:"omitempty,max=500"`
	AvoidTags           *string               `json:"avoid_tags" binding:"omitempty,max=500"`
	MinimumTrustScore   *int                  `json:"minimum_trust_score" binding:"omitempty,gte=0,lte=100"`
	Sphere              *models.Sphere        `json:"sphere" binding:"omitempty,sphere"`
	PaymentMethod       *models.PaymentMethod `json:"payment_method" binding:"omitempty,payment_method"`
	PaymentMethodRef    *string               `json:"payment_method_ref" binding:"omitempty,max=100"`
}

// GetSettings returns the user's AutoShop settings
// @Summary     Get AutoShop settings
// @Description Get the authenticated user's AutoShop policy, creating a disabled default on first access
// @Tags        autoshop
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.AutoShopPolicy "Current settings"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /autoshop/settings [get]
func (h *AutoShopHandler) GetSettings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	policy, err := h.policyService.Get(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": policy})
}

// UpdateSettings updates the user's AutoShop settings
// @Summary     Update AutoShop settings
// @Description Update the authenticated user's AutoShop policy. Only provided fields change.
// @Tags        autoshop
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdateSettingsRequest true "Settings changes"
// @Success     200 {object} models.AutoShopPolicy "Updated settings"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /autoshop/settings [put]
func (h *AutoShopHandler) UpdateSettings(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	policy, err := h.policyService.Update(userID, services.PolicyUpdateFields{
		Enabled:             req.Enabled,
		AutoPurchase:        req.AutoPurchase,
		ConfidenceThreshold: req.ConfidenceThreshold,
		MaxPricePerItem:     req.MaxPricePerItem,
		MinItemPrice:        req.MinItemPrice,
		BudgetLimit:         req.BudgetLimit,
		MaxCoinsPerItem:     req.MaxCoinsPerItem,
		MaxCoinsPerDay:      req.MaxCoinsPerDay,
		MaxCoinsOverall:     req.MaxCoinsOverall,
		HourlyLimit:         req.HourlyLimit,
		DailyLimit:          req.DailyLimit,
		MonthlyLimit:        req.MonthlyLimit,
		PreferredCategories: req.PreferredCategories,
		AvoidTags:           req.AvoidTags,
		MinimumTrustScore:   req.MinimumTrustScore,
		Sphere:              req.Sphere,
		PaymentMethod:       req.PaymentMethod,
		PaymentMethodRef:    req.PaymentMethodRef,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_AUTOSHOP_SETTINGS", "autoshop_policy", policy.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"settings": policy})
}

// StartSession starts an AutoShop session
// @Summary     Start AutoShop session
// @Description Start a time-boxed autonomous shopping session. The first selection cycle runs immediately.
// @Tags        autoshop
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body StartSessionRequest true "Session duration"
// @Success     201 {object} models.AutoShopSession "Session started"
// @Failure     400 {object} ErrorResponse "Invalid input or AutoShop disabled"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     409 {object} ErrorResponse "A session is already active"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /autoshop/start [post]
func (h *AutoShopHandler) StartSession(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	session, err := h.autoShopService.Start(c.Request.Context(), userID, time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "START_AUTOSHOP_SESSION", "autoshop_session", session.ID, c.ClientIP(),
		map[string]interface{}{"duration_minutes": req.DurationMinutes})

	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// StopSession stops the active AutoShop session
// @Summary     Stop AutoShop session
// @Description Stop the authenticated user's active session. Stopping an already finished session is a no-op.
// @Tags        autoshop
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.AutoShopSession "Session after stopping"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "No session found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /autoshop/stop [post]
func (h *AutoShopHandler) StopSession(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	session, err := h.autoShopService.Stop(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "STOP_AUTOSHOP_SESSION", "autoshop_session", session.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// GetStatus returns the user's most recent session
// @Summary     Get AutoShop session status
// @Description Get the authenticated user's most recent AutoShop session
// @Tags        autoshop
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.AutoShopSession "Most recent session"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "No session found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /autoshop/status [get]
func (h *AutoShopHandler) GetStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	session, err := h.autoShopService.Status(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// GetPurchases returns recommendations AutoShop has purchased
// @Summary     List AutoShop purchases
// @Description Get a paginated list of the authenticated user's purchased recommendations, newest first
// @Tags        autoshop
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Recommendation] "Paginated purchases"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /autoshop/purchases [get]
func (h *AutoShopHandler) GetPurchases(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.recService.ListPurchased(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SweepExpiredSessions expires overdue sessions
// @Summary     Sweep expired sessions
// @Description Transition active sessions whose window has elapsed to expired. Intended for the internal scheduler.
// @Tags        internal
// @Accept      json
// @Produce     json
// @Param       X-API-Key header string true "Service API key"
// @Success     200 {object} map[string]int "Number of sessions expired"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /internal/autoshop/sweep [post]
func (h *AutoShopHandler) SweepExpiredSessions(c *gin.Context) {
	count, err := h.autoShopService.SweepExpired()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"expired": count})
}
