package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "daswos/internal/errors"
	"daswos/internal/models"
	"daswos/internal/pagination"
	"daswos/internal/services"
)

// RecommendationHandler handles recommendation lifecycle requests.
type RecommendationHandler struct {
	recommendationService services.RecommendationServicer
	auditService          services.AuditServicer
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(recommendationService services.RecommendationServicer, auditService services.AuditServicer) *RecommendationHandler {
	return &RecommendationHandler{recommendationService: recommendationService, auditService: auditService}
}

// UpdateRecommendationStatusRequest represents the status update payload.
// Users can accept a recommendation into the cart or reject it; purchases
// happen only through settlement.
type UpdateRecommendationStatusRequest struct {
	Status        models.RecommendationStatus `json:"status" binding:"required,recommendation_status"`
	Reason        string                      `json:"reason" binding:"max=500"`
	RejectionKind models.RejectionKind        `json:"rejection_kind" binding:"omitempty,rejection_kind"`
}

// ListPending returns the user's pending recommendations
// @Summary     List pending recommendations
// @Description Get a paginated list of the authenticated user's pending recommendations, newest first
// @Tags        recommendations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Recommendation] "Paginated recommendations"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recommendations/pending [get]
func (h *RecommendationHandler) ListPending(c *gin.Context) {
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

	result, err := h.recommendationService.ListPending(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UpdateStatus transitions a recommendation
// @Summary     Update recommendation status
// @Description Accept a pending recommendation into the cart or reject it. Terminal recommendations cannot be changed.
// @Tags        recommendations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Recommendation ID"
// @Param       request body UpdateRecommendationStatusRequest true "New status"
// @Success     200 {object} models.Recommendation "Updated recommendation"
// @Failure     400 {object} ErrorResponse "Invalid input or transition"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Recommendation not found"
// @Failure     409 {object} ErrorResponse "Recommendation already resolved"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recommendations/{id}/status [put]
func (h *RecommendationHandler) UpdateStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recommendationID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateRecommendationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rec, err := h.recommendationService.UpdateStatus(userID, recommendationID, req.Status, req.Reason, req.RejectionKind)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_RECOMMENDATION", "recommendation", recommendationID, c.ClientIP(),
		map[string]interface{}{"status": req.Status})

	c.JSON(http.StatusOK, gin.H{"recommendation": rec})
}
