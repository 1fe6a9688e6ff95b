package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "daswos/internal/errors"
	"daswos/internal/pagination"
	"daswos/internal/services"
)

// LedgerHandler handles DasWos Coins requests.
type LedgerHandler struct {
	ledgerService services.LedgerServicer
	auditService  services.AuditServicer
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerService services.LedgerServicer, auditService services.AuditServicer) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService, auditService: auditService}
}

// PurchaseCoinsRequest represents the request payload for buying coins.
type PurchaseCoinsRequest struct {
	Amount           int64  `json:"amount" binding:"required,gt=0"`
	PaymentMethodRef string `json:"payment_method_ref" binding:"max=100"`
}

// BalanceResponse represents the user's coin balance.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// GetBalance returns the user's coin balance
// @Summary     Get coin balance
// @Description Get the authenticated user's DasWos Coins balance, computed from the transaction ledger
// @Tags        coins
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} BalanceResponse "Current balance"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /coins/balance [get]
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	balance, err := h.ledgerService.Balance(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// GetTransactions returns the user's coin transaction history
// @Summary     Get coin transactions
// @Description Get a paginated list of the authenticated user's coin transactions, newest first
// @Tags        coins
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.CoinTransaction] "Paginated transactions"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /coins/transactions [get]
func (h *LedgerHandler) GetTransactions(c *gin.Context) {
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

	result, err := h.ledgerService.Transactions(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PurchaseCoins handles a coin top-up
// @Summary     Purchase coins
// @Description Buy DasWos Coins. Settlement goes through the payment gateway before the ledger is credited.
// @Tags        coins
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PurchaseCoinsRequest true "Purchase details"
// @Success     201 {object} models.CoinTransaction "Ledger entry for the purchase"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     402 {object} ErrorResponse "Settlement failed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /coins/purchase [post]
func (h *LedgerHandler) PurchaseCoins(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PurchaseCoinsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	txn, err := h.ledgerService.PurchaseCoins(c.Request.Context(), userID, req.Amount, req.PaymentMethodRef)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "PURCHASE_COINS", "coin_transaction", txn.ID, c.ClientIP(),
		map[string]interface{}{"amount": req.Amount})

	c.JSON(http.StatusCreated, gin.H{"transaction": txn})
}
