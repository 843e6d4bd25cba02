package handlers

import (
	"errors"
	"net/http"

	"veiled-verse/internal/middleware"
	"veiled-verse/internal/models"
	"veiled-verse/internal/session"
	"veiled-verse/internal/wallet"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccountHandler serves the signed-in user's own data: purchases, wallet,
// offline queue and recent notifications.
type AccountHandler struct {
	sessions *session.Registry
	wallets  *wallet.Service
	logger   *zap.Logger
}

func NewAccountHandler(sessions *session.Registry, wallets *wallet.Service, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		sessions: sessions,
		wallets:  wallets,
		logger:   logger,
	}
}

func (h *AccountHandler) Purchases(c *gin.Context) {
	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchased_stories": sess.Store.Purchases()})
}

func (h *AccountHandler) Wallet(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	w, err := h.wallets.Get(ctx, userID)
	if err != nil {
		h.logger.Error("failed to load wallet", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	txs, err := h.wallets.Transactions(ctx, userID)
	if err != nil {
		h.logger.Error("failed to load transactions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet":       w,
		"transactions": txs,
	})
}

func (h *AccountHandler) Withdraw(c *gin.Context) {
	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	w, err := h.wallets.Withdraw(c.Request.Context(), userID, req.Amount)
	if errors.Is(err, models.ErrInsufficientBalance) {
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient balance"})
		return
	}
	if err != nil {
		h.logger.Error("failed to withdraw", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"wallet": w})
}

func (h *AccountHandler) Pending(c *gin.Context) {
	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pending":      sess.Store.PendingActions(),
		"dead_letters": sess.Store.DeadLetters(),
	})
}

func (h *AccountHandler) RetryPending(c *gin.Context) {
	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	found, err := sess.Store.RetryDeadLetter(c.Request.Context(), c.Param("id"))
	if err != nil && !found {
		h.logger.Error("failed to retry action", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "action not found"})
		return
	}
	if err != nil {
		// the action is back in the queue; the next drain picks it up
		h.logger.Warn("retried action did not sync", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"pending":      sess.Store.PendingActions(),
		"dead_letters": sess.Store.DeadLetters(),
	})
}

func (h *AccountHandler) DiscardPending(c *gin.Context) {
	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}

	found, err := sess.Store.DiscardDeadLetter(c.Param("id"))
	if err != nil {
		h.logger.Error("failed to discard action", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "action not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) Notifications(c *gin.Context) {
	sess, ok := currentSession(c, h.sessions, h.logger)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": sess.Notifications.All()})
}
