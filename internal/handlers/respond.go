package handlers

import (
	"net/http"

	"veiled-verse/internal/apperr"
	"veiled-verse/internal/middleware"
	"veiled-verse/internal/session"
	"veiled-verse/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, err error) {
	if ae := apperr.As(err); ae != nil {
		c.JSON(ae.HTTPStatus, gin.H{"error": ae.Message, "code": ae.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// currentSession returns the caller's session, writing the error response
// itself when there is none.
func currentSession(c *gin.Context, sessions *session.Registry, log *zap.Logger) (*session.Session, bool) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}

	sess, err := sessions.Get(c.Request.Context(), principal)
	if err != nil {
		log.Error("failed to open session", zap.String(logger.FieldUserID, principal.UserID()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return nil, false
	}
	return sess, true
}
