package handlers

import (
	"errors"
	"net/http"

	"veiled-verse/internal/middleware"
	"veiled-verse/internal/models"
	"veiled-verse/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UploadHandler struct {
	storage *storage.Storage
	logger  *zap.Logger
}

func NewUploadHandler(stor *storage.Storage, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		storage: stor,
		logger:  logger,
	}
}

// GetPresignedURL hands out an upload URL for a story cover image.
func (h *UploadHandler) GetPresignedURL(c *gin.Context) {
	var req models.PresignedUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	url, key, err := h.storage.PresignCoverUpload(c.Request.Context(), userID, req.FileName, req.ContentType)
	switch {
	case errors.Is(err, storage.ErrContentType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, storage.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads are not available"})
		return
	case err != nil:
		h.logger.Error("failed to generate presigned URL", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.logger.Info("presigned URL generated", zap.String("cover_key", key))

	c.JSON(http.StatusOK, models.PresignedUploadResponse{
		UploadURL: url,
		CoverKey:  key,
	})
}
