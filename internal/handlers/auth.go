package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"veiled-verse/internal/auth"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/middleware"
	"veiled-verse/internal/models"
	"veiled-verse/internal/session"
	"veiled-verse/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errEmailTaken = errors.New("email already exists")

type AuthHandler struct {
	docs      docstore.Store
	sessions  *session.Registry
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthHandler(docs docstore.Store, sessions *session.Registry, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		docs:      docs,
		sessions:  sessions,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	roles := []string{string(auth.RoleReader)}
	if req.Role == string(auth.RoleWriter) {
		roles = append(roles, string(auth.RoleWriter))
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	user := models.User{
		ID:               uuid.New().String(),
		Email:            req.Email,
		Name:             strings.TrimSpace(req.Name),
		PasswordHash:     hashedPassword,
		Roles:            roles,
		PurchasedStories: []string{},
		CreatedAt:        time.Now().UTC(),
	}

	ctx := c.Request.Context()
	if err := h.claimEmail(ctx, user.Email, user.ID); err != nil {
		if errors.Is(err, errEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
			return
		}
		h.logger.Error("failed to claim email", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	doc, err := docstore.Encode(user)
	if err == nil {
		delete(doc, "id")
		err = h.docs.Set(ctx, docstore.CollectionUsers, user.ID, doc)
	}
	if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		if delErr := h.docs.Delete(ctx, docstore.CollectionEmails, user.Email); delErr != nil {
			h.logger.Warn("failed to release email", zap.Error(delErr))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	h.logger.Info("user signed up", zap.String(logger.FieldUserID, user.ID))
	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *AuthHandler) claimEmail(ctx context.Context, email, userID string) error {
	return h.docs.Transact(ctx, docstore.CollectionEmails, email, func(current docstore.Document) (docstore.Document, error) {
		if current != nil {
			return nil, errEmailTaken
		}
		return docstore.Document{"user_id": userID}, nil
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.Request.Context()

	user, err := h.findByEmail(ctx, req.Email)
	if errors.Is(err, docstore.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		h.logger.Error("failed to query user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *AuthHandler) findByEmail(ctx context.Context, email string) (models.User, error) {
	claim, err := h.docs.Get(ctx, docstore.CollectionEmails, email)
	if err != nil {
		return models.User{}, err
	}
	userID, _ := claim["user_id"].(string)
	if userID == "" {
		return models.User{}, docstore.ErrNotFound
	}

	doc, err := h.docs.Get(ctx, docstore.CollectionUsers, userID)
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := docstore.Decode(doc, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Logout closes the caller's session. The token stays valid until it
// expires; queued offline changes are kept for the next session.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	h.sessions.Remove(userID)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, status int, user models.User) {
	roles := make([]auth.Role, len(user.Roles))
	for i, r := range user.Roles {
		roles[i] = auth.Role(r)
	}

	token, err := auth.GenerateToken(auth.NewPrincipal(user.ID, user.Name, roles), h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(status, models.AuthResponse{
		Token:  token,
		UserID: user.ID,
		Email:  user.Email,
		Roles:  user.Roles,
	})
}
