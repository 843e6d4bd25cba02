package handlers

import (
	"veiled-verse/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes holds every handler the API mounts. Nil handlers leave their routes
// out.
type Routes struct {
	Auth      *AuthHandler
	Stories   *StoriesHandler
	Account   *AccountHandler
	Network   *NetworkHandler
	Upload    *UploadHandler
	Health    *HealthHandler
	WebSocket *WebSocketHandler

	// CreateLimit and BuyLimit, when set, run before story creation and
	// purchase.
	CreateLimit gin.HandlerFunc
	BuyLimit    gin.HandlerFunc
}

func limited(limit gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if limit == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{limit, h}
}

func (r Routes) Register(router *gin.Engine, jwtSecret string) {
	router.GET("/", RootHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if r.Health != nil {
		router.GET("/healthz", r.Health.Health)
	}
	if r.Auth != nil {
		router.POST("/signup", r.Auth.Signup)
		router.POST("/login", r.Auth.Login)
	}

	authRoutes := router.Group("/")
	authRoutes.Use(middleware.AuthMiddleware(jwtSecret))

	if r.Auth != nil {
		authRoutes.POST("/logout", r.Auth.Logout)
	}

	if r.Stories != nil {
		authRoutes.GET("/stories", r.Stories.ListStories)
		authRoutes.GET("/stories/mine", r.Stories.MyStories)
		authRoutes.POST("/stories", limited(r.CreateLimit, r.Stories.CreateStory)...)
		authRoutes.GET("/stories/:id", r.Stories.GetStory)
		authRoutes.PATCH("/stories/:id", r.Stories.UpdateStory)
		authRoutes.DELETE("/stories/:id", r.Stories.DeleteStory)
		authRoutes.PUT("/stories/:id/status", r.Stories.SetStatus)
		authRoutes.POST("/stories/:id/like", r.Stories.LikeStory)
		authRoutes.POST("/stories/:id/rate", r.Stories.RateStory)
		authRoutes.POST("/stories/:id/view", r.Stories.ViewStory)
		authRoutes.POST("/stories/:id/buy", limited(r.BuyLimit, r.Stories.BuyStory)...)
	}

	if r.Account != nil {
		authRoutes.GET("/me/purchases", r.Account.Purchases)
		authRoutes.GET("/me/wallet", r.Account.Wallet)
		authRoutes.POST("/me/wallet/withdraw", r.Account.Withdraw)
		authRoutes.GET("/me/pending", r.Account.Pending)
		authRoutes.POST("/me/pending/:id/retry", r.Account.RetryPending)
		authRoutes.DELETE("/me/pending/:id", r.Account.DiscardPending)
		authRoutes.GET("/me/notifications", r.Account.Notifications)
	}

	if r.Network != nil {
		authRoutes.GET("/network", r.Network.GetStatus)
		authRoutes.PUT("/network", r.Network.SetStatus)
		authRoutes.POST("/network/retry", r.Network.Retry)
	}

	if r.Upload != nil {
		authRoutes.POST("/upload/presigned", r.Upload.GetPresignedURL)
	}

	if r.WebSocket != nil {
		authRoutes.GET("/ws", r.WebSocket.Connect)
	}
}
