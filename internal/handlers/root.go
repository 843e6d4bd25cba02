package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "Veiled Verse API",
		"version": "1.0.0",
		"status":  "running",
		"endpoints": gin.H{
			"auth": []string{
				"POST /signup",
				"POST /login",
				"POST /logout",
			},
			"stories": []string{
				"GET /stories",
				"GET /stories/mine",
				"POST /stories",
				"GET /stories/:id",
				"PATCH /stories/:id",
				"DELETE /stories/:id",
				"PUT /stories/:id/status",
				"POST /stories/:id/like",
				"POST /stories/:id/rate",
				"POST /stories/:id/view",
				"POST /stories/:id/buy",
			},
			"user": []string{
				"GET /me/purchases",
				"GET /me/wallet",
				"POST /me/wallet/withdraw",
				"GET /me/pending",
				"POST /me/pending/:id/retry",
				"DELETE /me/pending/:id",
				"GET /me/notifications",
			},
			"network": []string{
				"GET /network",
				"PUT /network",
				"POST /network/retry",
			},
			"upload": []string{
				"POST /upload/presigned",
			},
			"websocket": []string{
				"GET /ws",
			},
			"system": []string{
				"GET /healthz",
				"GET /metrics",
			},
		},
	})
}
