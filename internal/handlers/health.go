package handlers

import (
	"context"
	"net/http"
	"time"

	"veiled-verse/internal/cache"
	"veiled-verse/internal/db"
	"veiled-verse/internal/netmon"
	"veiled-verse/internal/storage"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	db      *db.DB
	cache   *cache.Cache
	storage *storage.Storage
	monitor *netmon.Monitor
}

func NewHealthHandler(database *db.DB, cach *cache.Cache, stor *storage.Storage, monitor *netmon.Monitor) *HealthHandler {
	return &HealthHandler{
		db:      database,
		cache:   cach,
		storage: stor,
		monitor: monitor,
	}
}

// Health reports each dependency. Redis and storage are optional; when they
// are not configured they show as "disabled" and do not fail the check.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
		"storage":  "ok",
	}

	if h.db == nil {
		checks["database"] = "disabled"
	} else if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
	}

	if h.cache == nil {
		checks["redis"] = "disabled"
	} else if err := h.cache.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
	}

	if h.storage == nil {
		checks["storage"] = "disabled"
	} else if err := h.storage.Ping(ctx); err != nil {
		checks["storage"] = err.Error()
	}

	healthy := true
	for _, status := range checks {
		if status != "ok" && status != "disabled" {
			healthy = false
			break
		}
	}

	statusCode := http.StatusOK
	if !healthy {
		statusCode = http.StatusServiceUnavailable
	}

	online := true
	if h.monitor != nil {
		online = h.monitor.IsOnline()
	}

	c.JSON(statusCode, gin.H{
		"status":  checks,
		"healthy": healthy,
		"online":  online,
	})
}
