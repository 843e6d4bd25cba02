package handlers

import (
	"net/http"

	"veiled-verse/internal/auth"
	"veiled-verse/internal/middleware"
	"veiled-verse/internal/models"
	"veiled-verse/internal/netmon"
	"veiled-verse/internal/websocket"
	"veiled-verse/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NetworkHandler struct {
	monitor *netmon.Monitor
	hub     *websocket.Hub
	logger  *zap.Logger
}

func NewNetworkHandler(monitor *netmon.Monitor, hub *websocket.Hub, logger *zap.Logger) *NetworkHandler {
	return &NetworkHandler{
		monitor: monitor,
		hub:     hub,
		logger:  logger,
	}
}

func (h *NetworkHandler) status() models.NetworkStatusResponse {
	return models.NetworkStatusResponse{
		Online:          h.monitor.IsOnline(),
		ConnectionType:  h.monitor.ConnectionType(),
		ConnectionSpeed: h.monitor.ConnectionSpeed(),
	}
}

func (h *NetworkHandler) broadcast(status models.NetworkStatusResponse) {
	if h.hub == nil {
		return
	}
	h.hub.SendToAll(websocket.Event{Type: websocket.EventNetworkStatus, Payload: status})
}

// Watch pushes every online/offline transition of the monitor to all open
// sockets, whatever caused it. The returned func stops watching.
func (h *NetworkHandler) Watch() func() {
	return h.monitor.Subscribe(func(online bool) {
		status := h.status()
		status.Online = online
		h.broadcast(status)
	})
}

func (h *NetworkHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status())
}

// SetStatus feeds a connectivity event into the monitor. Admin only, since
// the state is shared by every session.
func (h *NetworkHandler) SetStatus(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok || !principal.HasPermission(auth.CapAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	var req models.NetworkEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wasOnline := h.monitor.IsOnline()
	h.monitor.SetConnectionInfo(req.ConnectionType, req.ConnectionSpeed)
	h.monitor.HandleEvent(req.Online)
	h.logger.Info("network status set",
		zap.String(logger.FieldUserID, principal.UserID()),
		zap.Bool("online", req.Online))

	status := h.status()
	if wasOnline == req.Online {
		// transitions are pushed by Watch
		h.broadcast(status)
	}
	c.JSON(http.StatusOK, status)
}

func (h *NetworkHandler) Retry(c *gin.Context) {
	latency, err := h.monitor.RetryConnection(c.Request.Context())
	status := h.status()
	if err != nil {
		h.logger.Warn("connection retry failed", zap.Error(err))
	} else {
		ms := latency.Milliseconds()
		status.LatencyMS = &ms
	}
	c.JSON(http.StatusOK, status)
}
