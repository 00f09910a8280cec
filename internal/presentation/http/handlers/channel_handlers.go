package handlers

import (
	"net/http"

	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ChannelHandlers upgrades host and frame peers onto the message relay
type ChannelHandlers struct {
	relay    *messaging.Relay
	upgrader websocket.Upgrader
	logger   *logging.ChanneledLogger
}

// NewChannelHandlers accepts every handshake origin; the relay stamps that origin on each frame
// and receivers decide whether to trust it.
func NewChannelHandlers(relay *messaging.Relay, logger *logging.ChanneledLogger) *ChannelHandlers {
	return &ChannelHandlers{
		relay: relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve handles GET /widgets/:widgetId/channel/:key?role=host|frame
func (h *ChannelHandlers) Serve(c *gin.Context) {
	widgetID := c.Param("widgetId")
	key := c.Param("key")
	role := messaging.Role(c.Query("role"))
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be host or frame"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Relay().Warn("Websocket upgrade failed", "widgetId", widgetID, "error", err.Error())
		return
	}

	h.logger.Relay().Debug("Relay peer connected", "widgetId", widgetID, "role", role)
	if err := h.relay.Serve(conn, widgetID, key, role, c.GetHeader("Origin")); err != nil {
		h.logger.Relay().Warn("Relay peer rejected", "widgetId", widgetID, "role", role, "error", err.Error())
	}
}
