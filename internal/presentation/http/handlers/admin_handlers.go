package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/services"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// AdminHandlers serves operator endpoints under /api/admin
type AdminHandlers struct {
	widgetService *services.WidgetService
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

func NewAdminHandlers(widgetService *services.WidgetService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AdminHandlers {
	return &AdminHandlers{
		widgetService: widgetService,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

// GetLogLevels handles GET /api/admin/logs/levels
func (h *AdminHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

// SetLogLevel handles POST /api/admin/logs/levels
func (h *AdminHandlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(req.Level)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log level specified"})
		return
	}

	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to set log level", "details": err.Error()})
		return
	}
	h.logger.System().Info("Log level changed", "channel", req.Channel, "level", level.String())
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": fmt.Sprintf("log level for channel '%s' set to '%s'", req.Channel, level.String())})
}

// UpdateWidgetConfig handles PUT /api/admin/widgets/:widgetId/config
func (h *AdminHandlers) UpdateWidgetConfig(c *gin.Context) {
	widgetID := c.Param("widgetId")

	var overrides widgets.Overrides
	if err := c.ShouldBindJSON(&overrides); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if pos := overrides.BubblePosition; pos != nil && *pos != "" && *pos != widgets.BubbleLeft && *pos != widgets.BubbleRight {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bubblePosition must be left or right"})
		return
	}

	cfg, err := h.widgetService.UpdateConfig(widgetID, overrides)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.API().Info("Widget config updated", "widgetId", widgetID)
	c.JSON(http.StatusOK, cfg)
}

// GetPerformance handles GET /api/admin/performance?widgetId=
func (h *AdminHandlers) GetPerformance(c *gin.Context) {
	stats := h.perfTracker.AllStats()
	averages := make(map[string]string, len(stats))
	for op, s := range stats {
		averages[op] = s.Average().String()
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":    stats,
		"averages": averages,
		"recent":   h.perfTracker.GetRecent(c.Query("widgetId")),
	})
}
