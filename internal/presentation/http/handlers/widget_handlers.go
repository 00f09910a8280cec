package handlers

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/services"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// WidgetHandlers serves the public widget endpoints: display config and the init exchange
type WidgetHandlers struct {
	widgetService *services.WidgetService
	initService   *services.InitService
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

func NewWidgetHandlers(widgetService *services.WidgetService, initService *services.InitService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *WidgetHandlers {
	return &WidgetHandlers{
		widgetService: widgetService,
		initService:   initService,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

// GetConfig returns the widget's effective display configuration
func (h *WidgetHandlers) GetConfig(c *gin.Context) {
	widgetID := c.Param("widgetId")
	h.logger.API().Debug("Received get widget config request", "method", c.Request.Method, "path", c.Request.URL.Path)

	marker := h.perfTracker.StartOperation("get_widget_config_request", widgetID)
	defer marker.Complete()

	cfg, err := h.widgetService.GetConfig(widgetID)
	if err != nil {
		marker.SetError(err)
		respondError(c, err)
		return
	}

	marker.SetSuccess(true)
	marker.Complete()
	h.logger.Perf().Info("Performance for GetConfig request", "duration", marker.Duration, "widgetId", widgetID, "success", true)
	c.JSON(http.StatusOK, cfg)
}

// Init runs the init exchange and returns the access token with the customer profile
func (h *WidgetHandlers) Init(c *gin.Context) {
	start := time.Now()
	widgetID := c.Param("widgetId")
	h.logger.API().Debug("Received widget init request", "method", c.Request.Method, "path", c.Request.URL.Path)

	marker := h.perfTracker.StartOperation("post_widget_init_request", widgetID)
	defer marker.Complete()

	var req customer.InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	result, err := h.initService.Init(widgetID, req)
	if err != nil {
		marker.SetError(err)
		if statusFor(err) == http.StatusInternalServerError {
			h.logger.LogError(logging.ChannelAPI, "widget_init", err, widgetID, nil)
		}
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.Response.Create {
		status = http.StatusCreated
	}
	h.logger.API().Info("Widget init request completed", "widgetId", widgetID, "create", result.Response.Create, "duration", time.Since(start))

	marker.SetSuccess(true)
	marker.Complete()
	h.logger.Perf().Info("Performance for Init request", "duration", marker.Duration, "widgetId", widgetID, "success", true)
	c.JSON(status, result.Response)
}
