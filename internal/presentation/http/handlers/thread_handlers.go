package handlers

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/services"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/threads"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/supportwidget-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// ThreadHandlers serves the customer's chat threads
type ThreadHandlers struct {
	threadService *services.ThreadService
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

func NewThreadHandlers(threadService *services.ThreadService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *ThreadHandlers {
	return &ThreadHandlers{
		threadService: threadService,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

func (h *ThreadHandlers) ListThreads(c *gin.Context) {
	rec, ok := middleware.GetCustomer(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "customer context not found"})
		return
	}
	widgetID := c.Param("widgetId")

	marker := h.perfTracker.StartOperation("get_threads_request", widgetID)
	defer marker.Complete()

	list, err := h.threadService.List(widgetID, rec.ID)
	if err != nil {
		marker.SetError(err)
		respondError(c, err)
		return
	}

	marker.SetSuccess(true)
	marker.Complete()
	h.logger.Perf().Info("Performance for ListThreads request", "duration", marker.Duration, "widgetId", widgetID, "count", len(list))
	c.JSON(http.StatusOK, list)
}

func (h *ThreadHandlers) CreateThread(c *gin.Context) {
	start := time.Now()
	rec, ok := middleware.GetCustomer(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "customer context not found"})
		return
	}
	widgetID := c.Param("widgetId")

	var body threads.MessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	created, err := h.threadService.Create(widgetID, rec, body.Message)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.API().Info("Thread created", "widgetId", widgetID, "threadId", created.ThreadID, "duration", time.Since(start))
	c.JSON(http.StatusCreated, created)
}

func (h *ThreadHandlers) ListMessages(c *gin.Context) {
	rec, ok := middleware.GetCustomer(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "customer context not found"})
		return
	}

	chats, err := h.threadService.Messages(c.Param("widgetId"), rec.ID, c.Param("threadId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

func (h *ThreadHandlers) SendMessage(c *gin.Context) {
	rec, ok := middleware.GetCustomer(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "customer context not found"})
		return
	}

	var body threads.MessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	chat, err := h.threadService.Send(c.Param("widgetId"), rec, c.Param("threadId"), body.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}
