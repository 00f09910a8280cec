package handlers

import (
	"net/http"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/services"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/supportwidget-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// AddEmailRequest is the body of POST /me/identities/.
type AddEmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// CustomerHandlers serves the authenticated customer's profile
type CustomerHandlers struct {
	customerService *services.CustomerService
	logger          *logging.ChanneledLogger
	perfTracker     *performance.Tracker
}

func NewCustomerHandlers(customerService *services.CustomerService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *CustomerHandlers {
	return &CustomerHandlers{
		customerService: customerService,
		logger:          logger,
		perfTracker:     perfTracker,
	}
}

func (h *CustomerHandlers) GetMe(c *gin.Context) {
	rec, ok := middleware.GetCustomer(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "customer context not found"})
		return
	}
	c.JSON(http.StatusOK, rec.Profile())
}

// AddEmailIdentity adds an email to the customer and sends the verification link
func (h *CustomerHandlers) AddEmailIdentity(c *gin.Context) {
	rec, ok := middleware.GetCustomer(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "customer context not found"})
		return
	}
	widgetID := c.Param("widgetId")

	marker := h.perfTracker.StartOperation("post_email_identity_request", widgetID)
	defer marker.Complete()

	var req AddEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	updated, err := h.customerService.AddEmailIdentity(widgetID, rec.ID, req.Email)
	if err != nil {
		marker.SetError(err)
		respondError(c, err)
		return
	}

	marker.SetSuccess(true)
	marker.Complete()
	h.logger.Perf().Info("Performance for AddEmailIdentity request", "duration", marker.Duration, "widgetId", widgetID, "success", true)
	c.JSON(http.StatusOK, updated.Profile())
}

// VerifyEmail consumes the token from a verification email link
func (h *CustomerHandlers) VerifyEmail(c *gin.Context) {
	widgetID := c.Param("widgetId")
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	rec, err := h.customerService.VerifyEmail(widgetID, token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"verified": true,
		"customer": rec.Profile(),
	})
}
