package middleware

import (
	"net/http"
	"strings"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/services"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

const customerKey = "customer"

// CustomerAuthMiddleware requires a bearer access token issued for the :widgetId widget and
// loads the customer it names.
func CustomerAuthMiddleware(tokens *security.TokenIssuer, customerService *services.CustomerService, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		widgetID := c.Param("widgetId")
		claims, err := tokens.Validate(token, security.PurposeAccess)
		if err != nil || claims.WidgetID != widgetID {
			logger.Auth().Debug("Rejected access token", "widgetId", widgetID, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		rec, err := customerService.Me(widgetID, claims.CustomerID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "customer not found"})
			return
		}
		c.Set(customerKey, rec)
		c.Next()
	}
}

// GetCustomer returns the customer loaded by CustomerAuthMiddleware.
func GetCustomer(c *gin.Context) (*customer.Record, bool) {
	v, ok := c.Get(customerKey)
	if !ok {
		return nil, false
	}
	rec, ok := v.(*customer.Record)
	return rec, ok
}
