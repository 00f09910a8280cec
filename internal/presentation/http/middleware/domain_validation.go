package middleware

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/services"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/messaging"
	"github.com/gin-gonic/gin"
)

const widgetKey = "widget"

// DomainValidationMiddleware loads the widget named by the :widgetId route parameter and, when
// the widget is restricted to its domains, rejects requests from other origins. Requests without
// an Origin header and requests from trusted origins (the widget app itself) are let through.
func DomainValidationMiddleware(widgetService *services.WidgetService, trustedOrigins []string) gin.HandlerFunc {
	trusted := make(map[string]bool, len(trustedOrigins))
	for _, o := range trustedOrigins {
		if norm, err := messaging.OriginOf(o); err == nil {
			trusted[norm] = true
		}
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		w, err := widgetService.Get(c.Param("widgetId"))
		if errors.Is(err, services.ErrWidgetNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "widget not found"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load widget"})
			return
		}
		c.Set(widgetKey, w)

		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if norm, err := messaging.OriginOf(origin); err == nil && trusted[norm] {
			c.Next()
			return
		}

		originURL, err := url.Parse(origin)
		if err != nil || !w.Effective().DomainAllowed(originURL.Hostname()) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "domain not allowed for widget"})
			return
		}
		c.Next()
	}
}

// GetWidget returns the widget loaded by DomainValidationMiddleware.
func GetWidget(c *gin.Context) (*widgets.Widget, bool) {
	v, ok := c.Get(widgetKey)
	if !ok {
		return nil, false
	}
	w, ok := v.(*widgets.Widget)
	return w, ok
}
