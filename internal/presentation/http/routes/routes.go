// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/supportwidget-go/internal/application/container"
	"github.com/AtRiskMedia/supportwidget-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/supportwidget-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// Options carries the origin policy and the admin token.
type Options struct {
	// CORSAllowedOrigins is empty to allow every origin.
	CORSAllowedOrigins []string
	// TrustedOrigins bypass widget domain validation (the widget app itself).
	TrustedOrigins []string
	AdminToken     string
}

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(c *container.Container, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(c))
	r.Use(middleware.CORSMiddleware(opts.CORSAllowedOrigins))

	widgetHandlers := handlers.NewWidgetHandlers(c.WidgetService, c.InitService, c.Logger, c.PerfTracker)
	customerHandlers := handlers.NewCustomerHandlers(c.CustomerService, c.Logger, c.PerfTracker)
	threadHandlers := handlers.NewThreadHandlers(c.ThreadService, c.Logger, c.PerfTracker)
	channelHandlers := handlers.NewChannelHandlers(c.Relay, c.Logger)
	healthHandlers := handlers.NewHealthHandlers(c.DB.DB)
	adminHandlers := handlers.NewAdminHandlers(c.WidgetService, c.Logger, c.PerfTracker)

	r.GET("/health", healthHandlers.Health)

	w := r.Group("/widgets/:widgetId")
	w.Use(middleware.DomainValidationMiddleware(c.WidgetService, opts.TrustedOrigins))
	{
		w.GET("/config/", widgetHandlers.GetConfig)
		w.POST("/init/", widgetHandlers.Init)
		w.GET("/channel/:key", channelHandlers.Serve)

		// Opened from the verification email, so it carries the token in the query.
		w.GET("/me/identities/verify/", customerHandlers.VerifyEmail)

		authed := w.Group("")
		authed.Use(middleware.CustomerAuthMiddleware(c.Tokens, c.CustomerService, c.Logger))
		{
			authed.GET("/me/", customerHandlers.GetMe)
			authed.POST("/me/identities/", customerHandlers.AddEmailIdentity)

			authed.GET("/threads/chat/", threadHandlers.ListThreads)
			authed.POST("/threads/chat/", threadHandlers.CreateThread)
			authed.GET("/threads/chat/:threadId/messages/", threadHandlers.ListMessages)
			authed.POST("/threads/chat/:threadId/messages/", threadHandlers.SendMessage)
		}
	}

	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminAuthMiddleware(opts.AdminToken))
	{
		admin.GET("/logs/levels", adminHandlers.GetLogLevels)
		admin.POST("/logs/levels", adminHandlers.SetLogLevel)
		admin.PUT("/widgets/:widgetId/config", adminHandlers.UpdateWidgetConfig)
		admin.GET("/performance", adminHandlers.GetPerformance)
	}

	return r
}

// requestLogger writes one API channel line per request.
func requestLogger(c *container.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()
		c.Logger.API().Debug("Request served",
			"method", ctx.Request.Method,
			"path", ctx.FullPath(),
			"status", ctx.Writer.Status(),
			"widgetId", ctx.Param("widgetId"))
	}
}
