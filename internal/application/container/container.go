// Package container provides dependency injection for all singleton services
package container

import (
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/services"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/caching/adapters"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/caching/stores"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/email"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/persistence/widget"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/security"
)

// Options carries the secrets and endpoints the container needs. Startup fills it from pkg/config.
type Options struct {
	JWTSecret          string
	JWTTTL             time.Duration
	CustomerHashSecret string
	APIURL             string
	ResendAPIKey       string
	EmailFrom          string
	EmailFromName      string
	WidgetCacheTTL     time.Duration
}

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application services
	WidgetService   *services.WidgetService
	InitService     *services.InitService
	CustomerService *services.CustomerService
	ThreadService   *services.ThreadService

	// Infrastructure dependencies
	DB          *database.DB
	WidgetCache *stores.WidgetStore
	Tokens      *security.TokenIssuer
	Verifier    *security.HashVerifier
	Mailer      email.Service
	Relay       *messaging.Relay
	Logger      *logging.ChanneledLogger
	PerfTracker *performance.Tracker
}

// NewContainer creates and wires all singleton services over one database handle
func NewContainer(db *database.DB, opts Options, logger *logging.ChanneledLogger) *Container {
	widgetCache := stores.NewWidgetStore(opts.WidgetCacheTTL, logger)
	widgetRepo := adapters.NewCachedWidgetRepository(widget.NewWidgetRepository(db.DB, logger), widgetCache)
	customerRepo := widget.NewCustomerRepository(db.DB, logger)
	identityRepo := widget.NewEmailIdentityRepository(db.DB, logger)
	threadRepo := widget.NewThreadRepository(db.DB, logger)

	tokens := security.NewTokenIssuer(opts.JWTSecret, opts.JWTTTL)
	verifier := security.NewHashVerifier(opts.CustomerHashSecret)
	mailer := email.NewService(opts.ResendAPIKey, opts.EmailFrom, opts.EmailFromName, logger)

	widgetService := services.NewWidgetService(widgetRepo)

	return &Container{
		WidgetService:   widgetService,
		InitService:     services.NewInitService(widgetService, customerRepo, verifier, tokens, logger),
		CustomerService: services.NewCustomerService(widgetService, customerRepo, identityRepo, tokens, mailer, opts.APIURL, logger),
		ThreadService:   services.NewThreadService(threadRepo),

		DB:          db,
		WidgetCache: widgetCache,
		Tokens:      tokens,
		Verifier:    verifier,
		Mailer:      mailer,
		Relay:       messaging.NewRelay(logger),
		Logger:      logger,
		PerfTracker: performance.NewTracker(1000),
	}
}
