// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/container"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/caching/cleanup"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/supportwidget-go/internal/presentation/http/routes"
	"github.com/AtRiskMedia/supportwidget-go/internal/presentation/http/server"
	"github.com/AtRiskMedia/supportwidget-go/pkg/config"
	"github.com/gin-gonic/gin"
)

const defaultWidgetConfig = `{"bubblePosition":"right","headerColor":"#9370DB","iconColor":"#ffff"}`

// Initialize performs the complete startup sequence and blocks until a shutdown signal.
func Initialize() error {
	setupGin()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `
  ▀▀▀█ █  █ █▀▀▀   support widget backend
   ▄▀  ▀▄▄█ █ ▀█
  █▄▄▄ ▄▄▄▀ ▀▀▀▀
` + "\033[0m")

	// Step 1: Logger
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Channeled logging initialized", "format", config.LogFormat, "level", config.LogLevel)

	// Step 2: Secrets
	jwtSecret, err := resolveJWTSecret(logger)
	if err != nil {
		return err
	}
	if config.CustomerHashSecret == "" {
		logger.Startup().Warn("CUSTOMER_HASH_SECRET is not set; identified customers will be rejected")
	}

	// Step 3: Database
	logger.Startup().Info("Opening database...", "driver", config.DBDriver)
	db, err := database.NewConnectionWithLogger(config.DBDriver, config.DBDSN, database.Options{
		MaxOpenConns:    config.DBMaxOpenConns,
		MaxIdleConns:    config.DBMaxIdleConns,
		ConnMaxLifetime: time.Hour,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	tables := database.NewTableCreator()
	if err := tables.CreateSchema(db.DB); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := tables.SeedWidget(db.DB, config.DefaultWidgetID, "Default widget", defaultWidgetConfig); err != nil {
		db.Close()
		return fmt.Errorf("failed to seed default widget: %w", err)
	}
	logger.Startup().Info("Database ready", "defaultWidgetId", config.DefaultWidgetID)

	// Step 4: Container
	appContainer := container.NewContainer(db, container.Options{
		JWTSecret:          jwtSecret,
		JWTTTL:             config.JWTTTL,
		CustomerHashSecret: config.CustomerHashSecret,
		APIURL:             config.APIURL,
		ResendAPIKey:       config.ResendAPIKey,
		EmailFrom:          config.EmailFrom,
		EmailFromName:      config.EmailFromName,
		WidgetCacheTTL:     config.WidgetCacheTTL,
	}, logger)
	logger.Startup().Info("Dependency injection container created")

	// Step 5: Background cache cleanup
	cleanupWorker := cleanup.NewWorker(map[string]cleanup.Sweeper{
		"widgets": appContainer.WidgetCache,
	}, cleanup.NewConfig(), logger)
	go cleanupWorker.Start(ctx)

	// Step 6: HTTP server
	httpServer := server.New(config.Port, appContainer, routes.Options{
		CORSAllowedOrigins: config.CORSAllowedOrigins,
		TrustedOrigins:     []string{config.WidgetBaseURL},
		AdminToken:         config.AdminToken,
	}, server.Timeouts{
		Read:  config.ServerReadTimeout,
		Write: config.ServerWriteTimeout,
		Idle:  config.ServerIdleTimeout,
	})

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", config.Port,
		"env", config.Env)

	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			db.Close()
			return err
		}
	}

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	if err := db.Close(); err != nil {
		logger.Shutdown().Error("Error closing database", "error", err.Error())
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))
	return nil
}

func newLogger() (*logging.ChanneledLogger, error) {
	cfg := logging.DefaultLoggerConfig()
	cfg.JSONFormat = config.LogFormat == "json"
	cfg.OutputToFile = config.LogToFile
	cfg.DefaultLevel = logging.ParseLevel(config.LogLevel)
	cfg.DevMode = config.IsDevelopment()
	return logging.NewChanneledLogger(cfg)
}

// resolveJWTSecret requires JWT_SECRET in production and generates a throwaway one in development.
func resolveJWTSecret(logger *logging.ChanneledLogger) (string, error) {
	if config.JWTSecret != "" {
		return config.JWTSecret, nil
	}
	if !config.IsDevelopment() {
		return "", fmt.Errorf("JWT_SECRET is required when WIDGET_ENV=%s", config.Env)
	}
	secret, err := security.GenerateSecureKey(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate development JWT secret: %w", err)
	}
	logger.Startup().Warn("JWT_SECRET not set; using a generated development secret, tokens will not survive restarts")
	return secret, nil
}

// setupGin configures gin's global mode
func setupGin() {
	if os.Getenv("GIN_MODE") == "release" || !config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
