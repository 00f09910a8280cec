// Package config provides centralized default values for the widget backend and controllers
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		log.Println("Loading configuration overrides from .env file...")
		// Load never overrides variables already present in the environment.
		if err := godotenv.Load(); err != nil {
			log.Printf("Failed to load .env: %v", err)
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

// getEnvSecret never echoes the value.
func getEnvSecret(key string) string {
	val := os.Getenv(key)
	if val != "" {
		log.Printf("Config override: %s=<redacted>", key)
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	log.Printf("Config override: %s=%v", key, out)
	return out
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Widget Configuration
	Env              string
	APIURL           string
	WidgetBaseURL    string
	HostOrigin       string
	InitTimeout      time.Duration
	DefaultWidgetID  string
	LegacyConfigMsg  bool
	ButtonRevealWait time.Duration

	// Database
	DBDriver       string
	DBDSN          string
	DBMaxOpenConns int
	DBMaxIdleConns int

	SlowQueryThreshold time.Duration

	// Cache
	WidgetCacheTTL       time.Duration
	CacheCleanupInterval time.Duration

	// Auth
	JWTSecret          string
	JWTTTL             time.Duration
	CustomerHashSecret string
	AdminToken         string

	// CORS
	CORSAllowedOrigins []string

	// Email
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string

	// Logging
	LogFormat string
	LogLevel  string
	LogToFile bool
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8000")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Widget Configuration
	Env = getEnvString("WIDGET_ENV", EnvProduction)
	APIURL = getEnvString("WIDGET_API_URL", "http://localhost:8000")
	WidgetBaseURL = getEnvString("WIDGET_BASE_URL", "http://localhost:3005")
	HostOrigin = getEnvString("WIDGET_HOST_ORIGIN", "http://localhost:3000")
	InitTimeout = getEnvDuration("WIDGET_INIT_TIMEOUT", 10*time.Second)
	DefaultWidgetID = getEnvString("DEFAULT_WIDGET_ID", "wd-1")
	LegacyConfigMsg = getEnvBool("WIDGET_LEGACY_CONFIG_MESSAGE", false)
	ButtonRevealWait = getEnvDuration("WIDGET_BUTTON_REVEAL_DELAY", time.Second)

	// Database
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DBDSN = getEnvString("DB_DSN", "./data/widget.db")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 250*time.Millisecond)

	WidgetCacheTTL = getEnvDuration("WIDGET_CACHE_TTL", time.Minute)
	CacheCleanupInterval = getEnvDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute)

	// Auth
	JWTSecret = getEnvSecret("JWT_SECRET")
	JWTTTL = getEnvDuration("JWT_TTL", 30*24*time.Hour)
	CustomerHashSecret = getEnvSecret("CUSTOMER_HASH_SECRET")
	AdminToken = getEnvSecret("ADMIN_TOKEN")

	CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS")

	// Email
	ResendAPIKey = getEnvSecret("RESEND_API_KEY")
	EmailFrom = getEnvString("EMAIL_FROM", "")
	EmailFromName = getEnvString("EMAIL_FROM_NAME", "Support")

	// Logging
	LogFormat = getEnvString("LOG_FORMAT", "text")
	LogLevel = getEnvString("LOG_LEVEL", "info")
	LogToFile = getEnvBool("LOG_TO_FILE", false)
}

// IsDevelopment reports whether development diagnostics are enabled.
func IsDevelopment() bool {
	return Env == EnvDevelopment
}
