package cleanup

import (
	"time"

	"github.com/AtRiskMedia/supportwidget-go/pkg/config"
)

// Config holds cleanup worker configuration, sourced from the central config package.
type Config struct {
	CleanupInterval time.Duration
}

func NewConfig() *Config {
	return &Config{CleanupInterval: config.CacheCleanupInterval}
}
