// Package cleanup provides the background cache sweeper
package cleanup

import (
	"context"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
)

// Sweeper is a cache that can drop its expired entries.
type Sweeper interface {
	Sweep() int
}

// Worker periodically sweeps registered caches
type Worker struct {
	caches map[string]Sweeper
	config *Config
	logger *logging.ChanneledLogger
}

func NewWorker(caches map[string]Sweeper, config *Config, logger *logging.ChanneledLogger) *Worker {
	return &Worker{caches: caches, config: config, logger: logger}
}

// Start blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	if w.config.CleanupInterval <= 0 {
		w.logger.Cache().Info("Cache cleanup worker disabled")
		return
	}
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	w.logger.Cache().Info("Cache cleanup worker started", "interval", w.config.CleanupInterval)
	for {
		select {
		case <-ctx.Done():
			w.logger.Cache().Info("Cache cleanup worker stopping")
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce sweeps every cache and returns the total entries removed.
func (w *Worker) RunOnce() int {
	start := time.Now()
	total := 0
	for name, c := range w.caches {
		removed := c.Sweep()
		if removed > 0 {
			w.logger.Cache().Debug("Swept cache", "cache", name, "removed", removed)
		}
		total += removed
	}
	if total > 0 {
		w.logger.Cache().Info("Cache cleanup completed", "removed", total, "duration", time.Since(start))
	}
	return total
}
