package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lureiq/internal/config"
	"github.com/sells-group/lureiq/internal/resilience"
)

// Flusher uploads queued feedback.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// Checker periodically retries the feedback upload and raises alerts.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	flusher   Flusher
	cfg       config.MonitoringConfig
}

// NewChecker creates a background checker. flusher may be nil.
func NewChecker(collector *Collector, alerter *Alerter, flusher Flusher, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		flusher:   flusher,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting feedback checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("feedback checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check runs one pass: flush a non-empty queue unless the collector's
// breaker is open, then evaluate and send alerts.
func (c *Checker) Check(ctx context.Context) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap := c.collector.Collect(ctx)
	if c.flusher != nil && snap.QueueDepth > 0 && snap.BreakerState != resilience.CircuitOpen.String() {
		n, err := c.flusher.Flush(ctx)
		if err != nil {
			log.Warn("monitoring: periodic flush failed", zap.Int("queued", snap.QueueDepth), zap.Error(err))
		} else if n > 0 {
			log.Info("monitoring: periodic flush uploaded records", zap.Int("uploaded", n))
		}
		snap = c.collector.Collect(ctx)
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered", zap.Int("queue_depth", snap.QueueDepth))
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
