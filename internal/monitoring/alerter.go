package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lureiq/internal/config"
	"github.com/sells-group/lureiq/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertQueueBacklog         AlertType = "feedback_queue_backlog"
	AlertStaleFeedback        AlertType = "feedback_stale"
	AlertCollectorUnavailable AlertType = "collector_unavailable"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// resendAfter suppresses repeats of an alert type that is still firing.
const resendAfter = time.Hour

// Alerter turns snapshots into alerts and posts them to a webhook. It
// remembers what it sent so a persisting condition does not page on every
// check.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	nowFunc func() time.Time

	mu       sync.Mutex
	lastSent map[AlertType]time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:      cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		nowFunc:  time.Now,
		lastSent: make(map[AlertType]time.Time),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// A zero threshold disables its check.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := a.nowFunc().UTC()

	if a.cfg.BacklogThreshold > 0 && snap.QueueDepth >= a.cfg.BacklogThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertQueueBacklog,
			Severity: "medium",
			Message: fmt.Sprintf("%d feedback records queued (threshold %d)",
				snap.QueueDepth, a.cfg.BacklogThreshold),
			Details: map[string]any{
				"queue_depth": snap.QueueDepth,
				"threshold":   a.cfg.BacklogThreshold,
			},
			Timestamp: now,
		})
	}

	if a.cfg.StaleAfterHours > 0 && snap.QueueDepth > 0 && snap.OldestAgeHours >= float64(a.cfg.StaleAfterHours) {
		alerts = append(alerts, Alert{
			Type:     AlertStaleFeedback,
			Severity: "high",
			Message: fmt.Sprintf("oldest queued feedback is %.1fh old (threshold %dh)",
				snap.OldestAgeHours, a.cfg.StaleAfterHours),
			Details: map[string]any{
				"oldest_age_hours": snap.OldestAgeHours,
				"queue_depth":      snap.QueueDepth,
			},
			Timestamp: now,
		})
	}

	if snap.BreakerState == resilience.CircuitOpen.String() {
		alerts = append(alerts, Alert{
			Type:     AlertCollectorUnavailable,
			Severity: "high",
			Message: fmt.Sprintf("collector circuit open after %d consecutive failures",
				snap.BreakerFailures),
			Details: map[string]any{
				"failures":    snap.BreakerFailures,
				"queue_depth": snap.QueueDepth,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts alerts to the webhook, skipping any type already sent
// within resendAfter, and returns how many were delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if !a.due(alert.Type) {
			zap.L().Debug("monitoring: alert suppressed", zap.String("type", string(alert.Type)))
			continue
		}
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		a.markSent(alert.Type)
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) due(t AlertType) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	last, ok := a.lastSent[t]
	return !ok || a.nowFunc().Sub(last) >= resendAfter
}

func (a *Alerter) markSent(t AlertType) {
	a.mu.Lock()
	a.lastSent[t] = a.nowFunc()
	a.mu.Unlock()
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	return resilience.CheckResponse("monitoring webhook", resp)
}
