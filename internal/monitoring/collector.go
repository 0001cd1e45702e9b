// Package monitoring watches the feedback queue while the server runs:
// it retries stalled uploads and alerts when records pile up.
package monitoring

import (
	"context"
	"time"

	"github.com/sells-group/lureiq/internal/feedback"
	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/internal/resilience"
)

// MetricsSnapshot holds a point-in-time view of feedback delivery health.
type MetricsSnapshot struct {
	// Queue
	QueueDepth     int        `json:"queue_depth"`
	OldestQueuedAt *time.Time `json:"oldest_queued_at,omitempty"`
	OldestAgeHours float64    `json:"oldest_age_hours"`

	// Upload path
	BreakerState    string `json:"breaker_state"`
	BreakerFailures int    `json:"breaker_failures"`

	PromptState string `json:"prompt_state"`

	CollectedAt time.Time `json:"collected_at"`
}

// QueueReader is the part of feedback.Queue the collector reads.
type QueueReader interface {
	All(ctx context.Context) []model.FeedbackRecord
}

// BreakerReader is the part of resilience.CircuitBreaker the collector reads.
type BreakerReader interface {
	State() resilience.CircuitState
	Failures() int
}

// PromptReader reports the scheduler's slot state.
type PromptReader interface {
	State() feedback.State
}

// Collector gathers snapshots. Breaker and prompt readers are optional.
type Collector struct {
	queue   QueueReader
	breaker BreakerReader
	prompt  PromptReader
	nowFunc func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(q QueueReader, breaker BreakerReader, prompt PromptReader) *Collector {
	return &Collector{queue: q, breaker: breaker, prompt: prompt, nowFunc: time.Now}
}

// Collect gathers a snapshot. It never fails: an unreadable queue reads
// as empty.
func (c *Collector) Collect(ctx context.Context) *MetricsSnapshot {
	now := c.nowFunc().UTC()
	snap := &MetricsSnapshot{
		BreakerState: resilience.CircuitClosed.String(),
		PromptState:  feedback.Idle.String(),
		CollectedAt:  now,
	}

	records := c.queue.All(ctx)
	snap.QueueDepth = len(records)
	for _, r := range records {
		ts := r.Time().UTC()
		if snap.OldestQueuedAt == nil || ts.Before(*snap.OldestQueuedAt) {
			snap.OldestQueuedAt = &ts
		}
	}
	if snap.OldestQueuedAt != nil {
		snap.OldestAgeHours = now.Sub(*snap.OldestQueuedAt).Hours()
	}

	if c.breaker != nil {
		snap.BreakerState = c.breaker.State().String()
		snap.BreakerFailures = c.breaker.Failures()
	}
	if c.prompt != nil {
		snap.PromptState = c.prompt.State().String()
	}
	return snap
}
