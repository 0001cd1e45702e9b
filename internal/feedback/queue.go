// Package feedback schedules the delayed "did it work?" prompt for a
// recommendation and queues the answers for upload.
package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/internal/store"
)

// Durable store keys.
const (
	ScheduledKey = "lureiq_feedback_scheduled"
	QueueKey     = "lureiq_feedback_queue"
)

// Queue is the durable, ordered list of records awaiting upload. All
// read-modify-write cycles are serialized within the process.
type Queue struct {
	kv store.KV
	mu sync.Mutex
}

// NewQueue creates a Queue on kv.
func NewQueue(kv store.KV) *Queue {
	return &Queue{kv: kv}
}

func (q *Queue) loadLocked(ctx context.Context) []model.FeedbackRecord {
	return store.GetJSON[[]model.FeedbackRecord](ctx, q.kv, QueueKey, nil)
}

// loadForUpdate reads the queue ahead of a write. A failed read aborts the
// write so the stored records are never replaced by a partial view.
func (q *Queue) loadForUpdate(ctx context.Context) ([]model.FeedbackRecord, error) {
	return store.LoadJSON[[]model.FeedbackRecord](ctx, q.kv, QueueKey, nil)
}

// Append adds rec to the end of the queue.
func (q *Queue) Append(ctx context.Context, rec model.FeedbackRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	recs, err := q.loadForUpdate(ctx)
	if err != nil {
		return eris.Wrap(err, "feedback: append record")
	}
	recs = append(recs, rec)
	if err := store.SetJSON(ctx, q.kv, QueueKey, recs); err != nil {
		return eris.Wrap(err, "feedback: append record")
	}
	return nil
}

// All returns every queued record in order. A corrupt queue reads as empty.
func (q *Queue) All(ctx context.Context) []model.FeedbackRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loadLocked(ctx)
}

// Len returns the number of queued records.
func (q *Queue) Len(ctx context.Context) int {
	return len(q.All(ctx))
}

// Since returns queued records with a timestamp at or after now-window.
func (q *Queue) Since(ctx context.Context, window time.Duration, now time.Time) []model.FeedbackRecord {
	cutoff := now.Add(-window).UnixMilli()
	var out []model.FeedbackRecord
	for _, r := range q.All(ctx) {
		if r.Timestamp >= cutoff {
			out = append(out, r)
		}
	}
	return out
}

// remove drops the records whose IDs appear in uploaded, keeping anything
// appended since the upload started.
func (q *Queue) remove(ctx context.Context, uploaded []model.FeedbackRecord) error {
	ids := make(map[string]struct{}, len(uploaded))
	for _, r := range uploaded {
		ids[r.ID] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	current, err := q.loadForUpdate(ctx)
	if err != nil {
		return eris.Wrap(err, "feedback: clear uploaded records")
	}
	kept := make([]model.FeedbackRecord, 0, len(current))
	for _, r := range current {
		if _, ok := ids[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	if err := store.SetJSON(ctx, q.kv, QueueKey, kept); err != nil {
		return eris.Wrap(err, "feedback: clear uploaded records")
	}
	return nil
}
