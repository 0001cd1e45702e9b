package feedback

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/internal/resilience"
)

// Collector receives a batch of records. pkg/collector.Client implements it.
type Collector interface {
	Upload(ctx context.Context, records []model.FeedbackRecord) error
}

// Uploader flushes the whole queue to the collector in one request.
type Uploader struct {
	queue     *Queue
	collector Collector
	breaker   *resilience.CircuitBreaker

	mu sync.Mutex // one flush at a time
}

// NewUploader creates an Uploader. A nil collector makes Flush a no-op; a
// nil breaker disables circuit breaking.
func NewUploader(q *Queue, c Collector, breaker *resilience.CircuitBreaker) *Uploader {
	return &Uploader{queue: q, collector: c, breaker: breaker}
}

// Flush uploads every queued record. On success the uploaded records are
// removed; on failure the queue is left exactly as it was. It returns the
// number of records uploaded.
func (u *Uploader) Flush(ctx context.Context) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.collector == nil {
		return 0, nil
	}
	batch := u.queue.All(ctx)
	if len(batch) == 0 {
		return 0, nil
	}

	upload := func(ctx context.Context) error { return u.collector.Upload(ctx, batch) }
	var err error
	if u.breaker != nil {
		err = u.breaker.Execute(ctx, upload)
	} else {
		err = upload(ctx)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "feedback: upload %d records", len(batch))
	}

	if err := u.queue.remove(ctx, batch); err != nil {
		return 0, err
	}
	zap.L().Info("feedback: flushed queue", zap.Int("records", len(batch)))
	return len(batch), nil
}
