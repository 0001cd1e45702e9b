package feedback

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/internal/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeCollector struct {
	mu       sync.Mutex
	batches  [][]model.FeedbackRecord
	err      error
	onUpload func()
}

func (f *fakeCollector) Upload(_ context.Context, recs []model.FeedbackRecord) error {
	f.mu.Lock()
	hook := f.onUpload
	f.batches = append(f.batches, append([]model.FeedbackRecord(nil), recs...))
	err := f.err
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeCollector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

// flakyKV fails the next failGets reads, then behaves like the memory store.
type flakyKV struct {
	*store.MemoryStore
	mu       sync.Mutex
	failGets int
}

func (f *flakyKV) FailNextGet() {
	f.mu.Lock()
	f.failGets++
	f.mu.Unlock()
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	fail := f.failGets > 0
	if fail {
		f.failGets--
	}
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset")
	}
	return f.MemoryStore.Get(ctx, key)
}

type fakeLocator struct {
	coords *model.Coordinates
	err    error
	hook   func()
}

func (f fakeLocator) Locate(context.Context) (*model.Coordinates, error) {
	if f.hook != nil {
		f.hook()
	}
	return f.coords, f.err
}

// dueRecorder counts onDue callbacks.
type dueRecorder struct {
	mu      sync.Mutex
	prompts []model.ScheduledPrompt
}

func (d *dueRecorder) record(p model.ScheduledPrompt) {
	d.mu.Lock()
	d.prompts = append(d.prompts, p)
	d.mu.Unlock()
}

func (d *dueRecorder) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.prompts)
}

type fixture struct {
	kv    *store.MemoryStore
	queue *Queue
	clock *testClock
	due   *dueRecorder
	sched *Scheduler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		kv:    store.NewMemory(),
		clock: newTestClock(),
		due:   &dueRecorder{},
	}
	f.queue = NewQueue(f.kv)
	f.sched = f.newScheduler(opts...)
	t.Cleanup(f.sched.Close)
	return f
}

// newScheduler builds a scheduler over the same store, as after a restart.
func (f *fixture) newScheduler(opts ...Option) *Scheduler {
	s := NewScheduler(f.kv, f.queue, append([]Option{WithOnDue(f.due.record)}, opts...)...)
	s.nowFunc = f.clock.Now
	return s
}

func waitTask(t *testing.T, task *Task) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	select {
	case <-task.Done():
	case <-ctx.Done():
		t.Fatal("task did not finish")
	}
}

func record(id string, ts int64) model.FeedbackRecord {
	return model.FeedbackRecord{ID: id, RecommendationID: id, LureName: "Chatterbait", Timestamp: ts}
}

func mustAppend(t *testing.T, q *Queue, recs ...model.FeedbackRecord) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, q.Append(context.Background(), r))
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
