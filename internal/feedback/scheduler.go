package feedback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/internal/store"
)

// DefaultDelay is how long after a recommendation the prompt appears.
const DefaultDelay = 90 * time.Minute

const backgroundTimeout = 30 * time.Second

// ErrClosed is reported by tasks started after Close.
var ErrClosed = eris.New("feedback: scheduler closed")

// State is the scheduler's view of the single prompt slot.
type State int

const (
	Idle State = iota
	Scheduled
	Due
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Due:
		return "due"
	}
	return "unknown"
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Locator supplies the location attached to a feedback record.
type Locator interface {
	Locate(ctx context.Context) (*model.Coordinates, error)
}

// Flusher uploads the queue. *Uploader implements it.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocator attaches best-effort coordinates to resolved records.
func WithLocator(l Locator) Option {
	return func(s *Scheduler) { s.locator = l }
}

// WithFlusher flushes the queue after each resolve and on resume.
func WithFlusher(f Flusher) Option {
	return func(s *Scheduler) { s.flusher = f }
}

// WithOnDue registers a callback invoked when a prompt becomes visible.
func WithOnDue(fn func(model.ScheduledPrompt)) Option {
	return func(s *Scheduler) { s.onDue = fn }
}

// Scheduler owns the single scheduled-prompt slot and at most one timer
// for it. Every (re)arm cancels the previous timer first, and a generation
// counter discards a timer that fired concurrently with its cancellation.
type Scheduler struct {
	kv      store.KV
	queue   *Queue
	locator Locator
	flusher Flusher
	onDue   func(model.ScheduledPrompt)
	nowFunc func() time.Time

	slotMu sync.Mutex // serializes slot read-modify-write

	mu      sync.Mutex
	visible *model.ScheduledPrompt
	timer   *time.Timer
	armedID string
	gen     uint64
	closed  bool

	tasks sync.WaitGroup
}

// NewScheduler creates a Scheduler. Call Resume to load a persisted slot.
func NewScheduler(kv store.KV, q *Queue, opts ...Option) *Scheduler {
	s := &Scheduler{kv: kv, queue: q, nowFunc: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) loadSlot(ctx context.Context) *model.ScheduledPrompt {
	return store.GetJSON[*model.ScheduledPrompt](ctx, s.kv, ScheduledKey, nil)
}

// Schedule persists a prompt for rec due after delay, replacing any
// existing prompt. A non-positive delay makes it due immediately.
func (s *Scheduler) Schedule(ctx context.Context, recID, lureName string, delay time.Duration) (model.ScheduledPrompt, error) {
	now := s.nowFunc()
	if delay < 0 {
		delay = 0
	}
	p := model.ScheduledPrompt{
		RecommendationID: recID,
		LureName:         lureName,
		DueAt:            now.Add(delay).UnixMilli(),
	}

	s.slotMu.Lock()
	err := store.SetJSON(ctx, s.kv, ScheduledKey, p)
	s.slotMu.Unlock()
	if err != nil {
		return p, eris.Wrap(err, "feedback: persist scheduled prompt")
	}

	zap.L().Info("feedback: prompt scheduled",
		zap.String("reco_id", recID),
		zap.String("lure", lureName),
		zap.Time("due_at", p.DueTime()),
	)
	s.apply(&p, now)
	return p, nil
}

// Resume re-reads the persisted slot and re-arms: a due prompt is shown
// at once, a future one gets a fresh timer, and an absent one clears any
// timer. It is idempotent. The returned task flushes the queue.
func (s *Scheduler) Resume(ctx context.Context) *Task {
	s.apply(s.loadSlot(ctx), s.nowFunc())
	return s.spawn(ctx, func(ctx context.Context, t *Task) {
		t.Uploaded = s.flush(ctx)
	})
}

// apply makes the in-memory state match slot p.
func (s *Scheduler) apply(p *model.ScheduledPrompt, now time.Time) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cancelLocked()
	s.visible = nil

	if p == nil {
		s.mu.Unlock()
		return
	}
	if p.IsDue(now) {
		shown := *p
		s.visible = &shown
		s.mu.Unlock()
		s.notifyDue(shown)
		return
	}
	s.armLocked(*p, p.DueTime().Sub(now))
	s.mu.Unlock()
}

func (s *Scheduler) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.armedID = ""
}

func (s *Scheduler) armLocked(p model.ScheduledPrompt, d time.Duration) {
	gen := s.gen
	s.armedID = p.RecommendationID
	s.timer = time.AfterFunc(d, func() { s.fire(gen, p) })
}

func (s *Scheduler) fire(gen uint64, p model.ScheduledPrompt) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.armedID = ""
	s.visible = &p
	s.mu.Unlock()
	s.notifyDue(p)
}

func (s *Scheduler) notifyDue(p model.ScheduledPrompt) {
	zap.L().Info("feedback: prompt due", zap.String("reco_id", p.RecommendationID))
	if s.onDue != nil {
		s.onDue(p)
	}
}

// Resolve hides the prompt immediately, then in the background records
// the outcome for the persisted prompt, clears the slot and flushes. With
// nothing scheduled the task completes without a record.
func (s *Scheduler) Resolve(ctx context.Context, outcome model.Outcome) *Task {
	s.mu.Lock()
	s.visible = nil
	s.mu.Unlock()

	return s.spawn(ctx, func(ctx context.Context, t *Task) {
		rec, err := s.record(ctx, outcome)
		if err != nil || rec == nil {
			t.Err = err
			return
		}
		t.Record = rec
		t.Uploaded = s.flush(ctx)
	})
}

func (s *Scheduler) record(ctx context.Context, outcome model.Outcome) (*model.FeedbackRecord, error) {
	p := s.loadSlot(ctx)
	if p == nil {
		zap.L().Debug("feedback: resolve with nothing scheduled")
		return nil, nil
	}

	var loc *model.Coordinates
	if s.locator != nil {
		c, err := s.locator.Locate(ctx)
		if err != nil {
			zap.L().Debug("feedback: location unavailable", zap.Error(err))
		}
		loc = c
	}

	now := s.nowFunc()
	rec := model.FeedbackRecord{
		ID:               fmt.Sprintf("%s:%d", p.RecommendationID, now.UnixMilli()),
		RecommendationID: p.RecommendationID,
		LureName:         p.LureName,
		Caught:           outcome.Caught,
		Count:            outcome.Count,
		Notes:            outcome.Notes,
		Timestamp:        now.UnixMilli(),
		Location:         loc,
	}
	if err := s.queue.Append(ctx, rec); err != nil {
		return nil, err
	}

	// A newer Schedule may have replaced the slot while we worked.
	s.slotMu.Lock()
	var delErr error
	if cur := s.loadSlot(ctx); cur != nil && cur.RecommendationID == p.RecommendationID {
		delErr = s.kv.Delete(ctx, ScheduledKey)
		s.mu.Lock()
		if s.armedID == p.RecommendationID {
			s.cancelLocked()
		}
		s.mu.Unlock()
	}
	s.slotMu.Unlock()
	if delErr != nil {
		zap.L().Warn("feedback: clear scheduled prompt", zap.Error(delErr))
	}

	zap.L().Info("feedback: outcome recorded",
		zap.String("id", rec.ID),
		zap.Bool("caught", rec.Caught),
	)
	return &rec, nil
}

func (s *Scheduler) flush(ctx context.Context) int {
	if s.flusher == nil {
		return 0
	}
	n, err := s.flusher.Flush(ctx)
	if err != nil {
		zap.L().Warn("feedback: flush failed, will retry later", zap.Error(err))
	}
	return n
}

// Dismiss clears the prompt without recording an outcome.
func (s *Scheduler) Dismiss(ctx context.Context) error {
	s.mu.Lock()
	s.visible = nil
	s.cancelLocked()
	s.mu.Unlock()

	s.slotMu.Lock()
	defer s.slotMu.Unlock()
	if err := s.kv.Delete(ctx, ScheduledKey); err != nil {
		return eris.Wrap(err, "feedback: dismiss")
	}
	return nil
}

// ForcePromptNow makes the persisted prompt due immediately. It returns
// nil when nothing is scheduled.
func (s *Scheduler) ForcePromptNow(ctx context.Context) (*model.ScheduledPrompt, error) {
	now := s.nowFunc()

	s.slotMu.Lock()
	p := s.loadSlot(ctx)
	if p == nil {
		s.slotMu.Unlock()
		return nil, nil
	}
	p.DueAt = now.UnixMilli()
	err := store.SetJSON(ctx, s.kv, ScheduledKey, *p)
	s.slotMu.Unlock()
	if err != nil {
		return nil, eris.Wrap(err, "feedback: force prompt")
	}

	s.apply(p, now)
	return p, nil
}

// Pending returns the persisted prompt, due or not.
func (s *Scheduler) Pending(ctx context.Context) *model.ScheduledPrompt {
	return s.loadSlot(ctx)
}

// Visible returns the prompt currently shown, if any.
func (s *Scheduler) Visible() *model.ScheduledPrompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visible == nil {
		return nil
	}
	p := *s.visible
	return &p
}

// State reports Due while a prompt is shown, Scheduled while a timer is
// armed and Idle otherwise.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.visible != nil:
		return Due
	case s.timer != nil:
		return Scheduled
	}
	return Idle
}

// Close stops the timer and waits for background tasks to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.cancelLocked()
	}
	s.mu.Unlock()
	s.tasks.Wait()
}
