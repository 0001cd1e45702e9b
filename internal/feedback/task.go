package feedback

import (
	"context"

	"github.com/sells-group/lureiq/internal/model"
)

// Task is the background half of a scheduler operation. The visible state
// change has already happened when a Task is returned; waiting is optional.
type Task struct {
	done chan struct{}

	// Set before done is closed.
	Record   *model.FeedbackRecord
	Uploaded int
	Err      error
}

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs fn in the background on a context detached from the caller's
// cancellation but bounded by backgroundTimeout.
func (s *Scheduler) spawn(ctx context.Context, fn func(ctx context.Context, t *Task)) *Task {
	t := &Task{done: make(chan struct{})}

	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.tasks.Add(1)
	}
	s.mu.Unlock()
	if closed {
		t.Err = ErrClosed
		close(t.done)
		return t
	}

	go func() {
		defer s.tasks.Done()
		defer close(t.done)
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
		defer cancel()
		fn(bg, t)
	}()
	return t
}
