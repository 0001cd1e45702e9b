package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/internal/store"
)

func TestSchedule_SingleSlotLastWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sched.Schedule(ctx, "A", "Jerkbait", 10*time.Minute)
	require.NoError(t, err)
	_, err = f.sched.Schedule(ctx, "B", "Chatterbait", 5*time.Minute)
	require.NoError(t, err)

	p := f.sched.Pending(ctx)
	require.NotNil(t, p)
	assert.Equal(t, "B", p.RecommendationID)
	assert.Equal(t, "Chatterbait", p.LureName)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute).UnixMilli(), p.DueAt)
	assert.Equal(t, Scheduled, f.sched.State())
	assert.Nil(t, f.sched.Visible())
}

func TestSchedule_PersistedFormat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sched.Schedule(ctx, "reco-1", "Jerkbait", time.Minute)
	require.NoError(t, err)

	raw, err := f.kv.Get(ctx, ScheduledKey)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"recoId":"reco-1","lureName":"Jerkbait","dueAt":`+itoa(f.clock.Now().Add(time.Minute).UnixMilli())+`}`,
		string(raw))
}

func TestSchedule_NonPositiveDelayIsDueNow(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Minute} {
		f := newFixture(t)
		p, err := f.sched.Schedule(context.Background(), "A", "Senko", d)
		require.NoError(t, err)

		assert.Equal(t, f.clock.Now().UnixMilli(), p.DueAt)
		assert.Equal(t, Due, f.sched.State())
		require.NotNil(t, f.sched.Visible())
		assert.Equal(t, 1, f.due.Count())
	}
}

func TestSchedule_TimerFires(t *testing.T) {
	f := newFixture(t)
	_, err := f.sched.Schedule(context.Background(), "A", "Jerkbait", 20*time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return f.sched.State() == Due }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.due.Count())
	assert.Equal(t, "A", f.sched.Visible().RecommendationID)
}

func TestSchedule_OverwriteCancelsEarlierTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sched.Schedule(ctx, "A", "Jerkbait", 10*time.Millisecond)
	require.NoError(t, err)
	_, err = f.sched.Schedule(ctx, "B", "Jerkbait", time.Hour)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.due.Count())
	assert.Equal(t, Scheduled, f.sched.State())
}

func TestResume_PastDueAfterRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := model.ScheduledPrompt{
		RecommendationID: "A",
		LureName:         "Spinnerbait",
		DueAt:            f.clock.Now().Add(-time.Minute).UnixMilli(),
	}
	require.NoError(t, store.SetJSON(ctx, f.kv, ScheduledKey, past))

	restarted := f.newScheduler()
	defer restarted.Close()
	assert.Equal(t, Idle, restarted.State())

	waitTask(t, restarted.Resume(ctx))
	assert.Equal(t, Due, restarted.State())
	require.NotNil(t, restarted.Visible())
	assert.Equal(t, "A", restarted.Visible().RecommendationID)
	assert.Equal(t, 1, f.due.Count())
}

func TestResume_FutureRearms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, store.SetJSON(ctx, f.kv, ScheduledKey, model.ScheduledPrompt{
		RecommendationID: "A",
		DueAt:            f.clock.Now().Add(30 * time.Millisecond).UnixMilli(),
	}))

	waitTask(t, f.sched.Resume(ctx))
	assert.Equal(t, Scheduled, f.sched.State())
	assert.Eventually(t, func() bool { return f.sched.State() == Due }, time.Second, 5*time.Millisecond)
}

func TestResume_IdempotentNoDuplicatePrompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sched.Schedule(ctx, "A", "Jerkbait", 30*time.Millisecond)
	require.NoError(t, err)

	for range 5 {
		waitTask(t, f.sched.Resume(ctx))
	}

	assert.Eventually(t, func() bool { return f.due.Count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, f.due.Count())
}

func TestResume_AbsentSlotClearsTimer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sched.Schedule(ctx, "A", "Jerkbait", 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, f.kv.Delete(ctx, ScheduledKey))

	waitTask(t, f.sched.Resume(ctx))
	assert.Equal(t, Idle, f.sched.State())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.due.Count())
}

func TestResume_CorruptSlotIsAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, ScheduledKey, []byte("{not json")))

	waitTask(t, f.sched.Resume(ctx))
	assert.Equal(t, Idle, f.sched.State())

	task := f.sched.Resolve(ctx, model.Outcome{Caught: true})
	waitTask(t, task)
	assert.Nil(t, task.Record)
	assert.Equal(t, 0, f.queue.Len(ctx))
}

func TestResume_Flushes(t *testing.T) {
	coll := &fakeCollector{}
	kv := store.NewMemory()
	q := NewQueue(kv)
	mustAppend(t, q, record("a:1", 1), record("b:2", 2))

	s := NewScheduler(kv, q, WithFlusher(NewUploader(q, coll, nil)))
	defer s.Close()

	task := s.Resume(context.Background())
	waitTask(t, task)
	assert.Equal(t, 2, task.Uploaded)
	assert.Equal(t, 0, q.Len(context.Background()))
}

func TestResolve_NothingScheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.sched.Resolve(ctx, model.Outcome{Caught: true})
	require.NoError(t, task.Wait(ctx))
	assert.Nil(t, task.Record)
	assert.Equal(t, 0, f.queue.Len(ctx))
}

func TestResolve_RecordsOutcome(t *testing.T) {
	coords := &model.Coordinates{Lat: 34.7, Lon: -92.3}
	f := newFixture(t, WithLocator(fakeLocator{coords: coords}))
	ctx := context.Background()

	_, err := f.sched.Schedule(ctx, "reco-1", "Chatterbait", 0)
	require.NoError(t, err)
	require.Equal(t, Due, f.sched.State())

	count, notes := 3, "bit on the pause"
	f.clock.Advance(time.Minute)
	task := f.sched.Resolve(ctx, model.Outcome{Caught: true, Count: &count, Notes: &notes})

	// Hidden before the background work completes.
	assert.Nil(t, f.sched.Visible())

	require.NoError(t, task.Wait(ctx))
	require.NotNil(t, task.Record)
	rec := *task.Record
	nowMs := f.clock.Now().UnixMilli()
	assert.Equal(t, "reco-1:"+itoa(nowMs), rec.ID)
	assert.Equal(t, "reco-1", rec.RecommendationID)
	assert.Equal(t, "Chatterbait", rec.LureName)
	assert.True(t, rec.Caught)
	assert.Equal(t, 3, *rec.Count)
	assert.Equal(t, notes, *rec.Notes)
	assert.Equal(t, nowMs, rec.Timestamp)
	assert.Equal(t, coords, rec.Location)

	assert.Equal(t, []model.FeedbackRecord{rec}, f.queue.All(ctx))
	assert.Nil(t, f.sched.Pending(ctx))
	assert.Equal(t, Idle, f.sched.State())
}

func TestResolve_LocationFailureTolerated(t *testing.T) {
	f := newFixture(t, WithLocator(fakeLocator{err: errors.New("denied")}))
	ctx := context.Background()
	_, err := f.sched.Schedule(ctx, "A", "Jerkbait", time.Hour)
	require.NoError(t, err)

	task := f.sched.Resolve(ctx, model.Outcome{Caught: false})
	require.NoError(t, task.Wait(ctx))
	require.NotNil(t, task.Record)
	assert.Nil(t, task.Record.Location)
	assert.False(t, task.Record.Caught)
	// Resolving a not-yet-due prompt also cancels its timer.
	assert.Equal(t, Idle, f.sched.State())
}

func TestResolve_KeepsNewerSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sched.Schedule(ctx, "A", "Jerkbait", 0)
	require.NoError(t, err)

	// A new recommendation lands while A's outcome is being recorded.
	f.sched.locator = fakeLocator{hook: func() {
		_, err := f.sched.Schedule(ctx, "B", "Senko", time.Hour)
		assert.NoError(t, err)
	}}

	task := f.sched.Resolve(ctx, model.Outcome{Caught: true})
	require.NoError(t, task.Wait(ctx))
	require.NotNil(t, task.Record)
	assert.Equal(t, "A", task.Record.RecommendationID)

	p := f.sched.Pending(ctx)
	require.NotNil(t, p)
	assert.Equal(t, "B", p.RecommendationID)
	assert.Equal(t, Scheduled, f.sched.State())
}

func TestResolve_FlushesOnSuccess(t *testing.T) {
	coll := &fakeCollector{}
	kv := store.NewMemory()
	q := NewQueue(kv)
	s := NewScheduler(kv, q, WithFlusher(NewUploader(q, coll, nil)))
	defer s.Close()
	ctx := context.Background()

	_, err := s.Schedule(ctx, "A", "Jerkbait", 0)
	require.NoError(t, err)
	task := s.Resolve(ctx, model.Outcome{Caught: true})
	require.NoError(t, task.Wait(ctx))

	assert.Equal(t, 1, task.Uploaded)
	assert.Equal(t, 1, coll.Calls())
	assert.Equal(t, 0, q.Len(ctx))
}

func TestResolve_FlushFailureKeepsRecord(t *testing.T) {
	coll := &fakeCollector{err: errors.New("offline")}
	kv := store.NewMemory()
	q := NewQueue(kv)
	s := NewScheduler(kv, q, WithFlusher(NewUploader(q, coll, nil)))
	defer s.Close()
	ctx := context.Background()

	_, err := s.Schedule(ctx, "A", "Jerkbait", 0)
	require.NoError(t, err)
	task := s.Resolve(ctx, model.Outcome{Caught: true})
	require.NoError(t, task.Wait(ctx), "flush failures are not task errors")

	assert.Equal(t, 0, task.Uploaded)
	assert.Equal(t, 1, q.Len(ctx))
}

func TestResolve_DetachedFromCallerContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.sched.Schedule(ctx, "A", "Jerkbait", 0)
	require.NoError(t, err)

	task := f.sched.Resolve(ctx, model.Outcome{Caught: true})
	cancel()
	waitTask(t, task)
	require.NoError(t, task.Err)
	assert.Equal(t, 1, f.queue.Len(context.Background()))
}

func TestDismiss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sched.Schedule(ctx, "A", "Jerkbait", 20*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, f.sched.Dismiss(ctx))
	assert.Nil(t, f.sched.Pending(ctx))
	assert.Equal(t, Idle, f.sched.State())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.due.Count())
	assert.Equal(t, 0, f.queue.Len(ctx))
}

func TestForcePromptNow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.sched.ForcePromptNow(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = f.sched.Schedule(ctx, "A", "Jerkbait", DefaultDelay)
	require.NoError(t, err)
	assert.Equal(t, Scheduled, f.sched.State())

	p, err = f.sched.ForcePromptNow(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, f.clock.Now().UnixMilli(), p.DueAt)
	assert.Equal(t, Due, f.sched.State())
	assert.Equal(t, f.clock.Now().UnixMilli(), f.sched.Pending(ctx).DueAt)
	assert.Equal(t, 1, f.due.Count())
}

func TestClose_StopsTimerAndRejectsTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sched.Schedule(ctx, "A", "Jerkbait", 20*time.Millisecond)
	require.NoError(t, err)

	f.sched.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.due.Count())

	task := f.sched.Resolve(ctx, model.Outcome{Caught: true})
	assert.ErrorIs(t, task.Wait(ctx), ErrClosed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "scheduled", Scheduled.String())
	assert.Equal(t, "due", Due.String())
}
