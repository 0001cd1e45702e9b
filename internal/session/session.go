// Package session drives one recommendation request: the angler confirms
// clarity and cover, triggers scoring, and receives a Recommendation after
// a short pacing delay.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lureiq/internal/model"
)

// State is a step of the recommendation flow.
type State int

const (
	AwaitingClarity State = iota
	AwaitingCover
	ReadyToScore
	Scoring
	Scored
)

func (s State) String() string {
	switch s {
	case AwaitingClarity:
		return "awaiting_clarity"
	case AwaitingCover:
		return "awaiting_cover"
	case ReadyToScore:
		return "ready_to_score"
	case Scoring:
		return "scoring"
	case Scored:
		return "scored"
	}
	return "unknown"
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrInvalidTransition is returned for an operation the current state
	// does not accept.
	ErrInvalidTransition = eris.New("session: invalid transition")
	// ErrBusy is returned for any state change while scoring is in flight.
	ErrBusy = eris.New("session: scoring in progress")
	// ErrClosed is delivered to a pending trigger when the session closes.
	ErrClosed = eris.New("session: closed")
)

// Scorer produces a recommendation for complete conditions.
type Scorer interface {
	Score(c model.Conditions) (model.ScoredRecommendation, error)
}

// Result is delivered once per Trigger.
type Result struct {
	Recommendation *model.Recommendation
	Err            error
}

// View is a read-only copy of the session for rendering.
type View struct {
	State          State                 `json:"state"`
	Conditions     model.Conditions      `json:"conditions"`
	ClarityGuess   *model.Clarity        `json:"clarity_guess,omitempty"`
	Recommendation *model.Recommendation `json:"recommendation,omitempty"`
}

// Option configures a Session.
type Option func(*Session)

// WithScoringDelay sets the pacing delay between Trigger and the result.
func WithScoringDelay(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithOnScored registers a callback run after each successful scoring,
// outside the session lock and after the Result is delivered.
func WithOnScored(fn func(model.Recommendation)) Option {
	return func(s *Session) { s.onScored = fn }
}

// Session is safe for concurrent use.
type Session struct {
	scorer   Scorer
	delay    time.Duration
	onScored func(model.Recommendation)
	nowFunc  func() time.Time
	newID    func() string

	mu      sync.Mutex
	state   State
	base    model.Conditions
	guess   *model.Clarity
	clarity *model.Clarity
	cover   *model.Cover
	result  *model.Recommendation

	// gen invalidates a scoring timer that was cancelled after it fired.
	gen     uint64
	timer   *time.Timer
	pending chan Result
	closed  bool
}

// New creates a session in AwaitingClarity. The default scoring delay is 3s.
func New(scorer Scorer, opts ...Option) *Session {
	s := &Session{
		scorer:  scorer,
		delay:   3 * time.Second,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prefill re-enters AwaitingClarity with freshly resolved conditions.
// Clarity, cover and any result are discarded; guess (may be nil) is
// offered as the suggested clarity but still needs confirmation.
func (s *Session) Prefill(base model.Conditions, guess *model.Clarity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Scoring {
		return ErrBusy
	}
	base.Clarity, base.Cover = nil, nil
	s.base = base
	s.guess = guess
	s.resetLocked()
	return nil
}

// Reset returns to AwaitingClarity, clearing clarity, cover and result.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Scoring {
		return ErrBusy
	}
	s.resetLocked()
	return nil
}

func (s *Session) resetLocked() {
	s.clarity, s.cover, s.result = nil, nil, nil
	s.state = AwaitingClarity
}

// ConfirmClarity records the angler's clarity choice.
func (s *Session) ConfirmClarity(c model.Clarity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expectLocked(AwaitingClarity); err != nil {
		return err
	}
	s.clarity = &c
	s.result = nil
	s.state = AwaitingCover
	return nil
}

// ConfirmCover records the angler's cover choice.
func (s *Session) ConfirmCover(c model.Cover) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expectLocked(AwaitingCover); err != nil {
		return err
	}
	s.cover = &c
	s.state = ReadyToScore
	return nil
}

// Back steps to the previous question, discarding any result.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case AwaitingCover:
		s.state = AwaitingClarity
	case ReadyToScore, Scored:
		s.state = AwaitingCover
		s.result = nil
	case Scoring:
		return ErrBusy
	default:
		return eris.Wrapf(ErrInvalidTransition, "back from %s", s.state)
	}
	return nil
}

func (s *Session) expectLocked(want State) error {
	if s.state == Scoring {
		return ErrBusy
	}
	if s.closed {
		return ErrClosed
	}
	if s.state != want {
		return eris.Wrapf(ErrInvalidTransition, "%s requires %s", s.state, want)
	}
	return nil
}

// Trigger starts scoring. The returned channel receives exactly one Result
// after the scoring delay; it never blocks the caller.
func (s *Session) Trigger() (<-chan Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expectLocked(ReadyToScore); err != nil {
		return nil, err
	}
	if s.clarity == nil || s.cover == nil {
		return nil, eris.Wrap(ErrInvalidTransition, "clarity and cover must be confirmed")
	}

	s.state = Scoring
	s.gen++
	gen := s.gen
	ch := make(chan Result, 1)
	s.pending = ch
	s.timer = time.AfterFunc(s.delay, func() { s.finish(gen) })
	return ch, nil
}

func (s *Session) finish(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != Scoring {
		s.mu.Unlock()
		return
	}
	cond := s.conditionsLocked()
	ch := s.pending
	s.pending, s.timer = nil, nil

	scored, err := s.scorer.Score(cond)
	if err != nil {
		// Unreachable through Trigger's gate; fall back so the flow can retry.
		s.state = ReadyToScore
		s.mu.Unlock()
		zap.L().Error("session: scoring failed", zap.Error(err))
		ch <- Result{Err: eris.Wrap(err, "session: score")}
		return
	}

	rec := model.Recommendation{
		ID:                   s.newID(),
		Conditions:           cond,
		CreatedAt:            s.nowFunc(),
		ScoredRecommendation: scored,
	}
	s.result = &rec
	s.state = Scored
	onScored := s.onScored
	s.mu.Unlock()

	zap.L().Info("session: recommendation ready",
		zap.String("id", rec.ID),
		zap.String("lure", rec.Lure),
	)
	ch <- Result{Recommendation: &rec}
	if onScored != nil {
		onScored(rec)
	}
}

// Conditions returns the merged conditions (resolved plus confirmed).
func (s *Session) Conditions() model.Conditions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conditionsLocked()
}

func (s *Session) conditionsLocked() model.Conditions {
	c := s.base
	c.Clarity = s.clarity
	c.Cover = s.cover
	return c
}

// State returns the current step.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns a snapshot for rendering.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		State:          s.state,
		Conditions:     s.conditionsLocked(),
		ClarityGuess:   s.guess,
		Recommendation: s.result,
	}
}

// Close cancels an in-flight scoring timer. A pending Trigger receives
// ErrClosed. Later operations return ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.pending != nil {
		s.pending <- Result{Err: ErrClosed}
		s.pending = nil
		s.state = ReadyToScore
	}
}
