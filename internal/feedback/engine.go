package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// State names the phase a feedback loop is in.
type State string

const (
	StateInitial   State = "initial"
	StateReviewing State = "reviewing"
	StateRevising  State = "revising"
	StateApproved  State = "approved"
	StateExhausted State = "exhausted"
	StateError     State = "error"
)

// ReviewFunc produces a critique of the candidate. An approval verdict is
// detected by the engine's ApprovalPolicy.
type ReviewFunc func(ctx context.Context, candidate string) (string, error)

// ReviseFunc rewrites the candidate according to the critique.
type ReviseFunc func(ctx context.Context, candidate, critique string) (string, error)

// Outcome summarizes one finished loop. Cycles counts completed
// review-then-revise iterations, so a candidate approved on its first review
// reports zero cycles.
type Outcome struct {
	State  State
	Cycles int
	Err    error
}

// Engine drives bounded review and revision cycles and tracks per-conversation
// loop state for observability.
type Engine struct {
	maxCycles  int
	approval   ApprovalPolicy
	similarity SimilarityPolicy

	mu    sync.Mutex
	loops map[string]loopRecord
	now   func() time.Time
}

type loopRecord struct {
	state     State
	cycles    int
	updatedAt time.Time
}

// Option configures optional Engine parameters.
type Option func(*Engine)

// WithApproval replaces the default approval policy.
func WithApproval(p ApprovalPolicy) Option {
	return func(e *Engine) { e.approval = p }
}

// WithSimilarity replaces the default similarity guard.
func WithSimilarity(p SimilarityPolicy) Option {
	return func(e *Engine) { e.similarity = p }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine allowing at most maxCycles review cycles per
// conversation.
func NewEngine(maxCycles int, opts ...Option) *Engine {
	e := &Engine{
		maxCycles:  maxCycles,
		approval:   NewTokenApproval(),
		similarity: NewPositionalSimilarity(),
		loops:      make(map[string]loopRecord),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run reviews and revises candidate until it is approved, the cycle budget is
// spent, or a revision stops changing the text. The returned string is always
// usable: on error it is the best candidate produced so far, and every final
// candidate is scrubbed of leaked prompt scaffolding.
func (e *Engine) Run(ctx context.Context, conversationID, candidate string, review ReviewFunc, revise ReviseFunc) (string, Outcome) {
	current := candidate
	cycles := 0

	for attempt := 1; attempt <= e.maxCycles; attempt++ {
		e.track(conversationID, StateReviewing, attempt)

		verdict, err := review(ctx, current)
		if err != nil {
			e.track(conversationID, StateError, attempt)
			return StripScaffold(current), Outcome{State: StateError, Cycles: cycles, Err: err}
		}

		if e.approval.Approved(verdict) {
			log.Debug().Str("conversation_id", conversationID).Int("attempt", attempt).Msg("candidate approved")
			e.track(conversationID, StateApproved, attempt)
			return StripScaffold(current), Outcome{State: StateApproved, Cycles: cycles}
		}

		e.track(conversationID, StateRevising, attempt)

		revised, err := revise(ctx, current, verdict)
		if err != nil {
			e.track(conversationID, StateError, attempt)
			return StripScaffold(current), Outcome{State: StateError, Cycles: cycles, Err: err}
		}

		revised = StripScaffold(revised)
		cycles++

		if e.similarity.TooSimilar(current, revised) {
			// Revising has converged; further cycles would only churn on
			// cosmetic edits, so the revised text is accepted as final.
			log.Debug().Str("conversation_id", conversationID).Int("attempt", attempt).Msg("revision converged, accepting early")
			e.track(conversationID, StateApproved, attempt)
			return revised, Outcome{State: StateApproved, Cycles: cycles}
		}

		current = revised
	}

	e.track(conversationID, StateExhausted, e.maxCycles)
	return StripScaffold(current), Outcome{State: StateExhausted, Cycles: cycles}
}

// LoopState reports the recorded state of a conversation's loop.
func (e *Engine) LoopState(conversationID string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.loops[conversationID]
	if !ok {
		return "", false
	}
	return rec.state, true
}

// Cleanup drops loop records older than maxAge and returns how many were
// removed.
func (e *Engine) Cleanup(maxAge time.Duration) int {
	cutoff := e.now().Add(-maxAge)

	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for id, rec := range e.loops {
		if rec.updatedAt.Before(cutoff) {
			delete(e.loops, id)
			removed++
		}
	}
	return removed
}

func (e *Engine) track(conversationID string, state State, cycle int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loops[conversationID] = loopRecord{
		state:     state,
		cycles:    cycle,
		updatedAt: e.now(),
	}
}
