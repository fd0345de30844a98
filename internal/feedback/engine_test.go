package feedback_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/duet/internal/feedback"
)

// scriptedReviewer returns canned verdicts in order, then repeats the last.
type scriptedReviewer struct {
	verdicts []string
	err      error
	calls    int
}

func (r *scriptedReviewer) review(_ context.Context, _ string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	idx := r.calls - 1
	if idx >= len(r.verdicts) {
		idx = len(r.verdicts) - 1
	}
	return r.verdicts[idx], nil
}

// scriptedReviser returns canned revisions in order, then repeats the last.
type scriptedReviser struct {
	revisions []string
	err       error
	calls     int
}

func (r *scriptedReviser) revise(_ context.Context, _, _ string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	idx := r.calls - 1
	if idx >= len(r.revisions) {
		idx = len(r.revisions) - 1
	}
	return r.revisions[idx], nil
}

func TestRunApprovesOnFirstReview(t *testing.T) {
	t.Parallel()

	engine := feedback.NewEngine(2)
	reviewer := &scriptedReviewer{verdicts: []string{"great work, APPROVED!"}}
	reviser := &scriptedReviser{}

	final, outcome := engine.Run(context.Background(), "conv-1", "the candidate", reviewer.review, reviser.revise)

	assert.Equal(t, "the candidate", final)
	assert.Equal(t, feedback.StateApproved, outcome.State)
	assert.Equal(t, 0, outcome.Cycles, "no revision happened, so no cycle completed")
	assert.Equal(t, 0, reviser.calls, "approval must skip revision")
}

func TestRunApprovesAfterOneRevision(t *testing.T) {
	t.Parallel()

	engine := feedback.NewEngine(3)
	reviewer := &scriptedReviewer{verdicts: []string{"too vague, add detail", "APPROVED"}}
	reviser := &scriptedReviser{revisions: []string{"a substantially longer and much more detailed answer"}}

	final, outcome := engine.Run(context.Background(), "conv-2", "short answer", reviewer.review, reviser.revise)

	assert.Equal(t, "a substantially longer and much more detailed answer", final)
	assert.Equal(t, feedback.StateApproved, outcome.State)
	assert.Equal(t, 1, outcome.Cycles)
}

func TestRunExhaustsAtExactlyMaxCycles(t *testing.T) {
	t.Parallel()

	engine := feedback.NewEngine(2)
	reviewer := &scriptedReviewer{verdicts: []string{"still not good enough"}}
	reviser := &scriptedReviser{revisions: []string{
		"first revision, quite different from the original text entirely",
		"second revision, again changed beyond recognition from before",
	}}

	final, outcome := engine.Run(context.Background(), "conv-3", "the original draft", reviewer.review, reviser.revise)

	assert.Equal(t, "second revision, again changed beyond recognition from before", final)
	assert.Equal(t, feedback.StateExhausted, outcome.State)
	assert.Equal(t, 2, outcome.Cycles)
	assert.Equal(t, 2, reviewer.calls, "review budget is exactly max cycles")
	assert.Equal(t, 2, reviser.calls)
}

func TestRunStopsEarlyOnIdenticalRevision(t *testing.T) {
	t.Parallel()

	candidate := "an answer the model refuses to change no matter the critique"
	engine := feedback.NewEngine(2)
	reviewer := &scriptedReviewer{verdicts: []string{"change everything"}}
	reviser := &scriptedReviser{revisions: []string{candidate}}

	final, outcome := engine.Run(context.Background(), "conv-4", candidate, reviewer.review, reviser.revise)

	assert.Equal(t, candidate, final)
	assert.Equal(t, feedback.StateApproved, outcome.State, "a converged revision is accepted as final")
	assert.Equal(t, 1, outcome.Cycles, "a converged revision must not burn further cycles")
	assert.Equal(t, 1, reviser.calls)
}

func TestRunReturnsCandidateOnReviewError(t *testing.T) {
	t.Parallel()

	engine := feedback.NewEngine(2)
	reviewer := &scriptedReviewer{err: errors.New("reviewer down")}
	reviser := &scriptedReviser{}

	final, outcome := engine.Run(context.Background(), "conv-5", "best so far", reviewer.review, reviser.revise)

	assert.Equal(t, "best so far", final, "errors must not lose the best candidate")
	assert.Equal(t, feedback.StateError, outcome.State)
	require.Error(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "reviewer down")
}

func TestRunReturnsCandidateOnReviseError(t *testing.T) {
	t.Parallel()

	engine := feedback.NewEngine(2)
	reviewer := &scriptedReviewer{verdicts: []string{"needs work"}}
	reviser := &scriptedReviser{err: errors.New("reviser down")}

	final, outcome := engine.Run(context.Background(), "conv-6", "best so far", reviewer.review, reviser.revise)

	assert.Equal(t, "best so far", final)
	assert.Equal(t, feedback.StateError, outcome.State)
	require.Error(t, outcome.Err)
}

func TestRunZeroCycleBudget(t *testing.T) {
	t.Parallel()

	engine := feedback.NewEngine(0)
	reviewer := &scriptedReviewer{verdicts: []string{"APPROVED"}}
	reviser := &scriptedReviser{}

	final, outcome := engine.Run(context.Background(), "conv-7", "untouched", reviewer.review, reviser.revise)

	assert.Equal(t, "untouched", final)
	assert.Equal(t, feedback.StateExhausted, outcome.State)
	assert.Equal(t, 0, outcome.Cycles)
	assert.Equal(t, 0, reviewer.calls)
}

func TestRunStripsRevisionScaffold(t *testing.T) {
	t.Parallel()

	engine := feedback.NewEngine(1)
	reviewer := &scriptedReviewer{verdicts: []string{"rewrite it"}}
	reviser := &scriptedReviser{revisions: []string{
		"Here is the revised response: a completely rewritten answer with new content",
	}}

	final, outcome := engine.Run(context.Background(), "conv-8", "old draft", reviewer.review, reviser.revise)

	assert.Equal(t, "a completely rewritten answer with new content", final)
	assert.Equal(t, feedback.StateExhausted, outcome.State)
}

func TestRunScrubsApprovedCandidate(t *testing.T) {
	t.Parallel()

	engine := feedback.NewEngine(2)
	reviewer := &scriptedReviewer{verdicts: []string{"APPROVED"}}
	reviser := &scriptedReviser{}
	candidate := "ORIGINAL QUERY: summarize the report\nThe report shows steady growth across all regions.\nFEEDBACK: tighten the wording"

	final, outcome := engine.Run(context.Background(), "conv-10", candidate, reviewer.review, reviser.revise)

	assert.Equal(t, "The report shows steady growth across all regions.", final)
	assert.Equal(t, feedback.StateApproved, outcome.State)
}

func TestRunScrubsCandidateOnError(t *testing.T) {
	t.Parallel()

	engine := feedback.NewEngine(2)
	reviewer := &scriptedReviewer{err: errors.New("reviewer down")}
	reviser := &scriptedReviser{}
	candidate := "The answer itself.\nPlease revise the following"

	final, outcome := engine.Run(context.Background(), "conv-11", candidate, reviewer.review, reviser.revise)

	assert.Equal(t, "The answer itself.", final)
	assert.Equal(t, feedback.StateError, outcome.State)
}

func TestLoopStateTracking(t *testing.T) {
	t.Parallel()

	engine := feedback.NewEngine(2)
	reviewer := &scriptedReviewer{verdicts: []string{"APPROVED"}}
	reviser := &scriptedReviser{}

	_, _ = engine.Run(context.Background(), "conv-9", "text", reviewer.review, reviser.revise)

	state, ok := engine.LoopState("conv-9")
	require.True(t, ok)
	assert.Equal(t, feedback.StateApproved, state)

	_, ok = engine.LoopState("never-ran")
	assert.False(t, ok)
}

func TestCleanupDropsStaleLoops(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	engine := feedback.NewEngine(1, feedback.WithClock(func() time.Time { return current }))
	reviewer := &scriptedReviewer{verdicts: []string{"APPROVED"}}
	reviser := &scriptedReviser{}

	_, _ = engine.Run(context.Background(), "old-conv", "text", reviewer.review, reviser.revise)

	current = current.Add(2 * time.Hour)
	removed := engine.Cleanup(time.Hour)

	assert.Equal(t, 1, removed)
	_, ok := engine.LoopState("old-conv")
	assert.False(t, ok)
}
