// Package orchestrator coordinates the planner, executor, and reviewer
// providers into one request pipeline.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/duet/internal/domain"
	"github.com/gosuda/duet/internal/errlog"
	"github.com/gosuda/duet/internal/feedback"
	"github.com/gosuda/duet/internal/provider"
	"github.com/gosuda/duet/internal/session"
	"github.com/gosuda/duet/internal/storage"
	redisstore "github.com/gosuda/duet/internal/store/redis"
)

// greetings short-circuit the full pipeline to a direct conversational reply.
var greetings = map[string]struct{}{ //nolint:gochecknoglobals // static lookup table
	"hi": {}, "hello": {}, "hey": {}, "yo": {},
	"thanks": {}, "thank you": {}, "bye": {}, "goodbye": {},
	"good morning": {}, "good afternoon": {}, "good evening": {},
}

// minPipelineWords is the threshold below which a query is treated as chat
// rather than a task.
const minPipelineWords = 5

// Publisher emits pipeline events to interested subscribers. Implementations
// must tolerate being called on every request.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Orchestrator wires the two-model pipeline: the planner shapes the request
// into a task, the executor produces the deliverable, and the reviewer drives
// the bounded revision loop.
type Orchestrator struct {
	planner  provider.Service
	executor provider.Service
	reviewer provider.Service
	engine   *feedback.Engine
	sessions *session.Store
	store    storage.Store
	errs     *errlog.Sink
	events   Publisher // nil disables event publishing
}

// Deps carries the orchestrator's collaborators. Events and Errs may be nil.
type Deps struct {
	Planner  provider.Service
	Executor provider.Service
	Reviewer provider.Service
	Engine   *feedback.Engine
	Sessions *session.Store
	Store    storage.Store
	Errs     *errlog.Sink
	Events   Publisher
}

func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		planner:  deps.Planner,
		executor: deps.Executor,
		reviewer: deps.Reviewer,
		engine:   deps.Engine,
		sessions: deps.Sessions,
		store:    deps.Store,
		errs:     deps.Errs,
		events:   deps.Events,
	}
}

// Handle runs one user message through the pipeline. It returns an error only
// for invalid input; provider failures are downgraded into an error-status
// Result so callers always have something to show the user.
func (o *Orchestrator) Handle(ctx context.Context, userID, message string) (domain.Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Result{}, fmt.Errorf("orchestrator.Orchestrator.Handle: empty message: %w", domain.ErrBadInput)
	}
	if userID == "" {
		return domain.Result{}, fmt.Errorf("orchestrator.Orchestrator.Handle: empty user id: %w", domain.ErrBadInput)
	}

	result := domain.Result{
		ConversationID: domain.NewConversationID(userID),
		UserID:         userID,
		Timestamp:      time.Now().UTC(),
		Query:          message,
		Status:         domain.StatusSuccess,
	}

	history := o.sessions.RecentHistory(userID, historyWindow)
	o.sessions.AppendTurn(userID, domain.RoleUser, message)
	o.sessions.ResetFeedback(userID)

	if isSimpleQuery(message) {
		o.handleChat(ctx, &result, history)
	} else {
		o.handlePipeline(ctx, &result, history)
	}

	if result.Status == domain.StatusSuccess {
		o.sessions.AppendTurn(userID, domain.RoleAssistant, result.Response)
		o.persist(ctx, &result)
	}

	o.publish(ctx, result)

	return result, nil
}

// handleChat answers greetings and very short queries directly, skipping the
// planner and the review loop.
func (o *Orchestrator) handleChat(ctx context.Context, result *domain.Result, history []domain.Turn) {
	reply, err := o.executor.Generate(ctx, chatPrompt(result.Query, history), provider.RoleExecutor)
	if err != nil {
		o.fail(result, "chat", err)
		return
	}
	result.Response = strings.TrimSpace(reply)
}

// handlePipeline runs the full plan, execute, review sequence.
func (o *Orchestrator) handlePipeline(ctx context.Context, result *domain.Result, history []domain.Turn) {
	task, err := o.planner.Generate(ctx, taskPrompt(result.Query, history), provider.RolePlanner)
	if err != nil {
		o.fail(result, "planner", err)
		return
	}

	candidate, err := o.executor.Generate(ctx, executionPrompt(task), provider.RoleExecutor)
	if err != nil {
		// The plan alone still has value; surface it clearly labeled.
		o.record("executor", err, result.UserID)
		result.Response = "Execution was unavailable. The planned approach was:\n\n" + strings.TrimSpace(task)
		return
	}

	final, outcome := o.engine.Run(ctx, result.ConversationID, strings.TrimSpace(candidate),
		func(ctx context.Context, cand string) (string, error) {
			return o.reviewer.Generate(ctx, reviewPrompt(result.Query, cand), provider.RoleReviewer)
		},
		func(ctx context.Context, cand, critique string) (string, error) {
			o.sessions.IncrementFeedback(result.UserID)
			return o.executor.Generate(ctx, revisionPrompt(cand, critique), provider.RoleExecutor)
		},
	)

	if outcome.Err != nil {
		// The loop already fell back to the best candidate; log and move on.
		o.record("feedback", outcome.Err, result.UserID)
	}

	result.Response = final
	result.CycleCount = outcome.Cycles

	log.Info().
		Str("conversation_id", result.ConversationID).
		Str("state", string(outcome.State)).
		Int("cycles", outcome.Cycles).
		Msg("feedback loop finished")
}

// persist writes the conversation record. Storage failures never reach the
// user; the reference records what happened.
func (o *Orchestrator) persist(ctx context.Context, result *domain.Result) {
	record := domain.ConversationRecord{
		ConversationID: result.ConversationID,
		UserID:         result.UserID,
		Timestamp:      result.Timestamp,
		Query:          result.Query,
		Response:       result.Response,
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		o.record("storage", err, result.UserID)
		result.StorageRef = string(storage.RefUnavailable)
		return
	}

	ref := o.store.Save(ctx, payload, result.UserID, "conversation", "json")
	result.StorageRef = string(ref)
}

func (o *Orchestrator) publish(ctx context.Context, result domain.Result) {
	if o.events == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}

	channels := []string{
		redisstore.ConversationChannel(result.ConversationID),
		redisstore.UserChannel(result.UserID),
	}
	for _, channel := range channels {
		if err := o.events.Publish(ctx, channel, payload); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("event publish failed")
		}
	}
}

func (o *Orchestrator) fail(result *domain.Result, stage string, err error) {
	o.record(stage, err, result.UserID)
	result.Status = domain.StatusError
	result.ErrorMessage = fmt.Sprintf("%s stage failed: %v", stage, err)
	result.Response = "I could not process your request right now. Please try again in a moment."
}

func (o *Orchestrator) record(stage string, err error, userID string) {
	log.Error().Err(err).Str("stage", stage).Msg("pipeline stage failed")
	if o.errs == nil {
		return
	}

	severity := errlog.SeverityError
	category := errlog.CategoryAPI
	switch stage {
	case "storage":
		severity = errlog.SeverityWarning
		category = errlog.CategoryStorage
	case "feedback":
		severity = errlog.SeverityWarning
	}
	o.errs.Record(stage, err.Error(), severity, category, errlog.WithUser(userID))
}

// Respond runs Handle and returns only the reply text. Chat surfaces use
// this shape.
func (o *Orchestrator) Respond(ctx context.Context, userID, message string) (string, error) {
	result, err := o.Handle(ctx, userID, message)
	if err != nil {
		return "", err
	}
	return result.Response, nil
}

// Health reports which provider backs each pipeline role.
func (o *Orchestrator) Health() map[string]string {
	status := make(map[string]string, 3)
	for role, svc := range map[string]provider.Service{
		"planner":  o.planner,
		"executor": o.executor,
		"reviewer": o.reviewer,
	} {
		if svc == nil {
			status[role] = "unconfigured"
			continue
		}
		status[role] = svc.Name()
	}
	return status
}

// isSimpleQuery reports whether the message is a greeting or too short to be
// a task.
func isSimpleQuery(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = strings.TrimRight(normalized, "!.?")
	if _, ok := greetings[normalized]; ok {
		return true
	}
	return len(strings.Fields(message)) < minPipelineWords
}
