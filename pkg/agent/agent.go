// Package agent runs the bounded decide/act loop that drives a turn.
//
// A turn starts in Deciding, where the reasoning capability is invoked with
// the working history and the tool contracts. Tool invocations move the turn
// to Acting, where every requested call is executed and its envelope fed back
// into the history; the turn then returns to Deciding. A response without
// tool calls completes the turn. A configured step bound caps the number of
// Deciding-to-Acting transitions.
//
// Failed turns are non-destructive: session memory is only written after the
// turn completes, and only with the user message and the final answer;
// intermediate tool traffic stays inside the turn.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/datasage-io/datasage/pkg/llms"
	"github.com/datasage-io/datasage/pkg/memory"
	"github.com/datasage-io/datasage/pkg/observability"
	"github.com/datasage-io/datasage/pkg/tools"
)

// DefaultMaxSteps bounds the decide/act round trips per turn.
const DefaultMaxSteps = 20

// ErrTurnBoundExceeded terminates a turn whose loop exceeded its step bound.
var ErrTurnBoundExceeded = errors.New("turn exceeded step bound")

// turnState enumerates the loop states.
type turnState int

const (
	stateDeciding turnState = iota
	stateActing
	stateDone
	stateAborted
)

// TurnRequest is one user message addressed to a session.
type TurnRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Query     string `json:"query"`
}

// TurnResult is the caller-facing outcome envelope of a turn.
type TurnResult struct {
	Success         bool       `json:"success"`
	SessionID       string     `json:"sessionId"`
	Response        string     `json:"response,omitempty"`
	NewMessageCount int        `json:"newMessageCount,omitempty"`
	Query           string     `json:"query"`
	Timestamp       time.Time  `json:"timestamp"`
	Error           string     `json:"error,omitempty"`
	Usage           llms.Usage `json:"usage"`
	Steps           int        `json:"steps"`
}

// Orchestrator composes the reasoning capability, the tool executor and
// session memory. It holds no per-turn state and is safe for concurrent use
// across sessions; concurrent turns against the same session may interleave
// their appends in unspecified order.
type Orchestrator struct {
	provider llms.Provider
	executor *tools.Executor
	sessions memory.SessionService
	maxSteps int
	logger   *zap.SugaredLogger
}

// NewOrchestrator wires an orchestrator. maxSteps <= 0 selects the default
// bound; a nil logger falls back to a no-op logger.
func NewOrchestrator(provider llms.Provider, executor *tools.Executor, sessions memory.SessionService, maxSteps int, logger *zap.SugaredLogger) (*Orchestrator, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		provider: provider,
		executor: executor,
		sessions: sessions,
		maxSteps: maxSteps,
		logger:   logger,
	}, nil
}

// ProcessTurn runs one complete turn. Every outcome is returned as a
// TurnResult; the error taxonomy is folded into the envelope.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) TurnResult {
	start := time.Now()
	ctx, span := observability.Tracer("datasage.agent").Start(ctx, observability.SpanTurn)
	defer span.End()

	result := o.processTurn(ctx, req)

	span.SetAttributes(
		attribute.String(observability.AttrSessionID, result.SessionID),
		attribute.Bool("success", result.Success),
		attribute.Int("steps", result.Steps),
	)
	var turnErr error
	if !result.Success {
		turnErr = errors.New(result.Error)
		span.SetStatus(codes.Error, result.Error)
	}
	observability.GetGlobalMetrics().RecordTurn(ctx, time.Since(start), result.Usage.TotalTokens, turnErr)
	return result
}

func (o *Orchestrator) processTurn(ctx context.Context, req TurnRequest) TurnResult {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history, err := o.sessions.GetMessages(ctx, sessionID)
	if err != nil {
		return o.fail(sessionID, req.Query, fmt.Errorf("failed to load session history: %w", err))
	}

	userMsg := llms.Message{
		Role:      llms.RoleUser,
		Content:   req.Query,
		Timestamp: time.Now().UTC(),
	}

	turn := &turnContext{
		sessionID: sessionID,
		userID:    req.UserID,
		working:   o.buildWorkingHistory(history, userMsg),
	}
	defs := o.executor.Definitions()

	state := stateDeciding
	for {
		switch state {
		case stateDeciding:
			response, err := o.provider.Generate(ctx, turn.working, defs)
			if err != nil {
				return o.fail(sessionID, req.Query, fmt.Errorf("reasoning capability failed: %w", err))
			}
			turn.usage.PromptTokens += response.Usage.PromptTokens
			turn.usage.CompletionTokens += response.Usage.CompletionTokens
			turn.usage.TotalTokens += response.Usage.TotalTokens

			if len(response.ToolCalls) == 0 {
				turn.finalAnswer = response.Text
				state = stateDone
				continue
			}

			turn.steps++
			if turn.steps > o.maxSteps {
				state = stateAborted
				continue
			}

			turn.working = append(turn.working, llms.Message{
				Role:      llms.RoleAssistant,
				Content:   response.Text,
				ToolCalls: response.ToolCalls,
				Timestamp: time.Now().UTC(),
			})
			turn.pending = response.ToolCalls
			state = stateActing

		case stateActing:
			results := o.executeCalls(ctx, turn.sessionID, turn.pending)
			for i, call := range turn.pending {
				turn.working = append(turn.working, llms.Message{
					Role:       llms.RoleTool,
					Content:    results[i],
					ToolCallID: call.ID,
					Name:       call.Name,
					Timestamp:  time.Now().UTC(),
				})
			}
			turn.pending = nil
			state = stateDeciding

		case stateDone:
			return o.complete(ctx, turn, userMsg, req.Query)

		case stateAborted:
			o.logger.Warnw("turn aborted",
				"sessionId", sessionID,
				"maxSteps", o.maxSteps)
			return o.fail(sessionID, req.Query, fmt.Errorf("%w after %d steps", ErrTurnBoundExceeded, o.maxSteps))
		}
	}
}

// turnContext is the per-turn working state, discarded once the turn ends.
type turnContext struct {
	sessionID   string
	userID      string
	working     []llms.Message
	pending     []llms.ToolCall
	finalAnswer string
	steps       int
	usage       llms.Usage
}

func (o *Orchestrator) buildWorkingHistory(history []llms.Message, userMsg llms.Message) []llms.Message {
	working := make([]llms.Message, 0, len(history)+2)
	working = append(working, llms.Message{
		Role:      llms.RoleSystem,
		Content:   o.systemPrompt(),
		Timestamp: time.Now().UTC(),
	})
	working = append(working, history...)
	return append(working, userMsg)
}

// executeCalls runs one Acting step's invocations concurrently. The calls
// are mutually independent and read-only, so ordering between them cannot
// change observable results; their envelopes are still appended in call
// order for a deterministic history.
func (o *Orchestrator) executeCalls(ctx context.Context, sessionID string, calls []llms.ToolCall) []string {
	results := make([]string, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			envelope := o.executor.Execute(gctx, sessionID, call)
			encoded, err := json.Marshal(envelope)
			if err != nil {
				encoded = []byte(fmt.Sprintf(`{"success":false,"error":%q}`, err.Error()))
			}
			results[i] = string(encoded)
			return nil
		})
	}
	// Tool failures are envelopes, never errors, so the group cannot fail.
	_ = g.Wait()
	return results
}

// complete persists exactly the turn's user message and final answer, never
// the intermediate tool traffic.
func (o *Orchestrator) complete(ctx context.Context, turn *turnContext, userMsg llms.Message, query string) TurnResult {
	answer := llms.Message{
		Role:      llms.RoleAssistant,
		Content:   turn.finalAnswer,
		Timestamp: time.Now().UTC(),
	}
	if err := o.sessions.AppendMessages(ctx, turn.sessionID, []llms.Message{userMsg, answer}); err != nil {
		return o.fail(turn.sessionID, query, fmt.Errorf("failed to persist turn: %w", err))
	}

	count, err := o.sessions.GetMessageCount(ctx, turn.sessionID)
	if err != nil {
		// The turn itself succeeded and is stored; the count is advisory.
		o.logger.Warnw("failed to read message count", "sessionId", turn.sessionID, "error", err)
	}

	o.logger.Infow("turn complete",
		"sessionId", turn.sessionID,
		"userId", turn.userID,
		"steps", turn.steps,
		"totalTokens", turn.usage.TotalTokens)

	return TurnResult{
		Success:         true,
		SessionID:       turn.sessionID,
		Response:        turn.finalAnswer,
		NewMessageCount: count,
		Query:           query,
		Timestamp:       time.Now().UTC(),
		Usage:           turn.usage,
		Steps:           turn.steps,
	}
}

func (o *Orchestrator) fail(sessionID, query string, err error) TurnResult {
	o.logger.Errorw("turn failed", "sessionId", sessionID, "error", err)
	return TurnResult{
		Success:   false,
		SessionID: sessionID,
		Query:     query,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
}
