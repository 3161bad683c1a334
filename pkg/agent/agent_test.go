package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/datasage-io/datasage/pkg/llms"
	"github.com/datasage-io/datasage/pkg/memory"
	"github.com/datasage-io/datasage/pkg/schema"
	"github.com/datasage-io/datasage/pkg/store"
	"github.com/datasage-io/datasage/pkg/tools"
)

// scriptedProvider returns canned responses in order, then repeats the last
// one. It records every Generate call's message history.
type scriptedProvider struct {
	responses []*llms.Response
	calls     [][]llms.Message
	err       error
}

func (p *scriptedProvider) Generate(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition) (*llms.Response, error) {
	snapshot := make([]llms.Message, len(messages))
	copy(snapshot, messages)
	p.calls = append(p.calls, snapshot)

	if p.err != nil {
		return nil, p.err
	}
	idx := len(p.calls) - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx], nil
}

func (p *scriptedProvider) ModelName() string { return "scripted" }
func (p *scriptedProvider) Close() error      { return nil }

type stubStore struct {
	docs []store.Document
}

func (s *stubStore) Query(ctx context.Context, collection string, opts store.QueryOptions) ([]store.Document, error) {
	return s.docs, nil
}

func (s *stubStore) Count(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	return int64(len(s.docs)), nil
}

func (s *stubStore) Aggregate(ctx context.Context, collection string, stages []map[string]any) ([]store.Document, error) {
	return s.docs, nil
}

func (s *stubStore) Close(ctx context.Context) error { return nil }

// failingSessions simulates an unreachable durable backend.
type failingSessions struct{}

func (failingSessions) AppendMessages(ctx context.Context, sessionID string, msgs []llms.Message) error {
	return memory.ErrBackend
}

func (failingSessions) GetMessages(ctx context.Context, sessionID string) ([]llms.Message, error) {
	return []llms.Message{}, nil
}

func (failingSessions) GetMessageCount(ctx context.Context, sessionID string) (int, error) {
	return 0, nil
}

func (failingSessions) ClearSession(ctx context.Context, sessionID string) error { return nil }

func testOrchestrator(t *testing.T, provider llms.Provider, sessions memory.SessionService, maxSteps int) *Orchestrator {
	t.Helper()

	registry := schema.NewRegistry()
	registry.MustRegister(schema.Model{
		Name:       "Order",
		Collection: "orders",
		Fields: []schema.Field{
			{Name: "status", Type: schema.TypeString, Required: true},
		},
	})

	executor, err := tools.NewExecutor(registry, &stubStore{docs: []store.Document{{"status": "delivered"}}}, nil, nil)
	require.NoError(t, err)

	orchestrator, err := NewOrchestrator(provider, executor, sessions, maxSteps, nil)
	require.NoError(t, err)
	return orchestrator
}

func TestProcessTurn_DirectAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []*llms.Response{
		{Text: "There are 42 delivered orders.", Usage: llms.Usage{TotalTokens: 10}},
	}}
	sessions := memory.NewInMemorySessionService()
	orchestrator := testOrchestrator(t, provider, sessions, 0)

	result := orchestrator.ProcessTurn(context.Background(), TurnRequest{
		SessionID: "s1",
		Query:     "how many delivered orders?",
	})

	require.True(t, result.Success)
	assert.Equal(t, "There are 42 delivered orders.", result.Response)
	assert.Equal(t, "s1", result.SessionID)
	assert.Equal(t, 2, result.NewMessageCount, "user message + answer")
	assert.Zero(t, result.Steps, "no Acting transition happened")

	stored, err := sessions.GetMessages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, llms.RoleUser, stored[0].Role)
	assert.Equal(t, llms.RoleAssistant, stored[1].Role)
}

func TestProcessTurn_GeneratesSessionID(t *testing.T) {
	provider := &scriptedProvider{responses: []*llms.Response{{Text: "hi"}}}
	orchestrator := testOrchestrator(t, provider, memory.NewInMemorySessionService(), 0)

	result := orchestrator.ProcessTurn(context.Background(), TurnRequest{Query: "hello"})
	require.True(t, result.Success)
	assert.NotEmpty(t, result.SessionID)
}

func TestProcessTurn_ToolRoundTrip(t *testing.T) {
	provider := &scriptedProvider{responses: []*llms.Response{
		{ToolCalls: []llms.ToolCall{{
			ID:        "call-1",
			Name:      tools.ToolCount,
			Arguments: map[string]any{"collection": "orders"},
		}}},
		{Text: "One delivered order."},
	}}
	sessions := memory.NewInMemorySessionService()
	orchestrator := testOrchestrator(t, provider, sessions, 0)

	result := orchestrator.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Query: "count orders"})

	require.True(t, result.Success)
	assert.Equal(t, 1, result.Steps)
	require.Len(t, provider.calls, 2)

	// The second Generate call sees the assistant tool request and the tool
	// result envelope.
	second := provider.calls[1]
	last := second[len(second)-1]
	require.Equal(t, llms.RoleTool, last.Role)
	assert.Equal(t, "call-1", last.ToolCallID)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(last.Content), &envelope))
	assert.Equal(t, true, envelope["success"])
	assert.Equal(t, "s1", envelope["sessionId"])

	// Tool traffic never reaches session memory.
	stored, err := sessions.GetMessages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "count orders", stored[0].Content)
	assert.Equal(t, "One delivered order.", stored[1].Content)
}

func TestProcessTurn_AbortsAtStepBound(t *testing.T) {
	provider := &scriptedProvider{responses: []*llms.Response{
		{ToolCalls: []llms.ToolCall{{
			ID:        "loop",
			Name:      tools.ToolCount,
			Arguments: map[string]any{"collection": "orders"},
		}}},
	}}
	sessions := memory.NewInMemorySessionService()
	maxSteps := 3
	orchestrator := testOrchestrator(t, provider, sessions, maxSteps)

	result := orchestrator.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Query: "loop forever"})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "step bound")

	// The bound is checked on each Deciding->Acting transition: maxSteps
	// transitions run, the next one aborts.
	assert.Len(t, provider.calls, maxSteps+1)

	count, err := sessions.GetMessageCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, count, "aborted turns must not mutate memory")
}

func TestProcessTurn_ProviderFailure(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("rate limited")}
	sessions := memory.NewInMemorySessionService()
	orchestrator := testOrchestrator(t, provider, sessions, 0)

	result := orchestrator.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Query: "q"})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "rate limited")
	assert.Equal(t, "q", result.Query)

	count, err := sessions.GetMessageCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestProcessTurn_MemoryBackendFailureIsFatal(t *testing.T) {
	provider := &scriptedProvider{responses: []*llms.Response{{Text: "answer"}}}
	orchestrator := testOrchestrator(t, provider, failingSessions{}, 0)

	result := orchestrator.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Query: "q"})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "memory backend error")
}

func TestProcessTurn_HistoryFlowsIntoNextTurn(t *testing.T) {
	provider := &scriptedProvider{responses: []*llms.Response{{Text: "first answer"}}}
	sessions := memory.NewInMemorySessionService()
	orchestrator := testOrchestrator(t, provider, sessions, 0)

	first := orchestrator.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Query: "first question"})
	require.True(t, first.Success)

	second := orchestrator.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Query: "second question"})
	require.True(t, second.Success)
	assert.Equal(t, 4, second.NewMessageCount)

	// The second turn's prompt contains the first turn's exchange.
	lastCall := provider.calls[len(provider.calls)-1]
	var contents []string
	for _, m := range lastCall {
		contents = append(contents, m.Content)
	}
	joined := strings.Join(contents, "\n")
	assert.Contains(t, joined, "first question")
	assert.Contains(t, joined, "first answer")
	assert.Contains(t, joined, "second question")
}

func TestProcessTurn_CompletionLogCarriesUser(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core).Sugar()

	provider := &scriptedProvider{responses: []*llms.Response{{Text: "ok"}}}
	sessions := memory.NewInMemorySessionService()

	registry := schema.NewRegistry()
	registry.MustRegister(schema.Model{
		Name:       "Order",
		Collection: "orders",
		Fields:     []schema.Field{{Name: "status", Type: schema.TypeString}},
	})
	executor, err := tools.NewExecutor(registry, &stubStore{}, nil, nil)
	require.NoError(t, err)
	orchestrator, err := NewOrchestrator(provider, executor, sessions, 0, logger)
	require.NoError(t, err)

	result := orchestrator.ProcessTurn(context.Background(), TurnRequest{
		SessionID: "s1",
		UserID:    "alice",
		Query:     "q",
	})
	require.True(t, result.Success)

	entries := logs.FilterMessage("turn complete").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "s1", fields["sessionId"])
	assert.Equal(t, "alice", fields["userId"])
}

func TestProcessTurn_SystemPromptListsCollections(t *testing.T) {
	provider := &scriptedProvider{responses: []*llms.Response{{Text: "ok"}}}
	orchestrator := testOrchestrator(t, provider, memory.NewInMemorySessionService(), 0)

	_ = orchestrator.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Query: "q"})

	require.NotEmpty(t, provider.calls)
	first := provider.calls[0][0]
	assert.Equal(t, llms.RoleSystem, first.Role)
	assert.Contains(t, first.Content, "orders")
}

func TestNewOrchestrator_Validation(t *testing.T) {
	provider := &scriptedProvider{responses: []*llms.Response{{Text: "x"}}}
	orchestrator := testOrchestrator(t, provider, memory.NewInMemorySessionService(), -5)
	assert.Equal(t, DefaultMaxSteps, orchestrator.maxSteps)

	_, err := NewOrchestrator(nil, nil, nil, 0, nil)
	assert.Error(t, err)
}
