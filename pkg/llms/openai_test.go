package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasage-io/datasage/pkg/config"
)

func openAITestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewOpenAIProvider(&config.LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o",
		APIKey:   "test-key",
		Host:     server.URL,
	})
	require.NoError(t, err)
	return provider
}

func TestOpenAIGenerate_Text(t *testing.T) {
	var captured openAIRequest
	provider := openAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hello"}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	})

	resp, err := provider.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Text)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15}, resp.Usage)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "gpt-4o", captured.Model)
}

func TestOpenAIGenerate_ToolCalls(t *testing.T) {
	var captured openAIRequest
	provider := openAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call-1",
						"type": "function",
						"function": map[string]any{
							"name":      "count_documents",
							"arguments": `{"collection":"orders"}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		})
	})

	resp, err := provider.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "count orders"},
	}, []ToolDefinition{
		{Name: "count_documents", Description: "count", Parameters: map[string]any{"type": "object"}},
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call-1", resp.ToolCalls[0].ID)
	assert.Equal(t, "count_documents", resp.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"collection": "orders"}, resp.ToolCalls[0].Arguments)

	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, "count_documents", captured.Tools[0].Function.Name)
}

func TestOpenAIGenerate_MalformedArgumentsBecomeEmptyMap(t *testing.T) {
	provider := openAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id":   "call-1",
						"type": "function",
						"function": map[string]any{
							"name":      "count_documents",
							"arguments": `{not json`,
						},
					}},
				},
			}},
		})
	})

	resp, err := provider.Generate(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, nil)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Empty(t, resp.ToolCalls[0].Arguments)
	assert.NotNil(t, resp.ToolCalls[0].Arguments)
}

func TestOpenAIGenerate_APIError(t *testing.T) {
	provider := openAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "auth_error"},
		})
	})

	_, err := provider.Generate(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestOpenAIGenerate_NoChoices(t *testing.T) {
	provider := openAITestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := provider.Generate(context.Background(), []Message{{Role: RoleUser, Content: "q"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestToOpenAIMessages_ToolTraffic(t *testing.T) {
	out := toOpenAIMessages([]Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{
			ID:        "call-1",
			Name:      "query_documents",
			Arguments: map[string]any{"collection": "orders"},
		}}},
		{Role: RoleTool, Content: `{"success":true}`, ToolCallID: "call-1", Name: "query_documents"},
	})

	require.Len(t, out, 2)
	require.Len(t, out[0].ToolCalls, 1)
	assert.Equal(t, "call-1", out[0].ToolCalls[0].ID)
	assert.JSONEq(t, `{"collection":"orders"}`, out[0].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call-1", out[1].ToolCallID)
	assert.Equal(t, "query_documents", out[1].Name)
}
