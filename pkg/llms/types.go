// Package llms defines the reasoning capability contract and its providers.
//
// A provider is consumed through a single seam: given the working message
// history and the tool contracts, it returns either a final answer or one or
// more tool invocations, plus a usage record. Token usage is a plain return
// value; providers never call back into the orchestrator.
package llms

import (
	"context"
	"time"
)

// Message roles used across the conversation history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a conversation history. Messages are immutable
// once appended.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	// ToolCallID and Name tie a tool-role message back to the invocation it
	// answers.
	ToolCallID string    `json:"toolCallId,omitempty"`
	Name       string    `json:"name,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition is the contract of one tool as advertised to the model.
// Parameters is a JSON schema document.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage is the token accounting of a single Generate call.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Response is the outcome of a single Generate call. When ToolCalls is empty
// the Text is the model's final answer.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// Provider is the reasoning capability.
type Provider interface {
	// Generate invokes the model once with the full working history and the
	// tool contracts.
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error)

	// ModelName returns the configured model identifier.
	ModelName() string

	// Close releases provider resources.
	Close() error
}
