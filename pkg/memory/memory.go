// Package memory provides session-keyed conversation history with a durable
// and a transient backend, selected once at process start.
package memory

import (
	"context"
	"errors"

	"github.com/datasage-io/datasage/pkg/llms"
)

// ErrBackend wraps failures of the durable backend. The orchestrator treats
// these as fatal to the turn; there is no silent fallback to the transient
// backend mid-session.
var ErrBackend = errors.New("memory backend error")

// SessionService stores ordered, append-only message history per session.
type SessionService interface {
	// AppendMessages appends messages to a session atomically, creating the
	// session on first use.
	AppendMessages(ctx context.Context, sessionID string, messages []llms.Message) error

	// GetMessages returns the session history oldest first. Repeated reads
	// have no side effect; an unknown session yields an empty history.
	GetMessages(ctx context.Context, sessionID string) ([]llms.Message, error)

	// GetMessageCount returns the number of stored messages.
	GetMessageCount(ctx context.Context, sessionID string) (int, error)

	// ClearSession removes a session's history. Idempotent.
	ClearSession(ctx context.Context, sessionID string) error
}
