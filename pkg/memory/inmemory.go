package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/datasage-io/datasage/pkg/llms"
)

// InMemorySessionService is the transient backend: history lives for the
// process lifetime with no cross-restart guarantee.
type InMemorySessionService struct {
	mu       sync.RWMutex
	sessions map[string]*sessionData
}

type sessionData struct {
	messages   []llms.Message
	lastAccess time.Time
}

// NewInMemorySessionService creates an empty transient session service.
func NewInMemorySessionService() *InMemorySessionService {
	return &InMemorySessionService{sessions: make(map[string]*sessionData)}
}

func (s *InMemorySessionService) AppendMessages(ctx context.Context, sessionID string, messages []llms.Message) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		session = &sessionData{}
		s.sessions[sessionID] = session
	}
	session.messages = append(session.messages, messages...)
	session.lastAccess = time.Now()
	return nil
}

func (s *InMemorySessionService) GetMessages(ctx context.Context, sessionID string) ([]llms.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return []llms.Message{}, nil
	}
	out := make([]llms.Message, len(session.messages))
	copy(out, session.messages)
	return out, nil
}

func (s *InMemorySessionService) GetMessageCount(ctx context.Context, sessionID string) (int, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("sessionID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	return len(session.messages), nil
}

func (s *InMemorySessionService) ClearSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// SessionCount returns the number of live sessions, for diagnostics.
func (s *InMemorySessionService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ SessionService = (*InMemorySessionService)(nil)
