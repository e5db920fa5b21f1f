package memory

import (
	"context"
	"sync"

	"github.com/evermind-ai/evermind/pkg/interfaces"
)

// ConversationBuffer is an in-process implementation of
// interfaces.ConversationStore. Suitable for tests and single-process
// deployments without Redis.
type ConversationBuffer struct {
	mu       sync.RWMutex
	sessions map[string][]interfaces.Message
}

// NewConversationBuffer creates an empty in-process buffer.
func NewConversationBuffer() *ConversationBuffer {
	return &ConversationBuffer{
		sessions: make(map[string][]interfaces.Message),
	}
}

// AddMessage implements interfaces.ConversationStore.
func (b *ConversationBuffer) AddMessage(ctx context.Context, sessionID string, message interfaces.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[sessionID] = append(b.sessions[sessionID], message)
	return nil
}

// GetMessages implements interfaces.ConversationStore.
func (b *ConversationBuffer) GetMessages(ctx context.Context, sessionID string, limit int) ([]interfaces.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	history := b.sessions[sessionID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]interfaces.Message, len(history))
	copy(out, history)
	return out, nil
}

// Clear implements interfaces.ConversationStore.
func (b *ConversationBuffer) Clear(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, sessionID)
	return nil
}

var _ interfaces.ConversationStore = (*ConversationBuffer)(nil)
