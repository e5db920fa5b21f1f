package interfaces

import "context"

// MemoryRecord is one long-term memory held by the external store.
type MemoryRecord struct {
	// ID is the store-assigned identifier.
	ID string

	// Text is the memory statement.
	Text string

	// Metadata carries importance, type, tags and other annotations.
	Metadata map[string]interface{}
}

// MemoryStore represents the external long-term memory store. Ranking and
// ordering of search results are owned entirely by the store; callers only
// shape the request.
type MemoryStore interface {
	// Search returns up to limit memories relevant to query within the
	// namespace, best match first.
	Search(ctx context.Context, namespace, query string, limit int) ([]MemoryRecord, error)

	// Add persists one memory in the namespace and returns its identifier.
	Add(ctx context.Context, namespace, text string, metadata map[string]interface{}) (string, error)
}

// ConversationStore holds per-session turn history. It supplies
// AgentInput.History before orchestration and records the completed turn
// afterwards.
type ConversationStore interface {
	// AddMessage appends a message to the session's history.
	AddMessage(ctx context.Context, sessionID string, message Message) error

	// GetMessages returns the most recent messages of the session, oldest
	// first. limit <= 0 returns the full history.
	GetMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// Clear removes the session's history.
	Clear(ctx context.Context, sessionID string) error
}

// Embedder converts text into a vector for similarity search.
type Embedder interface {
	// Embed generates an embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}
