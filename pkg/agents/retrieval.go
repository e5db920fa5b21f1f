package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
	"github.com/evermind-ai/evermind/pkg/multitenancy"
)

// DefaultTopK is the number of memories requested per turn when not
// configured.
const DefaultTopK = 5

// MemoryRetrieval fetches ranked relevant memories for the active profile
// and shapes them into a prompt-ready context block. Ranking is owned
// entirely by the external store. The stage is best-effort: store failures
// produce an empty memory set and a warning, never a failed turn.
type MemoryRetrieval struct {
	store  interfaces.MemoryStore
	topK   int
	logger logging.Logger
}

// MemoryRetrievalOption represents an option for configuring the stage.
type MemoryRetrievalOption func(*MemoryRetrieval)

// WithTopK sets how many memories are requested from the store.
func WithTopK(topK int) MemoryRetrievalOption {
	return func(r *MemoryRetrieval) {
		r.topK = topK
	}
}

// WithRetrievalLogger sets the logger for the stage.
func WithRetrievalLogger(logger logging.Logger) MemoryRetrievalOption {
	return func(r *MemoryRetrieval) {
		r.logger = logger
	}
}

// NewMemoryRetrieval creates the memory retrieval stage.
func NewMemoryRetrieval(store interfaces.MemoryStore, options ...MemoryRetrievalOption) *MemoryRetrieval {
	r := &MemoryRetrieval{
		store:  store,
		topK:   DefaultTopK,
		logger: logging.New(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Name implements interfaces.Agent.
func (r *MemoryRetrieval) Name() interfaces.AgentName {
	return interfaces.AgentMemoryRetrieval
}

// Execute implements interfaces.Agent.
func (r *MemoryRetrieval) Execute(ctx context.Context, input *interfaces.AgentInput) *interfaces.AgentOutput {
	mode := SanitizedMode(input)
	if mode == interfaces.PrivacyModeIncognito {
		return failureOutput(r.Name(), interfaces.ErrorKindValidation,
			"memory retrieval must not run in incognito mode", nil)
	}

	userID, err := multitenancy.GetUserID(ctx)
	if err != nil {
		// Without an identity there is no namespace to search; degrade to
		// an empty context rather than failing the turn.
		return successOutput(map[string]interface{}{
			DataKeyMemories:      []interfaces.MemoryRecord{},
			DataKeyMemoryContext: "",
			DataKeyCount:         0,
			DataKeyWarnings:      []string{"memory retrieval skipped: no user identity on request"},
		}, 0)
	}

	namespace := multitenancy.Namespace(userID, input.ProfileID)
	records, err := r.store.Search(ctx, namespace, input.Message, r.topK)
	if err != nil {
		r.logger.Warn(ctx, "Memory search failed, continuing without memories", map[string]interface{}{
			"session_id": input.SessionID,
			"namespace":  namespace,
			"error":      err.Error(),
		})
		return successOutput(map[string]interface{}{
			DataKeyMemories:      []interfaces.MemoryRecord{},
			DataKeyMemoryContext: "",
			DataKeyCount:         0,
			DataKeyWarnings:      []string{fmt.Sprintf("memory retrieval unavailable: %v", err)},
		}, 0)
	}

	r.logger.Debug(ctx, "Retrieved memories", map[string]interface{}{
		"session_id": input.SessionID,
		"namespace":  namespace,
		"count":      len(records),
	})

	return successOutput(map[string]interface{}{
		DataKeyMemories:      records,
		DataKeyMemoryContext: formatMemoryContext(records),
		DataKeyCount:         len(records),
		DataKeyWarnings:      []string{},
	}, 0)
}

// formatMemoryContext shapes retrieved memories into the block embedded in
// the generator's system instruction. Store ordering is preserved.
func formatMemoryContext(records []interfaces.MemoryRecord) string {
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant things you remember about this user:\n")
	for _, record := range records {
		b.WriteString("- ")
		b.WriteString(record.Text)
		b.WriteString("\n")
	}
	return b.String()
}

var _ interfaces.Agent = (*MemoryRetrieval)(nil)
