package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
	"github.com/evermind-ai/evermind/pkg/multitenancy"
)

const extractionSystemPrompt = `You extract durable facts about the user from one conversation turn.
Return a JSON array; each element is {"text": string, "importance": number 0-1, "type": string, "tags": [string]}.
Only include facts worth remembering across conversations (preferences, biography, goals, relationships).
Return [] when the turn contains nothing worth remembering. Return only JSON.`

// ExtractedMemory is one candidate memory statement produced by the
// extraction model.
type ExtractedMemory struct {
	ID         string   `json:"id,omitempty"`
	Text       string   `json:"text"`
	Importance float64  `json:"importance"`
	Type       string   `json:"type,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// MemoryManager extracts candidate memories from the completed turn and
// persists them through the memory store. It only runs for normal-mode
// turns and never fails the turn: extraction or write failures shrink the
// persisted count and add warnings.
type MemoryManager struct {
	llm    interfaces.LLM
	store  interfaces.MemoryStore
	logger logging.Logger

	// minImportance drops trivia the extraction model scored too low.
	minImportance float64
}

// MemoryManagerOption represents an option for configuring the stage.
type MemoryManagerOption func(*MemoryManager)

// WithMinImportance sets the importance threshold below which extracted
// candidates are discarded.
func WithMinImportance(min float64) MemoryManagerOption {
	return func(m *MemoryManager) {
		m.minImportance = min
	}
}

// WithManagerLogger sets the logger for the stage.
func WithManagerLogger(logger logging.Logger) MemoryManagerOption {
	return func(m *MemoryManager) {
		m.logger = logger
	}
}

// NewMemoryManager creates the memory manager stage.
func NewMemoryManager(llm interfaces.LLM, store interfaces.MemoryStore, options ...MemoryManagerOption) *MemoryManager {
	m := &MemoryManager{
		llm:           llm,
		store:         store,
		logger:        logging.New(),
		minImportance: 0.3,
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Name implements interfaces.Agent.
func (m *MemoryManager) Name() interfaces.AgentName {
	return interfaces.AgentMemoryManager
}

// Execute implements interfaces.Agent.
func (m *MemoryManager) Execute(ctx context.Context, input *interfaces.AgentInput) *interfaces.AgentOutput {
	if SanitizedMode(input) != interfaces.PrivacyModeNormal {
		return failureOutput(m.Name(), interfaces.ErrorKindValidation,
			"memory extraction only runs in normal mode", nil)
	}

	reply := input.ContextString(ContextKeyReply)
	warnings := []string{}

	candidates, tokensUsed, err := m.extract(ctx, input.Message, reply)
	if err != nil {
		// Extraction is best-effort; a failed turn would throw away a
		// perfectly good reply.
		m.logger.Warn(ctx, "Memory extraction failed", map[string]interface{}{
			"session_id": input.SessionID,
			"error":      err.Error(),
		})
		return successOutput(map[string]interface{}{
			DataKeyExtracted: []ExtractedMemory{},
			DataKeyCount:     0,
			DataKeyWarnings:  []string{fmt.Sprintf("memory extraction unavailable: %v", err)},
		}, tokensUsed)
	}

	userID, err := multitenancy.GetUserID(ctx)
	if err != nil {
		return successOutput(map[string]interface{}{
			DataKeyExtracted: []ExtractedMemory{},
			DataKeyCount:     0,
			DataKeyWarnings:  []string{"memories not persisted: no user identity on request"},
		}, tokensUsed)
	}
	namespace := multitenancy.Namespace(userID, input.ProfileID)

	persisted := make([]ExtractedMemory, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Text == "" || candidate.Importance < m.minImportance {
			continue
		}

		id, err := m.store.Add(ctx, namespace, candidate.Text, map[string]interface{}{
			"importance": candidate.Importance,
			"type":       candidate.Type,
			"tags":       candidate.Tags,
			"session_id": input.SessionID,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			// Partial failure: count reflects successes only.
			m.logger.Warn(ctx, "Failed to persist memory", map[string]interface{}{
				"session_id": input.SessionID,
				"namespace":  namespace,
				"error":      err.Error(),
			})
			warnings = append(warnings, fmt.Sprintf("failed to save memory %q: %v", truncate(candidate.Text, 40), err))
			continue
		}

		candidate.ID = id
		persisted = append(persisted, candidate)
	}

	m.logger.Info(ctx, "Memory extraction completed", map[string]interface{}{
		"session_id": input.SessionID,
		"candidates": len(candidates),
		"persisted":  len(persisted),
	})

	return successOutput(map[string]interface{}{
		DataKeyExtracted: persisted,
		DataKeyCount:     len(persisted),
		DataKeyWarnings:  warnings,
	}, tokensUsed)
}

// extract asks the model for candidate memory statements from one turn.
func (m *MemoryManager) extract(ctx context.Context, userMessage, reply string) ([]ExtractedMemory, int, error) {
	turn := fmt.Sprintf("User: %s\nAssistant: %s", userMessage, reply)

	completion, err := m.llm.Complete(ctx,
		[]interfaces.Message{{Role: interfaces.MessageRoleUser, Content: turn}},
		interfaces.WithSystemMessage(extractionSystemPrompt),
		interfaces.WithTemperature(0.0),
		interfaces.WithMaxTokens(512),
	)
	if err != nil {
		return nil, 0, err
	}

	candidates, err := parseExtraction(completion.Text)
	if err != nil {
		return nil, completion.TokensUsed, fmt.Errorf("unparseable extraction output: %w", err)
	}

	return candidates, completion.TokensUsed, nil
}

// parseExtraction decodes the model's JSON array, tolerating markdown code
// fences around it.
func parseExtraction(text string) ([]ExtractedMemory, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return nil, nil
	}

	var candidates []ExtractedMemory
	if err := json.Unmarshal([]byte(cleaned), &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

var _ interfaces.Agent = (*MemoryManager)(nil)
