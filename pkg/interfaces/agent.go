package interfaces

import (
	"context"
	"time"
)

// PrivacyMode is the per-turn policy controlling whether memory read/write
// stages run.
type PrivacyMode string

const (
	// PrivacyModeNormal allows memory retrieval and extraction.
	PrivacyModeNormal PrivacyMode = "normal"
	// PrivacyModeIncognito disables all memory access for the turn.
	PrivacyModeIncognito PrivacyMode = "incognito"
	// PrivacyModePauseMemories allows retrieval but disables extraction.
	PrivacyModePauseMemories PrivacyMode = "pause_memories"
)

// Valid reports whether the mode is one of the known privacy modes.
func (m PrivacyMode) Valid() bool {
	switch m {
	case PrivacyModeNormal, PrivacyModeIncognito, PrivacyModePauseMemories:
		return true
	}
	return false
}

// AgentName identifies a stage in the orchestration pipeline. The set is
// closed: stage selection and ordering are driven by tables keyed on these
// constants, never by runtime string matching.
type AgentName string

const (
	AgentPrivacyGuardian       AgentName = "privacy_guardian"
	AgentMemoryRetrieval       AgentName = "memory_retrieval"
	AgentConversationGenerator AgentName = "conversation_generator"
	AgentMemoryManager         AgentName = "memory_manager"
	AgentConversationAnalyst   AgentName = "conversation_analyst"
)

// AgentInput is the per-invocation view a stage receives. The coordinator
// clones and extends Context between stages rather than mutating a shared
// map, so each stage's view stays reproducible.
type AgentInput struct {
	// SessionID identifies the conversation this turn belongs to.
	SessionID string

	// Message is the raw user message for this turn.
	Message string

	// Mode is the privacy mode requested by the user.
	Mode PrivacyMode

	// ProfileID selects the memory profile; empty means the default profile.
	ProfileID string

	// History holds the prior turns, oldest first.
	History []Message

	// Context carries stage-to-stage scratch values.
	Context map[string]interface{}
}

// Clone returns a copy of the input with its own Context map. History is
// shared; stages treat it as read-only.
func (in *AgentInput) Clone() *AgentInput {
	out := *in
	out.Context = make(map[string]interface{}, len(in.Context)+1)
	for k, v := range in.Context {
		out.Context[k] = v
	}
	return &out
}

// WithContext returns a clone of the input carrying one additional scratch
// value.
func (in *AgentInput) WithContext(key string, value interface{}) *AgentInput {
	out := in.Clone()
	out.Context[key] = value
	return out
}

// ContextString reads a string scratch value, returning "" when absent or of
// another type.
func (in *AgentInput) ContextString(key string) string {
	if s, ok := in.Context[key].(string); ok {
		return s
	}
	return ""
}

// AgentOutput is the uniform result shape every stage produces.
//
// Invariant: Success=false implies Data is empty and Error is populated;
// Success=true implies Error is nil.
type AgentOutput struct {
	// Success reports whether the stage completed its work.
	Success bool

	// Data is the stage-specific payload.
	Data map[string]interface{}

	// TokensUsed is the language-model token consumption of the stage.
	TokensUsed int

	// ExecutionTime is the wall-clock duration of the stage invocation.
	ExecutionTime time.Duration

	// Error describes the failure when Success is false.
	Error *AgentError
}

// DataString reads a string payload field, returning "" when absent.
func (o *AgentOutput) DataString(key string) string {
	if o.Data == nil {
		return ""
	}
	if s, ok := o.Data[key].(string); ok {
		return s
	}
	return ""
}

// DataInt reads an integer payload field, returning 0 when absent.
func (o *AgentOutput) DataInt(key string) int {
	if o.Data == nil {
		return 0
	}
	if n, ok := o.Data[key].(int); ok {
		return n
	}
	return 0
}

// Agent is the contract every pipeline stage implements. Execute never
// panics across the boundary and never returns nil; expected failures are
// reported through AgentOutput.Success.
type Agent interface {
	// Name returns the stage identity used in execution tables and results.
	Name() AgentName

	// Execute runs the stage against one turn's input.
	Execute(ctx context.Context, input *AgentInput) *AgentOutput
}
