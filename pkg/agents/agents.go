// Package agents implements the five pipeline stages of the conversation
// orchestrator: privacy guardian, memory retrieval, conversation generator,
// memory manager and conversation analyst. Every stage implements
// interfaces.Agent and is executed behind the boundary in boundary.go.
package agents

import (
	"github.com/evermind-ai/evermind/pkg/interfaces"
)

// Context keys for stage-to-stage scratch values carried on AgentInput.
const (
	// ContextKeySanitizedMode is the effective privacy mode the guardian
	// decided for the rest of the turn.
	ContextKeySanitizedMode = "sanitized_mode"

	// ContextKeyMemoryContext is the prompt-ready memory block produced by
	// retrieval.
	ContextKeyMemoryContext = "memory_context"

	// ContextKeyReply is the generated assistant reply consumed by the
	// memory manager and analyst.
	ContextKeyReply = "reply"
)

// Data keys for stage output payloads.
const (
	DataKeyAllowed       = "allowed"
	DataKeyWarnings      = "warnings"
	DataKeySanitizedMode = "sanitized_mode"
	DataKeyMemories      = "memories"
	DataKeyMemoryContext = "context"
	DataKeyCount         = "count"
	DataKeyReply         = "reply"
	DataKeyFinishReason  = "finish_reason"
	DataKeyExtracted     = "extracted"
	DataKeyAnalysis      = "analysis"
)

// successOutput builds a successful stage result.
func successOutput(data map[string]interface{}, tokensUsed int) *interfaces.AgentOutput {
	return &interfaces.AgentOutput{
		Success:    true,
		Data:       data,
		TokensUsed: tokensUsed,
	}
}

// failureOutput builds a failed stage result. Data stays empty so the
// success/error invariant holds.
func failureOutput(agent interfaces.AgentName, kind interfaces.ErrorKind, message string, cause error) *interfaces.AgentOutput {
	return &interfaces.AgentOutput{
		Success: false,
		Error:   interfaces.NewAgentError(agent, kind, message, cause),
	}
}

// failureFromError builds a failed stage result preserving the error's kind
// when it already carries one.
func failureFromError(agent interfaces.AgentName, message string, err error) *interfaces.AgentOutput {
	return failureOutput(agent, interfaces.KindOf(err), message, err)
}

// outputWarnings reads the warnings payload of a stage result.
func outputWarnings(out *interfaces.AgentOutput) []string {
	if out == nil || out.Data == nil {
		return nil
	}
	warnings, _ := out.Data[DataKeyWarnings].([]string)
	return warnings
}

// SanitizedMode resolves the effective privacy mode for a stage input,
// falling back to the requested mode when the guardian has not run.
func SanitizedMode(input *interfaces.AgentInput) interfaces.PrivacyMode {
	if s := input.ContextString(ContextKeySanitizedMode); s != "" {
		return interfaces.PrivacyMode(s)
	}
	return input.Mode
}
