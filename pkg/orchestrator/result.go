package orchestrator

import (
	"github.com/evermind-ai/evermind/pkg/agents"
	"github.com/evermind-ai/evermind/pkg/interfaces"
)

// OrchestrationResult is the aggregate outcome of one turn. It is created
// fresh per turn and never persisted by the orchestrator; the surrounding
// service layer maps it into durable rows.
type OrchestrationResult struct {
	// Reply is the generated assistant reply; empty when Success is false.
	Reply string `json:"reply"`

	// MemoriesUsed is the number of memories the retrieval stage returned
	// (0 when retrieval did not run).
	MemoriesUsed int `json:"memories_used"`

	// MemoriesExtracted is the number of memories persisted this turn (0
	// when extraction did not run).
	MemoriesExtracted int `json:"memories_extracted"`

	// AgentsExecuted lists every stage actually invoked, in order.
	AgentsExecuted []interfaces.AgentName `json:"agents_executed"`

	// TokensByAgent is the per-stage token consumption of the turn.
	TokensByAgent map[interfaces.AgentName]int `json:"tokens_by_agent"`

	// Warnings carries advisory degradation notices (skipped stages,
	// budget overruns, best-effort failures).
	Warnings []string `json:"warnings"`

	// Analysis is the analyst's payload when that stage ran successfully.
	Analysis *agents.ConversationAnalysis `json:"analysis,omitempty"`

	// Success is false only when no assistant reply could be produced.
	Success bool `json:"success"`

	// Error describes the turn-level failure when Success is false.
	Error *interfaces.AgentError `json:"error,omitempty"`
}

// Executed reports whether the named stage ran this turn.
func (r *OrchestrationResult) Executed(agent interfaces.AgentName) bool {
	for _, name := range r.AgentsExecuted {
		if name == agent {
			return true
		}
	}
	return false
}
