package orchestrator

import (
	"sync"

	"github.com/evermind-ai/evermind/pkg/interfaces"
)

// TokenBudget tracks language-model token consumption for one turn.
// Consumption is recorded after the fact and never clipped: a completion
// already produced cannot be partially discarded, so overruns are reported,
// not prevented.
type TokenBudget struct {
	mu sync.Mutex

	// TotalBudget caps the whole turn.
	TotalBudget int

	// PerAgentBudget caps individual stages; zero means uncapped.
	PerAgentBudget map[interfaces.AgentName]int

	consumedByAgent map[interfaces.AgentName]int
	consumedTotal   int
}

// NewTokenBudget creates a fresh budget for one turn.
func NewTokenBudget(total int, perAgent map[interfaces.AgentName]int) *TokenBudget {
	return &TokenBudget{
		TotalBudget:     total,
		PerAgentBudget:  perAgent,
		consumedByAgent: make(map[interfaces.AgentName]int),
	}
}

// Record adds a stage's consumption. It returns whether the stage exceeded
// its own budget and whether the turn total is now exceeded. Counters only
// ever grow within a turn.
func (b *TokenBudget) Record(agent interfaces.AgentName, tokens int) (agentOver, totalOver bool) {
	if tokens < 0 {
		tokens = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.consumedByAgent[agent] += tokens
	b.consumedTotal += tokens

	if cap, ok := b.PerAgentBudget[agent]; ok && cap > 0 && b.consumedByAgent[agent] > cap {
		agentOver = true
	}
	if b.TotalBudget > 0 && b.consumedTotal > b.TotalBudget {
		totalOver = true
	}
	return agentOver, totalOver
}

// Exhausted reports whether cumulative usage has exceeded the turn budget.
// Skippable stages are omitted once this is true; non-skippable stages run
// regardless. Usage that lands exactly on the budget does not exhaust it.
func (b *TokenBudget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.TotalBudget > 0 && b.consumedTotal > b.TotalBudget
}

// Consumed returns the cumulative usage of the turn.
func (b *TokenBudget) Consumed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumedTotal
}

// ConsumedByAgent returns a copy of the per-stage usage.
func (b *TokenBudget) ConsumedByAgent() map[interfaces.AgentName]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[interfaces.AgentName]int, len(b.consumedByAgent))
	for agent, tokens := range b.consumedByAgent {
		out[agent] = tokens
	}
	return out
}
