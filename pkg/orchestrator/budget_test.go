package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evermind-ai/evermind/pkg/interfaces"
)

func TestTokenBudget_Record(t *testing.T) {
	budget := NewTokenBudget(100, map[interfaces.AgentName]int{
		interfaces.AgentConversationGenerator: 60,
	})

	agentOver, totalOver := budget.Record(interfaces.AgentConversationGenerator, 50)
	assert.False(t, agentOver)
	assert.False(t, totalOver)
	assert.Equal(t, 50, budget.Consumed())
	assert.False(t, budget.Exhausted())

	agentOver, totalOver = budget.Record(interfaces.AgentConversationGenerator, 20)
	assert.True(t, agentOver, "70 > per-stage cap of 60")
	assert.False(t, totalOver)

	agentOver, totalOver = budget.Record(interfaces.AgentMemoryManager, 40)
	assert.False(t, agentOver, "memory manager has no per-stage cap")
	assert.True(t, totalOver, "110 > turn cap of 100")
	assert.True(t, budget.Exhausted())

	byAgent := budget.ConsumedByAgent()
	assert.Equal(t, 70, byAgent[interfaces.AgentConversationGenerator])
	assert.Equal(t, 40, byAgent[interfaces.AgentMemoryManager])
}

func TestTokenBudget_ExactBudgetIsNotExhausted(t *testing.T) {
	budget := NewTokenBudget(50, nil)

	_, totalOver := budget.Record(interfaces.AgentConversationGenerator, 50)

	assert.False(t, totalOver, "reaching the budget is not an overrun")
	assert.False(t, budget.Exhausted(), "only usage beyond the budget exhausts it")

	_, totalOver = budget.Record(interfaces.AgentMemoryManager, 1)
	assert.True(t, totalOver)
	assert.True(t, budget.Exhausted())
}

func TestTokenBudget_ZeroMeansUnlimited(t *testing.T) {
	budget := NewTokenBudget(0, nil)

	_, totalOver := budget.Record(interfaces.AgentConversationGenerator, 1_000_000)

	assert.False(t, totalOver)
	assert.False(t, budget.Exhausted())
}

func TestTokenBudget_NegativeTokensClamped(t *testing.T) {
	budget := NewTokenBudget(100, nil)

	budget.Record(interfaces.AgentPrivacyGuardian, -5)

	assert.Zero(t, budget.Consumed())
}

func TestTokenBudget_CopyIsolation(t *testing.T) {
	budget := NewTokenBudget(100, nil)
	budget.Record(interfaces.AgentConversationGenerator, 10)

	copied := budget.ConsumedByAgent()
	copied[interfaces.AgentConversationGenerator] = 999

	assert.Equal(t, 10, budget.ConsumedByAgent()[interfaces.AgentConversationGenerator])
}
