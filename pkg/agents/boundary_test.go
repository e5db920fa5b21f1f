package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

// stubAgent lets boundary tests script arbitrary stage behavior.
type stubAgent struct {
	name    interfaces.AgentName
	execute func(ctx context.Context, input *interfaces.AgentInput) *interfaces.AgentOutput
}

func (s *stubAgent) Name() interfaces.AgentName { return s.name }

func (s *stubAgent) Execute(ctx context.Context, input *interfaces.AgentInput) *interfaces.AgentOutput {
	return s.execute(ctx, input)
}

func boundaryInput() *interfaces.AgentInput {
	return &interfaces.AgentInput{SessionID: "s1", Message: "hi", Mode: interfaces.PrivacyModeNormal}
}

func TestInstrument_RecoversPanic(t *testing.T) {
	agent := Instrument(&stubAgent{
		name: interfaces.AgentConversationAnalyst,
		execute: func(ctx context.Context, input *interfaces.AgentInput) *interfaces.AgentOutput {
			panic("nil map write")
		},
	}, logging.NewNoOpLogger())

	out := agent.Execute(context.Background(), boundaryInput())

	require.NotNil(t, out)
	require.False(t, out.Success)
	require.NotNil(t, out.Error)
	assert.Equal(t, interfaces.ErrorKindUnhandled, out.Error.Kind)
	assert.Contains(t, out.Error.Message, "nil map write")
}

func TestInstrument_ConvertsNilOutput(t *testing.T) {
	agent := Instrument(&stubAgent{
		name: interfaces.AgentMemoryManager,
		execute: func(ctx context.Context, input *interfaces.AgentInput) *interfaces.AgentOutput {
			return nil
		},
	}, logging.NewNoOpLogger())

	out := agent.Execute(context.Background(), boundaryInput())

	require.NotNil(t, out)
	assert.False(t, out.Success)
	assert.Equal(t, interfaces.ErrorKindUnhandled, out.Error.Kind)
}

func TestInstrument_PassesThroughAndTimes(t *testing.T) {
	agent := Instrument(&stubAgent{
		name: interfaces.AgentMemoryRetrieval,
		execute: func(ctx context.Context, input *interfaces.AgentInput) *interfaces.AgentOutput {
			return successOutput(map[string]interface{}{DataKeyCount: 2}, 7)
		},
	}, logging.NewNoOpLogger())

	out := agent.Execute(context.Background(), boundaryInput())

	require.True(t, out.Success)
	assert.Equal(t, 2, out.DataInt(DataKeyCount))
	assert.Equal(t, 7, out.TokensUsed)
	assert.Greater(t, out.ExecutionTime.Nanoseconds(), int64(0))
	assert.Equal(t, interfaces.AgentMemoryRetrieval, agent.Name())
}

func TestExecuteStreamGuarded_RecoversPanic(t *testing.T) {
	generator := NewConversationGenerator(&panickingLLM{}, WithGeneratorLogger(logging.NewNoOpLogger()))

	out := ExecuteStreamGuarded(context.Background(), generator, boundaryInput(),
		func(delta string) {}, logging.NewNoOpLogger())

	require.NotNil(t, out)
	require.False(t, out.Success)
	assert.Equal(t, interfaces.ErrorKindUnhandled, out.Error.Kind)
	assert.Equal(t, interfaces.AgentConversationGenerator, out.Error.Agent)
}

// panickingLLM simulates a provider bug escaping the client library.
type panickingLLM struct{}

func (p *panickingLLM) Name() string { return "panicking" }

func (p *panickingLLM) Complete(ctx context.Context, messages []interfaces.Message, options ...interfaces.CompleteOption) (*interfaces.Completion, error) {
	panic("index out of range")
}
