package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

const analysisJSON = `{
	"sentiment": "positive",
	"topics": {"cooking": 0.8, "travel": 0.2},
	"engagement": 0.7,
	"recommendations": ["create a cooking profile"]
}`

func analystInput() *interfaces.AgentInput {
	return (&interfaces.AgentInput{
		SessionID: "s1",
		Message:   "thanks, that recipe was great!",
		Mode:      interfaces.PrivacyModeNormal,
	}).WithContext(ContextKeyReply, "Glad you liked it!")
}

func TestConversationAnalyst_Execute(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{{text: analysisJSON, tokens: 25}}}
	analyst := NewConversationAnalyst(llm, WithAnalystLogger(logging.NewNoOpLogger()))

	out := analyst.Execute(context.Background(), analystInput())

	require.True(t, out.Success)
	assert.Equal(t, 25, out.TokensUsed)

	analysis, ok := out.Data[DataKeyAnalysis].(*ConversationAnalysis)
	require.True(t, ok)
	assert.Equal(t, "positive", analysis.Sentiment)
	assert.InDelta(t, 0.8, analysis.Topics["cooking"], 0.001)
	assert.InDelta(t, 0.7, analysis.Engagement, 0.001)
	assert.Equal(t, []string{"create a cooking profile"}, analysis.Recommendations)
}

func TestConversationAnalyst_AcceptsFencedJSON(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{{text: "```json\n" + analysisJSON + "\n```"}}}
	analyst := NewConversationAnalyst(llm, WithAnalystLogger(logging.NewNoOpLogger()))

	out := analyst.Execute(context.Background(), analystInput())

	require.True(t, out.Success)
	analysis := out.Data[DataKeyAnalysis].(*ConversationAnalysis)
	assert.Equal(t, "positive", analysis.Sentiment)
}

func TestConversationAnalyst_TranscriptIncludesTurnAndBoundedHistory(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{{text: analysisJSON}}}
	analyst := NewConversationAnalyst(llm,
		WithAnalystHistoryLimit(2),
		WithAnalystLogger(logging.NewNoOpLogger()))

	input := analystInput()
	input.History = []interfaces.Message{
		{Role: interfaces.MessageRoleUser, Content: "oldest question"},
		{Role: interfaces.MessageRoleAssistant, Content: "oldest answer"},
		{Role: interfaces.MessageRoleUser, Content: "recent question"},
		{Role: interfaces.MessageRoleAssistant, Content: "recent answer"},
	}

	out := analyst.Execute(context.Background(), input)

	require.True(t, out.Success)
	require.Len(t, llm.gotMessages, 1)
	transcript := llm.gotMessages[0][0].Content

	assert.NotContains(t, transcript, "oldest question")
	assert.Contains(t, transcript, "recent question")
	assert.Contains(t, transcript, "thanks, that recipe was great!")
	assert.Contains(t, transcript, "Glad you liked it!")
	assert.Equal(t, analysisSystemPrompt, llm.gotOptions[0].System)
}

func TestConversationAnalyst_ProviderFailure(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{{err: transientErr("timeout")}}}
	analyst := NewConversationAnalyst(llm, WithAnalystLogger(logging.NewNoOpLogger()))

	out := analyst.Execute(context.Background(), analystInput())

	require.False(t, out.Success)
	assert.Equal(t, interfaces.ErrorKindProviderTransient, out.Error.Kind)
}

func TestConversationAnalyst_UnparseableOutput(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{{text: "the user seems happy"}}}
	analyst := NewConversationAnalyst(llm, WithAnalystLogger(logging.NewNoOpLogger()))

	out := analyst.Execute(context.Background(), analystInput())

	require.False(t, out.Success)
	assert.Equal(t, interfaces.ErrorKindUnhandled, out.Error.Kind)
}
