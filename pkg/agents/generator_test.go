package agents

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

func generatorInput() *interfaces.AgentInput {
	return &interfaces.AgentInput{
		SessionID: "s1",
		Message:   "what should I cook tonight?",
		Mode:      interfaces.PrivacyModeNormal,
	}
}

func newTestGenerator(llm interfaces.LLM) *ConversationGenerator {
	config := DefaultGeneratorConfig()
	config.Retry = fastRetry()
	return NewConversationGenerator(llm,
		WithGeneratorConfig(config),
		WithGeneratorLogger(logging.NewNoOpLogger()))
}

func TestConversationGenerator_Execute(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{{text: "Try a mushroom risotto.", tokens: 42}}}
	generator := newTestGenerator(llm)

	out := generator.Execute(context.Background(), generatorInput())

	require.True(t, out.Success)
	assert.Equal(t, "Try a mushroom risotto.", out.DataString(DataKeyReply))
	assert.Equal(t, "stop", out.DataString(DataKeyFinishReason))
	assert.Equal(t, 42, out.TokensUsed)
	assert.Equal(t, 1, llm.calls)
}

func TestConversationGenerator_EmbedsMemoryContext(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{{text: "ok"}}}
	generator := newTestGenerator(llm)

	input := generatorInput().WithContext(ContextKeyMemoryContext,
		"Relevant things you remember about this user:\n- User is vegetarian\n")
	out := generator.Execute(context.Background(), input)

	require.True(t, out.Success)
	require.Len(t, llm.gotOptions, 1)
	system := llm.gotOptions[0].System
	assert.True(t, strings.HasPrefix(system, baseSystemPrompt))
	assert.Contains(t, system, "User is vegetarian")
}

func TestConversationGenerator_BoundsHistory(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{{text: "ok"}}}
	config := DefaultGeneratorConfig()
	config.Retry = fastRetry()
	config.HistoryLimit = 2
	generator := NewConversationGenerator(llm,
		WithGeneratorConfig(config),
		WithGeneratorLogger(logging.NewNoOpLogger()))

	input := generatorInput()
	input.History = []interfaces.Message{
		{Role: interfaces.MessageRoleUser, Content: "oldest"},
		{Role: interfaces.MessageRoleAssistant, Content: "old reply"},
		{Role: interfaces.MessageRoleUser, Content: "recent"},
		{Role: interfaces.MessageRoleAssistant, Content: "recent reply"},
	}

	out := generator.Execute(context.Background(), input)

	require.True(t, out.Success)
	require.Len(t, llm.gotMessages, 1)
	messages := llm.gotMessages[0]
	// Bounded history plus the new user message.
	require.Len(t, messages, 3)
	assert.Equal(t, "recent", messages[0].Content)
	assert.Equal(t, "recent reply", messages[1].Content)
	assert.Equal(t, "what should I cook tonight?", messages[2].Content)
}

func TestConversationGenerator_RetriesTransientFailures(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{
		{err: transientErr("rate limited")},
		{err: transientErr("rate limited")},
		{text: "finally", tokens: 5},
	}}
	generator := newTestGenerator(llm)

	out := generator.Execute(context.Background(), generatorInput())

	require.True(t, out.Success, "success on the last allowed attempt still succeeds the turn")
	assert.Equal(t, "finally", out.DataString(DataKeyReply))
	assert.Equal(t, 3, llm.calls)
}

func TestConversationGenerator_ExhaustsRetries(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{{err: transientErr("rate limited")}}}
	generator := newTestGenerator(llm)

	out := generator.Execute(context.Background(), generatorInput())

	require.False(t, out.Success)
	assert.Equal(t, interfaces.ErrorKindProviderTransient, out.Error.Kind)
	assert.Equal(t, 3, llm.calls, "default policy allows three attempts")
}

func TestConversationGenerator_FatalFailureIsNotRetried(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{{err: fatalErr("invalid api key")}}}
	generator := newTestGenerator(llm)

	out := generator.Execute(context.Background(), generatorInput())

	require.False(t, out.Success)
	assert.Equal(t, interfaces.ErrorKindProviderFatal, out.Error.Kind)
	assert.Equal(t, 1, llm.calls)
}

func TestConversationGenerator_StreamFallbackForNonStreamingLLM(t *testing.T) {
	llm := &fakeLLM{responses: []fakeCompletion{{text: "full reply", tokens: 9}}}
	generator := newTestGenerator(llm)

	var emitted []string
	out := generator.ExecuteStream(context.Background(), generatorInput(), func(delta string) {
		emitted = append(emitted, delta)
	})

	require.True(t, out.Success)
	assert.Equal(t, []string{"full reply"}, emitted)
	assert.Equal(t, "full reply", out.DataString(DataKeyReply))
}

func TestConversationGenerator_StreamsFragments(t *testing.T) {
	llm := &streamingFakeLLM{attempts: [][]interfaces.StreamChunk{{
		{Type: interfaces.StreamChunkDelta, Delta: "Try "},
		{Type: interfaces.StreamChunkDelta, Delta: "risotto."},
		{Type: interfaces.StreamChunkDone, TokensUsed: 12, FinishReason: "stop"},
	}}}
	generator := newTestGenerator(llm)

	var emitted strings.Builder
	out := generator.ExecuteStream(context.Background(), generatorInput(), func(delta string) {
		emitted.WriteString(delta)
	})

	require.True(t, out.Success)
	assert.Equal(t, "Try risotto.", emitted.String())
	assert.Equal(t, "Try risotto.", out.DataString(DataKeyReply))
	assert.Equal(t, 12, out.TokensUsed)
	assert.Equal(t, "stop", out.DataString(DataKeyFinishReason))
}

func TestConversationGenerator_StreamRetriesBeforeFirstFragment(t *testing.T) {
	llm := &streamingFakeLLM{attempts: [][]interfaces.StreamChunk{
		{{Type: interfaces.StreamChunkError, Err: transientErr("connection reset")}},
		{
			{Type: interfaces.StreamChunkDelta, Delta: "hello"},
			{Type: interfaces.StreamChunkDone, TokensUsed: 3, FinishReason: "stop"},
		},
	}}
	generator := newTestGenerator(llm)

	var emitted strings.Builder
	out := generator.ExecuteStream(context.Background(), generatorInput(), func(delta string) {
		emitted.WriteString(delta)
	})

	require.True(t, out.Success)
	assert.Equal(t, "hello", emitted.String())
	assert.Equal(t, 2, llm.streamCalls)
}

func TestConversationGenerator_StreamClosedAfterPartialReplyFails(t *testing.T) {
	// A producer that bails out on cancellation closes the channel without
	// its terminal chunk; the truncated reply must not pass as success.
	llm := &streamingFakeLLM{attempts: [][]interfaces.StreamChunk{{
		{Type: interfaces.StreamChunkDelta, Delta: "partial"},
	}}}
	generator := newTestGenerator(llm)

	out := generator.ExecuteStream(context.Background(), generatorInput(), func(delta string) {})

	require.False(t, out.Success)
	assert.Equal(t, interfaces.ErrorKindProviderFatal, out.Error.Kind)
	assert.Equal(t, 1, llm.streamCalls, "no retry once fragments reached the user")
}

func TestConversationGenerator_StreamClosedBeforeAnyReplyIsRetried(t *testing.T) {
	llm := &streamingFakeLLM{attempts: [][]interfaces.StreamChunk{
		{},
		{
			{Type: interfaces.StreamChunkDelta, Delta: "hello"},
			{Type: interfaces.StreamChunkDone, TokensUsed: 3, FinishReason: "stop"},
		},
	}}
	generator := newTestGenerator(llm)

	out := generator.ExecuteStream(context.Background(), generatorInput(), func(delta string) {})

	require.True(t, out.Success)
	assert.Equal(t, "hello", out.DataString(DataKeyReply))
	assert.Equal(t, 2, llm.streamCalls)
}

func TestConversationGenerator_StreamAlwaysClosedEarlyExhaustsRetries(t *testing.T) {
	llm := &streamingFakeLLM{attempts: [][]interfaces.StreamChunk{{}}}
	generator := newTestGenerator(llm)

	out := generator.ExecuteStream(context.Background(), generatorInput(), func(delta string) {})

	require.False(t, out.Success)
	assert.Equal(t, interfaces.ErrorKindProviderTransient, out.Error.Kind)
	assert.Equal(t, 3, llm.streamCalls)
}

func TestConversationGenerator_StreamNeverRetriesAfterPartialReply(t *testing.T) {
	llm := &streamingFakeLLM{attempts: [][]interfaces.StreamChunk{{
		{Type: interfaces.StreamChunkDelta, Delta: "partial "},
		{Type: interfaces.StreamChunkError, Err: transientErr("connection reset")},
	}}}
	generator := newTestGenerator(llm)

	out := generator.ExecuteStream(context.Background(), generatorInput(), func(delta string) {})

	require.False(t, out.Success)
	assert.Equal(t, interfaces.ErrorKindProviderFatal, out.Error.Kind,
		"a retry would duplicate fragments already shown to the user")
	assert.Equal(t, 1, llm.streamCalls)
}
