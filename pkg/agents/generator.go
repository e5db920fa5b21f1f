package agents

import (
	"context"
	"strings"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
	"github.com/evermind-ai/evermind/pkg/retry"
)

const baseSystemPrompt = `You are Evermind, a personal assistant with long-term memory.
Answer the user's message directly and concisely. When remembered facts about
the user are provided below, use them naturally; never claim to remember
things that are not listed.`

// GeneratorConfig holds generation parameters for the conversation stage.
type GeneratorConfig struct {
	Temperature float64
	MaxTokens   int
	// HistoryLimit caps how many prior turns are sent to the provider
	// (0 = all).
	HistoryLimit int
	Retry        retry.Policy
}

// DefaultGeneratorConfig returns the generation parameters used when none
// are configured.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Temperature:  0.7,
		MaxTokens:    1024,
		HistoryLimit: 20,
		Retry:        retry.DefaultPolicy(),
	}
}

// ConversationGenerator produces the assistant reply. It always runs and is
// the only stage whose failure is fatal to the turn: without a reply there
// is nothing to return. Transient provider failures are retried with
// exponential backoff; fatal ones are not.
type ConversationGenerator struct {
	llm    interfaces.LLM
	config GeneratorConfig
	logger logging.Logger
}

// GeneratorOption represents an option for configuring the stage.
type GeneratorOption func(*ConversationGenerator)

// WithGeneratorConfig sets the generation parameters.
func WithGeneratorConfig(config GeneratorConfig) GeneratorOption {
	return func(g *ConversationGenerator) {
		g.config = config
	}
}

// WithGeneratorLogger sets the logger for the stage.
func WithGeneratorLogger(logger logging.Logger) GeneratorOption {
	return func(g *ConversationGenerator) {
		g.logger = logger
	}
}

// NewConversationGenerator creates the conversation generator stage.
func NewConversationGenerator(llm interfaces.LLM, options ...GeneratorOption) *ConversationGenerator {
	g := &ConversationGenerator{
		llm:    llm,
		config: DefaultGeneratorConfig(),
		logger: logging.New(),
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// Name implements interfaces.Agent.
func (g *ConversationGenerator) Name() interfaces.AgentName {
	return interfaces.AgentConversationGenerator
}

// Execute implements interfaces.Agent.
func (g *ConversationGenerator) Execute(ctx context.Context, input *interfaces.AgentInput) *interfaces.AgentOutput {
	messages, options := g.buildRequest(input)

	var completion *interfaces.Completion
	err := retry.Do(ctx, g.config.Retry, func(ctx context.Context) error {
		var callErr error
		completion, callErr = g.llm.Complete(ctx, messages, options...)
		if callErr != nil {
			g.logger.Warn(ctx, "Completion attempt failed", map[string]interface{}{
				"session_id": input.SessionID,
				"provider":   g.llm.Name(),
				"kind":       string(interfaces.KindOf(callErr)),
				"error":      callErr.Error(),
			})
		}
		return callErr
	})
	if err != nil {
		return failureFromError(g.Name(), "completion failed after retries", err)
	}

	return successOutput(map[string]interface{}{
		DataKeyReply:        completion.Text,
		DataKeyFinishReason: completion.FinishReason,
	}, completion.TokensUsed)
}

// ExecuteStream generates the reply while emitting incremental text
// fragments through emit. The returned output mirrors Execute: the full
// reply, token usage and finish reason, or a failure when no reply could be
// produced. Retries only apply while nothing has been emitted yet; once the
// first fragment reached the caller the stream is committed.
func (g *ConversationGenerator) ExecuteStream(ctx context.Context, input *interfaces.AgentInput, emit func(delta string)) *interfaces.AgentOutput {
	streamer, ok := g.llm.(interfaces.StreamingLLM)
	if !ok {
		out := g.Execute(ctx, input)
		if out.Success {
			emit(out.DataString(DataKeyReply))
		}
		return out
	}

	messages, options := g.buildRequest(input)

	var reply strings.Builder
	var tokensUsed int
	var finishReason string
	emitted := false

	err := retry.Do(ctx, g.config.Retry, func(ctx context.Context) error {
		chunks, err := streamer.CompleteStream(ctx, messages, options...)
		if err != nil {
			return err
		}

		terminal := false
		for chunk := range chunks {
			switch chunk.Type {
			case interfaces.StreamChunkDelta:
				emitted = true
				reply.WriteString(chunk.Delta)
				emit(chunk.Delta)
			case interfaces.StreamChunkDone:
				terminal = true
				tokensUsed = chunk.TokensUsed
				finishReason = chunk.FinishReason
			case interfaces.StreamChunkError:
				if emitted {
					// Fragments already reached the user; retrying would
					// duplicate them.
					return interfaces.NewAgentError(g.Name(), interfaces.ErrorKindProviderFatal,
						"stream failed after partial reply", chunk.Err)
				}
				return chunk.Err
			}
		}
		if !terminal {
			// The producer closed without its Done or Error chunk, which
			// happens when it bails out on caller cancellation mid-send. A
			// truncated reply must never aggregate as a successful turn.
			if emitted {
				return interfaces.NewAgentError(g.Name(), interfaces.ErrorKindProviderFatal,
					"stream closed without completing after partial reply", ctx.Err())
			}
			return interfaces.NewAgentError(g.Name(), interfaces.ErrorKindProviderTransient,
				"stream closed without completing", ctx.Err())
		}
		return nil
	})
	if err != nil {
		return failureFromError(g.Name(), "streaming completion failed", err)
	}

	return successOutput(map[string]interface{}{
		DataKeyReply:        reply.String(),
		DataKeyFinishReason: finishReason,
	}, tokensUsed)
}

// buildRequest assembles the message sequence and options for one turn: the
// system instruction (with the memory block when present), the bounded
// history, then the new user message.
func (g *ConversationGenerator) buildRequest(input *interfaces.AgentInput) ([]interfaces.Message, []interfaces.CompleteOption) {
	system := baseSystemPrompt
	if memoryContext := input.ContextString(ContextKeyMemoryContext); memoryContext != "" {
		system = system + "\n\n" + memoryContext
	}

	history := input.History
	if g.config.HistoryLimit > 0 && len(history) > g.config.HistoryLimit {
		history = history[len(history)-g.config.HistoryLimit:]
	}

	messages := make([]interfaces.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, interfaces.Message{
		Role:    interfaces.MessageRoleUser,
		Content: input.Message,
	})

	options := []interfaces.CompleteOption{
		interfaces.WithSystemMessage(system),
		interfaces.WithTemperature(g.config.Temperature),
		interfaces.WithMaxTokens(g.config.MaxTokens),
	}

	return messages, options
}

var _ interfaces.Agent = (*ConversationGenerator)(nil)
