package openai

import (
	"context"

	"github.com/openai/openai-go/v2"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

// messageBuilder converts conversation messages into OpenAI chat params,
// preserving chronological order.
type messageBuilder struct {
	logger logging.Logger
}

func newMessageBuilder(logger logging.Logger) *messageBuilder {
	return &messageBuilder{logger: logger}
}

// build constructs the OpenAI message sequence. The system message, when
// present, always comes first regardless of the input order.
func (b *messageBuilder) build(messages []interfaces.Message, system string) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)

	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}

	for _, msg := range messages {
		converted := b.convert(msg)
		if converted != nil {
			out = append(out, *converted)
		}
	}

	return out
}

func (b *messageBuilder) convert(msg interfaces.Message) *openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case interfaces.MessageRoleUser:
		m := openai.UserMessage(msg.Content)
		return &m
	case interfaces.MessageRoleAssistant:
		m := openai.AssistantMessage(msg.Content)
		return &m
	case interfaces.MessageRoleSystem:
		m := openai.SystemMessage(msg.Content)
		return &m
	default:
		b.logger.Warn(context.Background(), "Skipping message with unknown role", map[string]interface{}{
			"role": string(msg.Role),
		})
		return nil
	}
}
