package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = string(anthropic.ModelClaudeSonnet4_0)

// defaultMaxTokens applies when the caller sets no cap; the Anthropic API
// requires an explicit max_tokens on every request.
const defaultMaxTokens = 1024

// AnthropicClient implements interfaces.StreamingLLM using the Anthropic API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
	logger logging.Logger
}

// Option represents an option for configuring the Anthropic client.
type Option func(*AnthropicClient)

// WithModel sets the default model for the client.
func WithModel(model string) Option {
	return func(c *AnthropicClient) {
		c.model = model
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger logging.Logger) Option {
	return func(c *AnthropicClient) {
		c.logger = logger
	}
}

// NewClient creates a new Anthropic client.
func NewClient(apiKey string, options ...Option) *AnthropicClient {
	c := &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  DefaultModel,
		logger: logging.New(),
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Name implements interfaces.LLM.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// GetModel returns the default model of the client.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// Complete implements interfaces.LLM.
func (c *AnthropicClient) Complete(ctx context.Context, messages []interfaces.Message, options ...interfaces.CompleteOption) (*interfaces.Completion, error) {
	params := c.buildParams(messages, options...)

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		classified := classifyError(err)
		c.logger.Error(ctx, "Anthropic completion failed", map[string]interface{}{
			"model": params.Model,
			"kind":  interfaces.KindOf(classified),
			"error": err.Error(),
		})
		return nil, classified
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	completion := &interfaces.Completion{
		Text:         text,
		TokensUsed:   int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		FinishReason: string(resp.StopReason),
	}

	c.logger.Debug(ctx, "Anthropic completion succeeded", map[string]interface{}{
		"model":         params.Model,
		"tokens_used":   completion.TokensUsed,
		"finish_reason": completion.FinishReason,
	})

	return completion, nil
}

// CompleteStream implements interfaces.StreamingLLM.
func (c *AnthropicClient) CompleteStream(ctx context.Context, messages []interfaces.Message, options ...interfaces.CompleteOption) (<-chan interfaces.StreamChunk, error) {
	params := c.buildParams(messages, options...)

	out := make(chan interfaces.StreamChunk, 16)
	go func() {
		defer close(out)

		stream := c.client.Messages.NewStreaming(ctx, params)
		defer stream.Close() //nolint:errcheck

		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				c.logger.Warn(ctx, "Failed to accumulate stream event", map[string]interface{}{
					"error": err.Error(),
				})
			}

			switch evt := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := evt.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					select {
					case out <- interfaces.StreamChunk{Type: interfaces.StreamChunkDelta, Delta: delta.Text}:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			out <- interfaces.StreamChunk{Type: interfaces.StreamChunkError, Err: classifyError(err)}
			return
		}

		out <- interfaces.StreamChunk{
			Type:         interfaces.StreamChunkDone,
			TokensUsed:   int(message.Usage.InputTokens + message.Usage.OutputTokens),
			FinishReason: string(message.StopReason),
		}
	}()

	return out, nil
}

func (c *AnthropicClient) buildParams(messages []interfaces.Message, options ...interfaces.CompleteOption) anthropic.MessageNewParams {
	opts := interfaces.ApplyCompleteOptions(options...)

	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    convertMessages(messages),
		Temperature: anthropic.Float(opts.Temperature),
	}
	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.System}}
	}

	return params
}

// convertMessages maps conversation messages onto Anthropic message params.
// System messages are skipped; Anthropic carries the system prompt as a
// top-level request field.
func convertMessages(messages []interfaces.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case interfaces.MessageRoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case interfaces.MessageRoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return out
}

var _ interfaces.StreamingLLM = (*AnthropicClient)(nil)
