package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAIClient implements interfaces.StreamingLLM using the OpenAI API.
type OpenAIClient struct {
	client  openai.Client
	model   string
	logger  logging.Logger
	builder *messageBuilder
}

// Option represents an option for configuring the OpenAI client.
type Option func(*OpenAIClient)

// WithModel sets the default model for the client.
func WithModel(model string) Option {
	return func(c *OpenAIClient) {
		c.model = model
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger logging.Logger) Option {
	return func(c *OpenAIClient) {
		c.logger = logger
	}
}

// NewClient creates a new OpenAI client.
func NewClient(apiKey string, options ...Option) *OpenAIClient {
	c := &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  DefaultModel,
		logger: logging.New(),
	}

	for _, option := range options {
		option(c)
	}

	c.builder = newMessageBuilder(c.logger)
	return c
}

// Name implements interfaces.LLM.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// GetModel returns the default model of the client.
func (c *OpenAIClient) GetModel() string {
	return c.model
}

// Complete implements interfaces.LLM.
func (c *OpenAIClient) Complete(ctx context.Context, messages []interfaces.Message, options ...interfaces.CompleteOption) (*interfaces.Completion, error) {
	params := c.buildParams(messages, options...)

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		classified := classifyError(err)
		c.logger.Error(ctx, "OpenAI completion failed", map[string]interface{}{
			"model": params.Model,
			"kind":  interfaces.KindOf(classified),
			"error": err.Error(),
		})
		return nil, classified
	}

	if len(resp.Choices) == 0 {
		return nil, interfaces.NewAgentError("", interfaces.ErrorKindProviderFatal, "no choices returned from OpenAI", nil)
	}

	completion := &interfaces.Completion{
		Text:         resp.Choices[0].Message.Content,
		TokensUsed:   int(resp.Usage.TotalTokens),
		FinishReason: string(resp.Choices[0].FinishReason),
	}

	c.logger.Debug(ctx, "OpenAI completion succeeded", map[string]interface{}{
		"model":         params.Model,
		"tokens_used":   completion.TokensUsed,
		"finish_reason": completion.FinishReason,
	})

	return completion, nil
}

// CompleteStream implements interfaces.StreamingLLM. The returned channel is
// closed after a terminating Done or Error chunk.
func (c *OpenAIClient) CompleteStream(ctx context.Context, messages []interfaces.Message, options ...interfaces.CompleteOption) (<-chan interfaces.StreamChunk, error) {
	params := c.buildParams(messages, options...)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)

	out := make(chan interfaces.StreamChunk, 16)
	go func() {
		defer close(out)

		acc := openai.ChatCompletionAccumulator{}
		finishReason := ""

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				select {
				case out <- interfaces.StreamChunk{Type: interfaces.StreamChunkDelta, Delta: delta}:
				case <-ctx.Done():
					return
				}
			}
			if fr := chunk.Choices[0].FinishReason; fr != "" {
				finishReason = fr
			}
		}

		if err := stream.Err(); err != nil {
			out <- interfaces.StreamChunk{Type: interfaces.StreamChunkError, Err: classifyError(err)}
			return
		}

		out <- interfaces.StreamChunk{
			Type:         interfaces.StreamChunkDone,
			TokensUsed:   int(acc.Usage.TotalTokens),
			FinishReason: finishReason,
		}
	}()

	return out, nil
}

func (c *OpenAIClient) buildParams(messages []interfaces.Message, options ...interfaces.CompleteOption) openai.ChatCompletionNewParams {
	opts := interfaces.ApplyCompleteOptions(options...)

	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    c.builder.build(messages, opts.System),
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}

	return params
}

var _ interfaces.StreamingLLM = (*OpenAIClient)(nil)

// String implements fmt.Stringer for log output.
func (c *OpenAIClient) String() string {
	return fmt.Sprintf("openai(%s)", c.model)
}
