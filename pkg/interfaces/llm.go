package interfaces

import "context"

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	// MessageRoleUser represents a user message
	MessageRoleUser MessageRole = "user"
	// MessageRoleAssistant represents an assistant message
	MessageRoleAssistant MessageRole = "assistant"
	// MessageRoleSystem represents a system message
	MessageRoleSystem MessageRole = "system"
)

// Message represents a message in a conversation.
type Message struct {
	// Role is the role of the message sender
	Role MessageRole

	// Content is the content of the message
	Content string

	// Metadata contains additional information about the message
	Metadata map[string]interface{}
}

// Completion is the result of a non-streaming completion call.
type Completion struct {
	// Text is the generated assistant reply.
	Text string

	// TokensUsed is the total token consumption reported by the provider.
	TokensUsed int

	// FinishReason is the provider's stop reason (e.g., "stop", "length").
	FinishReason string
}

// StreamChunkType identifies the kind of a streaming chunk.
type StreamChunkType string

const (
	// StreamChunkDelta carries an incremental reply-text fragment.
	StreamChunkDelta StreamChunkType = "delta"
	// StreamChunkDone is the final marker carrying usage and finish reason.
	StreamChunkDone StreamChunkType = "done"
	// StreamChunkError terminates the stream with a failure.
	StreamChunkError StreamChunkType = "error"
)

// StreamChunk is one element of a streaming completion. A stream is
// terminated by exactly one Done or Error chunk.
type StreamChunk struct {
	Type         StreamChunkType
	Delta        string
	TokensUsed   int
	FinishReason string
	Err          error
}

// LLM represents a large language model completion provider.
type LLM interface {
	// Complete generates an assistant reply for the given message sequence.
	Complete(ctx context.Context, messages []Message, options ...CompleteOption) (*Completion, error)

	// Name returns the name of the LLM provider.
	Name() string
}

// StreamingLLM is an LLM that can also stream incremental reply fragments.
type StreamingLLM interface {
	LLM

	// CompleteStream generates a reply as a sequence of chunks. The channel
	// is closed after the terminating Done or Error chunk.
	CompleteStream(ctx context.Context, messages []Message, options ...CompleteOption) (<-chan StreamChunk, error)
}

// CompleteOption represents options for a completion call.
type CompleteOption func(*CompleteOptions)

// CompleteOptions contains configuration for a completion call.
type CompleteOptions struct {
	Model       string  // Model overrides the client's default model
	Temperature float64 // Temperature for the generation
	MaxTokens   int     // MaxTokens caps the generated tokens (0 = provider default)
	System      string  // System message prepended to the conversation
}

// ApplyCompleteOptions folds option closures into a CompleteOptions value.
func ApplyCompleteOptions(options ...CompleteOption) CompleteOptions {
	opts := CompleteOptions{Temperature: 0.7}
	for _, option := range options {
		option(&opts)
	}
	return opts
}

// WithModel creates a CompleteOption to override the model.
func WithModel(model string) CompleteOption {
	return func(o *CompleteOptions) {
		o.Model = model
	}
}

// WithTemperature creates a CompleteOption to set the temperature.
func WithTemperature(temperature float64) CompleteOption {
	return func(o *CompleteOptions) {
		o.Temperature = temperature
	}
}

// WithMaxTokens creates a CompleteOption to cap the generated tokens.
func WithMaxTokens(maxTokens int) CompleteOption {
	return func(o *CompleteOptions) {
		o.MaxTokens = maxTokens
	}
}

// WithSystemMessage creates a CompleteOption to set the system message.
func WithSystemMessage(system string) CompleteOption {
	return func(o *CompleteOptions) {
		o.System = system
	}
}
