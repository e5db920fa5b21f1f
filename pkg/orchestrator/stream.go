package orchestrator

import (
	"context"

	"github.com/evermind-ai/evermind/pkg/interfaces"
)

// StreamEventType identifies the kind of a turn stream event.
type StreamEventType string

const (
	// StreamEventMetadata opens the stream with turn context (memories
	// used, stage plan so far).
	StreamEventMetadata StreamEventType = "metadata"
	// StreamEventContent carries one incremental reply-text fragment.
	StreamEventContent StreamEventType = "content"
	// StreamEventComplete closes a successful stream with the aggregated
	// result.
	StreamEventComplete StreamEventType = "complete"
	// StreamEventError closes a failed stream with the error result.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one element of a streaming turn, mirroring the
// non-streaming contract: zero or more content fragments between a metadata
// event and a terminal complete or error event.
type StreamEvent struct {
	Type StreamEventType

	// Delta is the reply-text fragment for content events.
	Delta string

	// Result carries the aggregated outcome on complete and error events.
	Result *OrchestrationResult
}

// ProcessTurnStream runs one turn like ProcessTurn while emitting reply
// fragments as they are generated. The channel is closed after the terminal
// event. Post-generation stages (extraction, analysis) still run before the
// terminal event so their counts appear in the result.
func (c *Coordinator) ProcessTurnStream(ctx context.Context, input *interfaces.AgentInput, options ...ProcessOption) <-chan StreamEvent {
	out := make(chan StreamEvent, 16)

	go func() {
		defer close(out)

		out <- StreamEvent{Type: StreamEventMetadata}

		emit := func(delta string) {
			select {
			case out <- StreamEvent{Type: StreamEventContent, Delta: delta}:
			case <-ctx.Done():
			}
		}

		result := c.process(ctx, input, emit, options...)
		if result.Success {
			out <- StreamEvent{Type: StreamEventComplete, Result: result}
		} else {
			out <- StreamEvent{Type: StreamEventError, Result: result}
		}
	}()

	return out
}
