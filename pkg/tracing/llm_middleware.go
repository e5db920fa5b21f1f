// Package tracing provides OpenTelemetry instrumentation for LLM calls. The
// middleware wraps any interfaces.LLM, so providers stay unaware of tracing.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/evermind-ai/evermind/pkg/interfaces"
)

const tracerName = "github.com/evermind-ai/evermind/pkg/tracing"

// LLMMiddleware decorates an LLM provider with OpenTelemetry spans around
// every completion call.
type LLMMiddleware struct {
	llm    interfaces.LLM
	tracer trace.Tracer
}

// NewLLMMiddleware wraps an LLM provider with tracing.
func NewLLMMiddleware(llm interfaces.LLM) *LLMMiddleware {
	return &LLMMiddleware{
		llm:    llm,
		tracer: otel.Tracer(tracerName),
	}
}

// Name implements interfaces.LLM.
func (m *LLMMiddleware) Name() string {
	return m.llm.Name()
}

// Complete implements interfaces.LLM.
func (m *LLMMiddleware) Complete(ctx context.Context, messages []interfaces.Message, options ...interfaces.CompleteOption) (*interfaces.Completion, error) {
	ctx, span := m.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", m.llm.Name()),
		attribute.Int("llm.messages", len(messages)),
	))
	defer span.End()

	completion, err := m.llm.Complete(ctx, messages, options...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(interfaces.KindOf(err)))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens_used", completion.TokensUsed),
		attribute.String("llm.finish_reason", completion.FinishReason),
	)
	return completion, nil
}

// CompleteStream implements interfaces.StreamingLLM when the wrapped
// provider supports it. The span covers the whole stream lifetime.
func (m *LLMMiddleware) CompleteStream(ctx context.Context, messages []interfaces.Message, options ...interfaces.CompleteOption) (<-chan interfaces.StreamChunk, error) {
	streamer, ok := m.llm.(interfaces.StreamingLLM)
	if !ok {
		return nil, interfaces.NewAgentError("", interfaces.ErrorKindProviderFatal,
			"underlying LLM does not support streaming", nil)
	}

	ctx, span := m.tracer.Start(ctx, "llm.complete_stream", trace.WithAttributes(
		attribute.String("llm.provider", m.llm.Name()),
		attribute.Int("llm.messages", len(messages)),
	))

	chunks, err := streamer.CompleteStream(ctx, messages, options...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(interfaces.KindOf(err)))
		span.End()
		return nil, err
	}

	traced := make(chan interfaces.StreamChunk, 16)
	go func() {
		defer close(traced)
		defer span.End()

		for chunk := range chunks {
			switch chunk.Type {
			case interfaces.StreamChunkDone:
				span.SetAttributes(
					attribute.Int("llm.tokens_used", chunk.TokensUsed),
					attribute.String("llm.finish_reason", chunk.FinishReason),
				)
			case interfaces.StreamChunkError:
				if chunk.Err != nil {
					span.RecordError(chunk.Err)
					span.SetStatus(codes.Error, string(interfaces.KindOf(chunk.Err)))
				}
			}

			select {
			case traced <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return traced, nil
}

var _ interfaces.StreamingLLM = (*LLMMiddleware)(nil)
