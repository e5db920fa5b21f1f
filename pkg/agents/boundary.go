package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

// instrumented wraps a stage with the agent-contract boundary: it records
// wall-clock duration and converts panics into UnhandledError outputs. This
// is the only place broad recovery is allowed; stage bodies report expected
// failures through AgentOutput.Success.
type instrumented struct {
	inner  interfaces.Agent
	logger logging.Logger
}

// Instrument wraps an agent with the timing and recovery boundary. The
// coordinator only ever executes instrumented agents.
func Instrument(agent interfaces.Agent, logger logging.Logger) interfaces.Agent {
	if logger == nil {
		logger = logging.New()
	}
	return &instrumented{inner: agent, logger: logger}
}

// Name implements interfaces.Agent.
func (a *instrumented) Name() interfaces.AgentName {
	return a.inner.Name()
}

// Execute implements interfaces.Agent.
func (a *instrumented) Execute(ctx context.Context, input *interfaces.AgentInput) (out *interfaces.AgentOutput) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error(ctx, "Stage panicked", map[string]interface{}{
				"agent":      string(a.inner.Name()),
				"session_id": input.SessionID,
				"panic":      fmt.Sprintf("%v", r),
			})
			out = failureOutput(a.inner.Name(), interfaces.ErrorKindUnhandled,
				fmt.Sprintf("stage panicked: %v", r), nil)
		}
		out.ExecutionTime = time.Since(start)
	}()

	out = a.inner.Execute(ctx, input)
	if out == nil {
		out = failureOutput(a.inner.Name(), interfaces.ErrorKindUnhandled, "stage returned no output", nil)
	}

	a.logger.Debug(ctx, "Stage executed", map[string]interface{}{
		"agent":       string(a.inner.Name()),
		"session_id":  input.SessionID,
		"success":     out.Success,
		"tokens_used": out.TokensUsed,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return out
}

// ExecuteStreamGuarded runs the generator's streaming path behind the same
// timing and recovery boundary Instrument applies to Execute.
func ExecuteStreamGuarded(ctx context.Context, generator *ConversationGenerator, input *interfaces.AgentInput, emit func(delta string), logger logging.Logger) (out *interfaces.AgentOutput) {
	if logger == nil {
		logger = logging.New()
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "Stage panicked", map[string]interface{}{
				"agent":      string(generator.Name()),
				"session_id": input.SessionID,
				"panic":      fmt.Sprintf("%v", r),
			})
			out = failureOutput(generator.Name(), interfaces.ErrorKindUnhandled,
				fmt.Sprintf("stage panicked: %v", r), nil)
		}
		out.ExecutionTime = time.Since(start)
	}()

	out = generator.ExecuteStream(ctx, input, emit)
	if out == nil {
		out = failureOutput(generator.Name(), interfaces.ErrorKindUnhandled, "stage returned no output", nil)
	}
	return out
}
