// Package orchestrator implements the multi-agent conversation coordinator:
// given one user turn it selects the required stages for the active privacy
// mode, executes them in dependency order under a token budget, tolerates
// partial failures, and aggregates stage outputs into one result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/evermind-ai/evermind/pkg/agents"
	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

// turnState labels the coordinator's position in the per-turn state machine.
type turnState string

const (
	stateInit         turnState = "INIT"
	statePrivacyCheck turnState = "PRIVACY_CHECK"
	stateRetrieval    turnState = "RETRIEVAL"
	stateGeneration   turnState = "GENERATION"
	stateExtraction   turnState = "EXTRACTION"
	stateAnalysis     turnState = "ANALYSIS"
	stateAggregate    turnState = "AGGREGATE"
	stateDone         turnState = "DONE"
	stateError        turnState = "ERROR"
)

// stagePlan maps each effective privacy mode onto the stages that follow the
// privacy check, in dependency order. The table is fixed at compile time;
// there is no name-indexed dispatch.
var stagePlan = map[interfaces.PrivacyMode][]interfaces.AgentName{
	interfaces.PrivacyModeNormal: {
		interfaces.AgentMemoryRetrieval,
		interfaces.AgentConversationGenerator,
		interfaces.AgentMemoryManager,
	},
	interfaces.PrivacyModeIncognito: {
		interfaces.AgentConversationGenerator,
	},
	interfaces.PrivacyModePauseMemories: {
		interfaces.AgentMemoryRetrieval,
		interfaces.AgentConversationGenerator,
	},
}

// skippable marks the stages the coordinator may omit on budget exhaustion
// or caller cancellation. The privacy guardian and the generator are never
// skipped.
var skippable = map[interfaces.AgentName]bool{
	interfaces.AgentMemoryRetrieval:     true,
	interfaces.AgentMemoryManager:       true,
	interfaces.AgentConversationAnalyst: true,
}

// RequiredStages returns the full stage sequence for a privacy mode. Stage
// selection is a pure function of (mode, analyze); identical inputs always
// yield identical orderings.
func RequiredStages(mode interfaces.PrivacyMode, analyze bool) []interfaces.AgentName {
	out := []interfaces.AgentName{interfaces.AgentPrivacyGuardian}
	out = append(out, stagePlan[mode]...)
	if analyze {
		out = append(out, interfaces.AgentConversationAnalyst)
	}
	return out
}

// Coordinator orchestrates one turn across the five stages. It is stateless
// between turns: every ProcessTurn builds a fresh budget and result, so
// concurrent sessions need no locking here.
type Coordinator struct {
	guardian  interfaces.Agent
	retrieval interfaces.Agent
	generator interfaces.Agent
	manager   interfaces.Agent
	analyst   interfaces.Agent

	// genStage is the unwrapped generator, needed for the streaming path.
	genStage *agents.ConversationGenerator

	totalBudget    int
	perAgentBudget map[interfaces.AgentName]int
	analysisEvery  int
	logger         logging.Logger

	generatorOptions []agents.GeneratorOption
	retrievalOptions []agents.MemoryRetrievalOption
	managerOptions   []agents.MemoryManagerOption
	analystOptions   []agents.AnalystOption
}

// Option represents an option for configuring the coordinator.
type Option func(*Coordinator)

// WithTokenBudget sets the per-turn total token budget (0 = unlimited).
func WithTokenBudget(total int) Option {
	return func(c *Coordinator) {
		c.totalBudget = total
	}
}

// WithPerAgentBudget sets per-stage token budgets; overruns are reported as
// warnings, never clipped.
func WithPerAgentBudget(budgets map[interfaces.AgentName]int) Option {
	return func(c *Coordinator) {
		c.perAgentBudget = budgets
	}
}

// WithAnalysisInterval runs the conversation analyst every n turns
// (0 = only on explicit request).
func WithAnalysisInterval(n int) Option {
	return func(c *Coordinator) {
		c.analysisEvery = n
	}
}

// WithLogger sets the logger for the coordinator and its stages.
func WithLogger(logger logging.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithGeneratorOptions forwards options to the conversation generator.
func WithGeneratorOptions(options ...agents.GeneratorOption) Option {
	return func(c *Coordinator) {
		c.generatorOptions = append(c.generatorOptions, options...)
	}
}

// WithRetrievalOptions forwards options to the memory retrieval stage.
func WithRetrievalOptions(options ...agents.MemoryRetrievalOption) Option {
	return func(c *Coordinator) {
		c.retrievalOptions = append(c.retrievalOptions, options...)
	}
}

// WithManagerOptions forwards options to the memory manager stage.
func WithManagerOptions(options ...agents.MemoryManagerOption) Option {
	return func(c *Coordinator) {
		c.managerOptions = append(c.managerOptions, options...)
	}
}

// WithAnalystOptions forwards options to the conversation analyst stage.
func WithAnalystOptions(options ...agents.AnalystOption) Option {
	return func(c *Coordinator) {
		c.analystOptions = append(c.analystOptions, options...)
	}
}

// New creates a coordinator wired to an LLM provider and a memory store.
// All collaborators are injected; there is no global client state.
func New(llm interfaces.LLM, store interfaces.MemoryStore, options ...Option) (*Coordinator, error) {
	if llm == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("memory store is required")
	}

	c := &Coordinator{
		totalBudget:   8192,
		analysisEvery: 10,
		logger:        logging.New(),
	}
	for _, option := range options {
		option(c)
	}

	stageLogger := c.logger

	c.genStage = agents.NewConversationGenerator(llm,
		append([]agents.GeneratorOption{agents.WithGeneratorLogger(stageLogger)}, c.generatorOptions...)...)

	c.guardian = agents.Instrument(agents.NewPrivacyGuardian(agents.WithPrivacyLogger(stageLogger)), stageLogger)
	c.retrieval = agents.Instrument(agents.NewMemoryRetrieval(store,
		append([]agents.MemoryRetrievalOption{agents.WithRetrievalLogger(stageLogger)}, c.retrievalOptions...)...), stageLogger)
	c.generator = agents.Instrument(c.genStage, stageLogger)
	c.manager = agents.Instrument(agents.NewMemoryManager(llm, store,
		append([]agents.MemoryManagerOption{agents.WithManagerLogger(stageLogger)}, c.managerOptions...)...), stageLogger)
	c.analyst = agents.Instrument(agents.NewConversationAnalyst(llm,
		append([]agents.AnalystOption{agents.WithAnalystLogger(stageLogger)}, c.analystOptions...)...), stageLogger)

	return c, nil
}

// ProcessOption adjusts the handling of a single turn.
type ProcessOption func(*processOptions)

type processOptions struct {
	forceAnalysis bool
}

// WithAnalysis requests the conversation analyst for this turn regardless
// of the configured cadence.
func WithAnalysis() ProcessOption {
	return func(o *processOptions) {
		o.forceAnalysis = true
	}
}

// ProcessTurn runs one turn through the pipeline and aggregates the stage
// outputs. The result is always non-nil; Success is false only when no
// assistant reply could be produced.
func (c *Coordinator) ProcessTurn(ctx context.Context, input *interfaces.AgentInput, options ...ProcessOption) *OrchestrationResult {
	return c.process(ctx, input, nil, options...)
}

func (c *Coordinator) process(ctx context.Context, input *interfaces.AgentInput, emit func(delta string), options ...ProcessOption) *OrchestrationResult {
	opts := processOptions{}
	for _, option := range options {
		option(&opts)
	}

	result := &OrchestrationResult{
		TokensByAgent: make(map[interfaces.AgentName]int),
		Warnings:      []string{},
	}

	state := stateInit
	if err := validateInput(input); err != nil {
		return c.fail(ctx, result, state, err)
	}

	budget := NewTokenBudget(c.totalBudget, c.perAgentBudget)
	current := input.Clone()

	// PRIVACY_CHECK: never skipped, regardless of mode or budget.
	state = statePrivacyCheck
	guardOut := c.runStage(ctx, c.guardian, current, budget, result)

	sanitized := input.Mode
	if guardOut.Success {
		if mode := interfaces.PrivacyMode(guardOut.DataString(agents.DataKeySanitizedMode)); mode.Valid() {
			sanitized = mode
		}
	} else {
		// A broken guardian defaults the turn to the most restrictive
		// behavior instead of failing it.
		sanitized = interfaces.PrivacyModeIncognito
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("privacy check failed, treating turn as incognito: %v", guardOut.Error))
	}
	current = current.WithContext(agents.ContextKeySanitizedMode, string(sanitized))

	analyze := opts.forceAnalysis || c.analysisDue(input)

	plan := stagePlan[sanitized]
	if analyze {
		plan = append(append([]interfaces.AgentName{}, plan...), interfaces.AgentConversationAnalyst)
	}

	generated := false
	for _, name := range plan {
		// Caller cancellation stops further stages; already-persisted
		// memory writes are append-only and need no rollback.
		if ctx.Err() != nil && skippable[name] {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s skipped: turn cancelled", name))
			continue
		}

		if skippable[name] && budget.Exhausted() {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s skipped: token budget exhausted (%d/%d)", name, budget.Consumed(), budget.TotalBudget))
			continue
		}

		switch name {
		case interfaces.AgentMemoryRetrieval:
			state = stateRetrieval
			out := c.runStage(ctx, c.retrieval, current, budget, result)
			if out.Success {
				result.MemoriesUsed = out.DataInt(agents.DataKeyCount)
				current = current.WithContext(agents.ContextKeyMemoryContext, out.DataString(agents.DataKeyMemoryContext))
			} else {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("memory retrieval failed: %v", out.Error))
			}

		case interfaces.AgentConversationGenerator:
			state = stateGeneration
			var out *interfaces.AgentOutput
			if emit != nil {
				out = agents.ExecuteStreamGuarded(ctx, c.genStage, current, emit, c.logger)
				c.recordStage(out, interfaces.AgentConversationGenerator, budget, result)
			} else {
				out = c.runStage(ctx, c.generator, current, budget, result)
			}
			if !out.Success {
				// No reply exists to show the user; this is the one fatal
				// stage.
				return c.fail(ctx, result, state, out.Error)
			}
			result.Reply = out.DataString(agents.DataKeyReply)
			current = current.WithContext(agents.ContextKeyReply, result.Reply)
			generated = true

		case interfaces.AgentMemoryManager:
			state = stateExtraction
			out := c.runStage(ctx, c.manager, current, budget, result)
			if out.Success {
				result.MemoriesExtracted = out.DataInt(agents.DataKeyCount)
			} else {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("memory extraction failed: %v", out.Error))
			}

		case interfaces.AgentConversationAnalyst:
			state = stateAnalysis
			out := c.runStage(ctx, c.analyst, current, budget, result)
			if out.Success {
				if analysis, ok := out.Data[agents.DataKeyAnalysis].(*agents.ConversationAnalysis); ok {
					result.Analysis = analysis
				}
			} else {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("conversation analysis failed: %v", out.Error))
			}
		}
	}

	if !generated {
		return c.fail(ctx, result, state, interfaces.NewAgentError(
			interfaces.AgentConversationGenerator, interfaces.ErrorKindUnhandled,
			"turn ended without a generated reply", ctx.Err()))
	}

	state = stateAggregate
	result.Success = true
	state = stateDone

	c.logger.Info(ctx, "Turn completed", map[string]interface{}{
		"session_id":         input.SessionID,
		"state":              string(state),
		"mode":               string(sanitized),
		"agents_executed":    len(result.AgentsExecuted),
		"memories_used":      result.MemoriesUsed,
		"memories_extracted": result.MemoriesExtracted,
		"tokens_consumed":    budget.Consumed(),
		"warnings":           len(result.Warnings),
	})

	return result
}

// runStage executes one instrumented stage and does the shared bookkeeping:
// execution order, per-stage tokens, budget accounting and warnings.
func (c *Coordinator) runStage(ctx context.Context, agent interfaces.Agent, input *interfaces.AgentInput, budget *TokenBudget, result *OrchestrationResult) *interfaces.AgentOutput {
	out := agent.Execute(ctx, input)
	c.recordStage(out, agent.Name(), budget, result)
	return out
}

func (c *Coordinator) recordStage(out *interfaces.AgentOutput, name interfaces.AgentName, budget *TokenBudget, result *OrchestrationResult) {
	result.AgentsExecuted = append(result.AgentsExecuted, name)
	result.TokensByAgent[name] = out.TokensUsed

	agentOver, totalOver := budget.Record(name, out.TokensUsed)
	if agentOver {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s exceeded its token budget (%d)", name, c.perAgentBudget[name]))
	}
	if totalOver {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("turn token budget exceeded (%d/%d)", budget.Consumed(), budget.TotalBudget))
	}

	if out.Success {
		result.Warnings = append(result.Warnings, stageWarnings(out)...)
	}
}

// stageWarnings pulls advisory warnings out of a successful stage payload.
func stageWarnings(out *interfaces.AgentOutput) []string {
	if out.Data == nil {
		return nil
	}
	warnings, _ := out.Data[agents.DataKeyWarnings].([]string)
	return warnings
}

// analysisDue applies the periodic cadence: every analysisEvery completed
// turns, derived from the history length so the decision stays a pure
// function of the input.
func (c *Coordinator) analysisDue(input *interfaces.AgentInput) bool {
	if c.analysisEvery <= 0 {
		return false
	}
	turnNumber := len(input.History)/2 + 1
	return turnNumber%c.analysisEvery == 0
}

func (c *Coordinator) fail(ctx context.Context, result *OrchestrationResult, state turnState, err error) *OrchestrationResult {
	result.Success = false
	result.Reply = ""

	var agentErr *interfaces.AgentError
	if !errors.As(err, &agentErr) {
		agentErr = interfaces.NewAgentError("", interfaces.KindOf(err), err.Error(), err)
	}
	result.Error = agentErr

	c.logger.Error(ctx, "Turn failed", map[string]interface{}{
		"state": string(state),
		"kind":  string(agentErr.Kind),
		"error": agentErr.Error(),
	})

	return result
}

// validateInput rejects malformed turns before any stage runs.
func validateInput(input *interfaces.AgentInput) error {
	if input == nil {
		return interfaces.NewAgentError("", interfaces.ErrorKindValidation, "input is required", nil)
	}
	if input.SessionID == "" {
		return interfaces.NewAgentError("", interfaces.ErrorKindValidation, "session ID is required", nil)
	}
	if input.Message == "" {
		return interfaces.NewAgentError("", interfaces.ErrorKindValidation, "message is required", nil)
	}
	if !input.Mode.Valid() {
		return interfaces.NewAgentError("", interfaces.ErrorKindValidation,
			fmt.Sprintf("unknown privacy mode %q", input.Mode), nil)
	}
	return nil
}
