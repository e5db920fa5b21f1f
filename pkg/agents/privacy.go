package agents

import (
	"context"
	"fmt"
	"regexp"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

// sensitivePattern is one content class the guardian screens for.
type sensitivePattern struct {
	name    string
	pattern *regexp.Regexp

	// downgrade marks classes that must never reach long-term memory; a
	// match downgrades a normal turn to pause_memories.
	downgrade bool
}

var sensitivePatterns = []sensitivePattern{
	{name: "credit card number", pattern: regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`), downgrade: true},
	{name: "social security number", pattern: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), downgrade: true},
	{name: "api key", pattern: regexp.MustCompile(`\b(?:sk|pk|api|key)[-_][A-Za-z0-9_-]{16,}\b`), downgrade: true},
	{name: "email address", pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{name: "phone number", pattern: regexp.MustCompile(`\b\+?\d{1,3}[ -]?\(?\d{3}\)?[ -]?\d{3}[ -]?\d{4}\b`)},
}

// PrivacyGuardian screens the raw message and decides the effective privacy
// mode for the rest of the turn. It always runs first and is never skipped;
// even incognito turns are screened so the UI can surface warnings.
type PrivacyGuardian struct {
	logger logging.Logger
}

// PrivacyGuardianOption represents an option for configuring the guardian.
type PrivacyGuardianOption func(*PrivacyGuardian)

// WithPrivacyLogger sets the logger for the guardian.
func WithPrivacyLogger(logger logging.Logger) PrivacyGuardianOption {
	return func(g *PrivacyGuardian) {
		g.logger = logger
	}
}

// NewPrivacyGuardian creates the privacy guardian stage.
func NewPrivacyGuardian(options ...PrivacyGuardianOption) *PrivacyGuardian {
	g := &PrivacyGuardian{logger: logging.New()}
	for _, option := range options {
		option(g)
	}
	return g
}

// Name implements interfaces.Agent.
func (g *PrivacyGuardian) Name() interfaces.AgentName {
	return interfaces.AgentPrivacyGuardian
}

// Execute implements interfaces.Agent. The payload carries allowed,
// warnings, and the sanitized mode downstream stages must honor.
func (g *PrivacyGuardian) Execute(ctx context.Context, input *interfaces.AgentInput) *interfaces.AgentOutput {
	if !input.Mode.Valid() {
		return failureOutput(g.Name(), interfaces.ErrorKindValidation,
			fmt.Sprintf("unknown privacy mode %q", input.Mode), nil)
	}

	warnings := []string{}
	sanitized := input.Mode

	for _, sp := range sensitivePatterns {
		if !sp.pattern.MatchString(input.Message) {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("message appears to contain a %s", sp.name))

		// Payment and credential material never gets persisted, whatever
		// the requested mode.
		if sp.downgrade && sanitized == interfaces.PrivacyModeNormal {
			sanitized = interfaces.PrivacyModePauseMemories
			warnings = append(warnings, "memory extraction paused for this turn due to sensitive content")
		}
	}

	if len(warnings) > 0 {
		g.logger.Info(ctx, "Privacy screening flagged content", map[string]interface{}{
			"session_id":     input.SessionID,
			"requested_mode": string(input.Mode),
			"sanitized_mode": string(sanitized),
			"warnings":       len(warnings),
		})
	}

	return successOutput(map[string]interface{}{
		DataKeyAllowed:       true,
		DataKeyWarnings:      warnings,
		DataKeySanitizedMode: string(sanitized),
	}, 0)
}

var _ interfaces.Agent = (*PrivacyGuardian)(nil)
