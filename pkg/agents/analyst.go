package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

const analysisSystemPrompt = `You analyze a conversation between a user and an assistant.
Return JSON: {"sentiment": "positive"|"neutral"|"negative", "topics": {topic: weight 0-1},
"engagement": number 0-1, "recommendations": [string]}.
Topics are short noun phrases. Recommendations suggest memory profiles or
conversation directions that would fit this user. Return only JSON.`

// ConversationAnalysis is the analyst's payload: UI-facing insight into the
// accumulated conversation, never required for the reply.
type ConversationAnalysis struct {
	Sentiment       string             `json:"sentiment"`
	Topics          map[string]float64 `json:"topics"`
	Engagement      float64            `json:"engagement"`
	Recommendations []string           `json:"recommendations"`
}

// ConversationAnalyst produces sentiment, topic distribution, engagement
// and profile-fit recommendations from the conversation history. It is
// triggered periodically or on explicit request, and its failure only omits
// the analytics payload.
type ConversationAnalyst struct {
	llm    interfaces.LLM
	logger logging.Logger

	// historyLimit caps how many turns are analyzed.
	historyLimit int
}

// AnalystOption represents an option for configuring the stage.
type AnalystOption func(*ConversationAnalyst)

// WithAnalystHistoryLimit caps how many prior turns the analyst reads.
func WithAnalystHistoryLimit(limit int) AnalystOption {
	return func(a *ConversationAnalyst) {
		a.historyLimit = limit
	}
}

// WithAnalystLogger sets the logger for the stage.
func WithAnalystLogger(logger logging.Logger) AnalystOption {
	return func(a *ConversationAnalyst) {
		a.logger = logger
	}
}

// NewConversationAnalyst creates the conversation analyst stage.
func NewConversationAnalyst(llm interfaces.LLM, options ...AnalystOption) *ConversationAnalyst {
	a := &ConversationAnalyst{
		llm:          llm,
		logger:       logging.New(),
		historyLimit: 50,
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// Name implements interfaces.Agent.
func (a *ConversationAnalyst) Name() interfaces.AgentName {
	return interfaces.AgentConversationAnalyst
}

// Execute implements interfaces.Agent.
func (a *ConversationAnalyst) Execute(ctx context.Context, input *interfaces.AgentInput) *interfaces.AgentOutput {
	transcript := a.buildTranscript(input)
	if transcript == "" {
		return failureOutput(a.Name(), interfaces.ErrorKindValidation, "no conversation to analyze", nil)
	}

	completion, err := a.llm.Complete(ctx,
		[]interfaces.Message{{Role: interfaces.MessageRoleUser, Content: transcript}},
		interfaces.WithSystemMessage(analysisSystemPrompt),
		interfaces.WithTemperature(0.0),
		interfaces.WithMaxTokens(512),
	)
	if err != nil {
		return failureFromError(a.Name(), "analysis completion failed", err)
	}

	analysis, err := parseAnalysis(completion.Text)
	if err != nil {
		return failureOutput(a.Name(), interfaces.ErrorKindUnhandled,
			fmt.Sprintf("unparseable analysis output: %v", err), err)
	}

	a.logger.Debug(ctx, "Conversation analyzed", map[string]interface{}{
		"session_id": input.SessionID,
		"sentiment":  analysis.Sentiment,
		"topics":     len(analysis.Topics),
	})

	out := successOutput(map[string]interface{}{
		DataKeyAnalysis: analysis,
	}, completion.TokensUsed)
	return out
}

// buildTranscript renders the bounded history plus the current turn.
func (a *ConversationAnalyst) buildTranscript(input *interfaces.AgentInput) string {
	history := input.History
	if a.historyLimit > 0 && len(history) > a.historyLimit {
		history = history[len(history)-a.historyLimit:]
	}

	var b strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	fmt.Fprintf(&b, "%s: %s\n", interfaces.MessageRoleUser, input.Message)
	if reply := input.ContextString(ContextKeyReply); reply != "" {
		fmt.Fprintf(&b, "%s: %s\n", interfaces.MessageRoleAssistant, reply)
	}
	return b.String()
}

func parseAnalysis(text string) (*ConversationAnalysis, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var analysis ConversationAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

var _ interfaces.Agent = (*ConversationAnalyst)(nil)
