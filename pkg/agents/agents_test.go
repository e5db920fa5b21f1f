package agents

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/retry"
)

// fakeCompletion is one scripted provider response.
type fakeCompletion struct {
	text   string
	tokens int
	err    error
}

// fakeLLM returns scripted completions in order; the last entry repeats. It
// records every request so tests can assert on prompt assembly.
type fakeLLM struct {
	mu        sync.Mutex
	responses []fakeCompletion

	calls        int
	gotMessages  [][]interfaces.Message
	gotOptions   []interfaces.CompleteOptions
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(ctx context.Context, messages []interfaces.Message, options ...interfaces.CompleteOption) (*interfaces.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gotMessages = append(f.gotMessages, messages)
	f.gotOptions = append(f.gotOptions, interfaces.ApplyCompleteOptions(options...))

	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++

	resp := f.responses[idx]
	if resp.err != nil {
		return nil, resp.err
	}
	return &interfaces.Completion{Text: resp.text, TokensUsed: resp.tokens, FinishReason: "stop"}, nil
}

// streamingFakeLLM plays back one scripted chunk sequence per attempt.
type streamingFakeLLM struct {
	fakeLLM
	attempts [][]interfaces.StreamChunk

	streamCalls int
}

func (f *streamingFakeLLM) CompleteStream(ctx context.Context, messages []interfaces.Message, options ...interfaces.CompleteOption) (<-chan interfaces.StreamChunk, error) {
	f.mu.Lock()
	idx := f.streamCalls
	if idx >= len(f.attempts) {
		idx = len(f.attempts) - 1
	}
	f.streamCalls++
	chunks := f.attempts[idx]
	f.mu.Unlock()

	out := make(chan interfaces.StreamChunk, len(chunks))
	for _, chunk := range chunks {
		out <- chunk
	}
	close(out)
	return out, nil
}

// fakeMemoryStore records writes and serves scripted search results.
type fakeMemoryStore struct {
	mu sync.Mutex

	searchResults []interfaces.MemoryRecord
	searchErr     error
	failTexts     map[string]bool

	searchCalls   int
	lastNamespace string
	lastQuery     string
	lastLimit     int
	added         []string
}

func (s *fakeMemoryStore) Search(ctx context.Context, namespace, query string, limit int) ([]interfaces.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searchCalls++
	s.lastNamespace = namespace
	s.lastQuery = query
	s.lastLimit = limit

	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.searchResults, nil
}

func (s *fakeMemoryStore) Add(ctx context.Context, namespace, text string, metadata map[string]interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastNamespace = namespace
	if s.failTexts[text] {
		return "", interfaces.NewAgentError("", interfaces.ErrorKindStore, "write rejected", nil)
	}
	s.added = append(s.added, text)
	return "mem-id", nil
}

// fastRetry keeps retry-heavy tests from sleeping.
func fastRetry() retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		Multiplier:      1.0,
		MaxInterval:     time.Millisecond,
	}
}

func transientErr(msg string) error {
	return interfaces.NewAgentError("", interfaces.ErrorKindProviderTransient, msg, nil)
}

func fatalErr(msg string) error {
	return interfaces.NewAgentError("", interfaces.ErrorKindProviderFatal, msg, nil)
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(strings.ToLower(w), strings.ToLower(substr)) {
			return true
		}
	}
	return false
}
