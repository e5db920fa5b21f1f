// Command evermind runs an interactive turn loop against the conversation
// orchestrator: a minimal harness for exercising the pipeline without the
// HTTP service in front of it.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/evermind-ai/evermind/pkg/agents"
	"github.com/evermind-ai/evermind/pkg/config"
	"github.com/evermind-ai/evermind/pkg/embedding"
	"github.com/evermind-ai/evermind/pkg/interfaces"
	anthropicllm "github.com/evermind-ai/evermind/pkg/llm/anthropic"
	openaillm "github.com/evermind-ai/evermind/pkg/llm/openai"
	"github.com/evermind-ai/evermind/pkg/logging"
	"github.com/evermind-ai/evermind/pkg/memory"
	weaviatestore "github.com/evermind-ai/evermind/pkg/memorystore/weaviate"
	"github.com/evermind-ai/evermind/pkg/multitenancy"
	"github.com/evermind-ai/evermind/pkg/orchestrator"
	"github.com/evermind-ai/evermind/pkg/retry"
	"github.com/evermind-ai/evermind/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	userID := flag.String("user", "demo-user", "user identity for memory namespacing")
	profileID := flag.String("profile", "", "memory profile (empty = default)")
	mode := flag.String("mode", "normal", "privacy mode: normal, incognito, pause_memories")
	stream := flag.Bool("stream", false, "stream reply fragments as they arrive")
	flag.Parse()

	if err := run(*configPath, *userID, *profileID, interfaces.PrivacyMode(*mode), *stream); err != nil {
		fmt.Fprintf(os.Stderr, "evermind: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, userID, profileID string, mode interfaces.PrivacyMode, stream bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !mode.Valid() {
		return fmt.Errorf("unknown privacy mode %q", mode)
	}

	logger := logging.New()
	ctx := multitenancy.WithUserID(context.Background(), userID)

	llm, err := buildLLM(cfg, logger)
	if err != nil {
		return err
	}

	embedder := embedding.NewOpenAIEmbedder(cfg.LLM.APIKey,
		embedding.WithEmbeddingModel(cfg.Memory.EmbeddingModel))
	store, err := weaviatestore.New(&weaviatestore.Config{
		Host:   cfg.Memory.WeaviateHost,
		Scheme: cfg.Memory.WeaviateScheme,
		APIKey: cfg.Memory.WeaviateAPIKey,
	}, embedder, weaviatestore.WithLogger(logger))
	if err != nil {
		return err
	}

	conversations := buildConversationStore(ctx, cfg, logger)

	coordinator, err := orchestrator.New(llm, store,
		orchestrator.WithLogger(logger),
		orchestrator.WithTokenBudget(cfg.Orchestrator.TokenBudget),
		orchestrator.WithAnalysisInterval(cfg.Orchestrator.AnalysisInterval),
		orchestrator.WithRetrievalOptions(agents.WithTopK(cfg.Memory.TopK)),
		orchestrator.WithGeneratorOptions(agents.WithGeneratorConfig(agents.GeneratorConfig{
			Temperature:  cfg.LLM.Temperature,
			MaxTokens:    cfg.LLM.MaxTokens,
			HistoryLimit: cfg.Orchestrator.HistoryLimit,
			Retry:        retryPolicy(cfg),
		})),
	)
	if err != nil {
		return err
	}

	sessionID := uuid.New().String()
	fmt.Printf("session %s (mode=%s, profile=%q) — empty line exits\n", sessionID, mode, profileID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			break
		}

		history, err := conversations.GetMessages(ctx, sessionID, cfg.Orchestrator.HistoryLimit)
		if err != nil {
			logger.Warn(ctx, "Failed to load history", map[string]interface{}{"error": err.Error()})
		}

		input := &interfaces.AgentInput{
			SessionID: sessionID,
			Message:   message,
			Mode:      mode,
			ProfileID: profileID,
			History:   history,
		}

		var result *orchestrator.OrchestrationResult
		if stream {
			result = runStreaming(ctx, coordinator, input)
		} else {
			result = coordinator.ProcessTurn(ctx, input)
			if result.Success {
				fmt.Println(result.Reply)
			}
		}

		if !result.Success {
			fmt.Printf("error: %v\n", result.Error)
			continue
		}

		for _, warning := range result.Warnings {
			fmt.Printf("  [warning] %s\n", warning)
		}
		fmt.Printf("  [memories: used=%d extracted=%d | stages=%v]\n",
			result.MemoriesUsed, result.MemoriesExtracted, result.AgentsExecuted)

		// Incognito turns leave no trace in the conversation buffer either.
		if mode != interfaces.PrivacyModeIncognito {
			recordTurn(ctx, conversations, sessionID, message, result.Reply, logger)
		}
	}

	return scanner.Err()
}

func retryPolicy(cfg *config.Config) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.Orchestrator.MaxRetries
	return policy
}

func buildLLM(cfg *config.Config, logger logging.Logger) (interfaces.LLM, error) {
	var llm interfaces.LLM
	switch cfg.LLM.Provider {
	case "openai":
		options := []openaillm.Option{openaillm.WithLogger(logger)}
		if cfg.LLM.Model != "" {
			options = append(options, openaillm.WithModel(cfg.LLM.Model))
		}
		llm = openaillm.NewClient(cfg.LLM.APIKey, options...)
	case "anthropic":
		options := []anthropicllm.Option{anthropicllm.WithLogger(logger)}
		if cfg.LLM.Model != "" {
			options = append(options, anthropicllm.WithModel(cfg.LLM.Model))
		}
		llm = anthropicllm.NewClient(cfg.LLM.APIKey, options...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	return tracing.NewLLMMiddleware(llm), nil
}

// buildConversationStore prefers Redis and falls back to the in-process
// buffer when Redis is unreachable.
func buildConversationStore(ctx context.Context, cfg *config.Config, logger logging.Logger) interfaces.ConversationStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn(ctx, "Redis unavailable, using in-process conversation buffer", map[string]interface{}{
			"addr":  cfg.Redis.Addr,
			"error": err.Error(),
		})
		return memory.NewConversationBuffer()
	}
	return memory.NewRedisConversationBuffer(client, memory.WithLogger(logger))
}

func runStreaming(ctx context.Context, coordinator *orchestrator.Coordinator, input *interfaces.AgentInput) *orchestrator.OrchestrationResult {
	var result *orchestrator.OrchestrationResult
	for event := range coordinator.ProcessTurnStream(ctx, input) {
		switch event.Type {
		case orchestrator.StreamEventContent:
			fmt.Print(event.Delta)
		case orchestrator.StreamEventComplete, orchestrator.StreamEventError:
			fmt.Println()
			result = event.Result
		}
	}
	return result
}

func recordTurn(ctx context.Context, conversations interfaces.ConversationStore, sessionID, message, reply string, logger logging.Logger) {
	for _, msg := range []interfaces.Message{
		{Role: interfaces.MessageRoleUser, Content: message},
		{Role: interfaces.MessageRoleAssistant, Content: reply},
	} {
		if err := conversations.AddMessage(ctx, sessionID, msg); err != nil {
			logger.Warn(ctx, "Failed to record turn", map[string]interface{}{"error": err.Error()})
			return
		}
	}
}
