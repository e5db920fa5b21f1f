// Package weaviate implements the long-term memory store on Weaviate.
// Memories are embedded client-side and stored one class per namespace, so
// profiles never share an index.
package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/evermind-ai/evermind/pkg/interfaces"
	"github.com/evermind-ai/evermind/pkg/logging"
)

// Config contains connection settings for the Weaviate store.
type Config struct {
	Host   string // host without scheme, e.g. "localhost:8080"
	Scheme string // "http" or "https"
	APIKey string // optional bearer token
}

// MemoryStore implements interfaces.MemoryStore backed by Weaviate.
type MemoryStore struct {
	client   *weaviate.Client
	embedder interfaces.Embedder
	logger   logging.Logger

	// mu guards classes; one store is shared across concurrent turns.
	mu sync.Mutex

	// classes caches namespaces whose class is known to exist.
	classes map[string]bool
}

// StoreOption represents an option for configuring the store.
type StoreOption func(*MemoryStore)

// WithLogger sets the logger for the store.
func WithLogger(logger logging.Logger) StoreOption {
	return func(s *MemoryStore) {
		s.logger = logger
	}
}

// New creates a Weaviate-backed memory store. The embedder supplies vectors
// for both writes and searches; Weaviate itself runs vectorizer-free.
func New(config *Config, embedder interfaces.Embedder, options ...StoreOption) (*MemoryStore, error) {
	headers := map[string]string{}
	if config.APIKey != "" {
		headers["Authorization"] = "Bearer " + config.APIKey
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:    config.Host,
		Scheme:  config.Scheme,
		Headers: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	s := &MemoryStore{
		client:   client,
		embedder: embedder,
		logger:   logging.New(),
		classes:  make(map[string]bool),
	}

	for _, option := range options {
		option(s)
	}

	return s, nil
}

// Search implements interfaces.MemoryStore. Result ordering is owned by
// Weaviate's vector index.
func (s *MemoryStore) Search(ctx context.Context, namespace, query string, limit int) ([]interfaces.MemoryRecord, error) {
	class := classForNamespace(namespace)

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, storeErr("failed to embed query", err)
	}

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "metadata"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
	}
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	result, err := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, storeErr("weaviate search failed", err)
	}
	if len(result.Errors) > 0 {
		// A missing class means the namespace simply has no memories yet.
		if strings.Contains(result.Errors[0].Message, "Cannot query field") {
			return nil, nil
		}
		return nil, storeErr("weaviate search failed", fmt.Errorf("%s", result.Errors[0].Message))
	}

	records := parseSearchResult(result.Data, class)

	s.logger.Debug(ctx, "Memory search completed", map[string]interface{}{
		"namespace": namespace,
		"returned":  len(records),
		"limit":     limit,
	})

	return records, nil
}

// Add implements interfaces.MemoryStore. Writes are append-only.
func (s *MemoryStore) Add(ctx context.Context, namespace, text string, metadata map[string]interface{}) (string, error) {
	class := classForNamespace(namespace)

	if err := s.ensureClass(ctx, class); err != nil {
		return "", err
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", storeErr("failed to embed memory", err)
	}

	metadataJSON := "{}"
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return "", storeErr("failed to encode memory metadata", err)
		}
		metadataJSON = string(raw)
	}

	id := uuid.New().String()
	_, err = s.client.Data().Creator().
		WithClassName(class).
		WithID(id).
		WithProperties(map[string]interface{}{
			"text":     text,
			"metadata": metadataJSON,
		}).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		return "", storeErr("weaviate write failed", err)
	}

	s.logger.Debug(ctx, "Memory stored", map[string]interface{}{
		"namespace": namespace,
		"id":        id,
	})

	return id, nil
}

// ensureClass creates the namespace's class on first write. The lock is held
// across the schema round-trip so concurrent first writes to one namespace
// cannot race on class creation; later writes hit the cache immediately.
func (s *MemoryStore) ensureClass(ctx context.Context, class string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.classes[class] {
		return nil
	}

	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
	if err != nil {
		return storeErr("weaviate schema check failed", err)
	}

	if !exists {
		err = s.client.Schema().ClassCreator().WithClass(&models.Class{
			Class:      class,
			Vectorizer: "none",
			Properties: []*models.Property{
				{Name: "text", DataType: []string{"text"}},
				{Name: "metadata", DataType: []string{"text"}},
			},
		}).Do(ctx)
		if err != nil {
			return storeErr("weaviate class creation failed", err)
		}
	}

	s.classes[class] = true
	return nil
}

// classForNamespace maps a memory namespace onto a valid Weaviate class name.
func classForNamespace(namespace string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, namespace)
	return "Memory_" + sanitized
}

func parseSearchResult(data map[string]models.JSONObject, class string) []interfaces.MemoryRecord {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := get[class].([]interface{})
	if !ok {
		return nil
	}

	records := make([]interfaces.MemoryRecord, 0, len(objects))
	for _, obj := range objects {
		props, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}

		record := interfaces.MemoryRecord{}
		if text, ok := props["text"].(string); ok {
			record.Text = text
		}
		if raw, ok := props["metadata"].(string); ok && raw != "" {
			var metadata map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &metadata); err == nil {
				record.Metadata = metadata
			}
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				record.ID = id
			}
		}

		records = append(records, record)
	}

	return records
}

func storeErr(msg string, cause error) error {
	return interfaces.NewAgentError("", interfaces.ErrorKindStore, msg, cause)
}

var _ interfaces.MemoryStore = (*MemoryStore)(nil)
