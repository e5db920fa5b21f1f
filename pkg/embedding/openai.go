// Package embedding provides text embedding generation for the vector-backed
// memory store.
package embedding

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/evermind-ai/evermind/pkg/interfaces"
)

// OpenAI embedding model constants
const (
	// ModelTextEmbedding3Small is the smaller, faster OpenAI embedding model (1536 dimensions by default)
	ModelTextEmbedding3Small = "text-embedding-3-small"

	// ModelTextEmbedding3Large is the larger, more accurate OpenAI embedding model (3072 dimensions by default)
	ModelTextEmbedding3Large = "text-embedding-3-large"

	// DefaultModel is the default OpenAI embedding model
	DefaultModel = ModelTextEmbedding3Small
)

// OpenAIEmbedder implements embedding generation using the OpenAI API.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// EmbedderOption represents an option for configuring the embedder.
type EmbedderOption func(*OpenAIEmbedder)

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model string) EmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.model = model
	}
}

// WithDimensions sets the requested embedding dimensionality.
func WithDimensions(dimensions int) EmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.dimensions = dimensions
	}
}

// NewOpenAIEmbedder creates a new OpenAIEmbedder.
func NewOpenAIEmbedder(apiKey string, options ...EmbedderOption) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  DefaultModel,
	}

	for _, option := range options {
		option(e)
	}

	return e
}

// Embed generates an embedding for the given text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		req.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned from API")
	}

	embedding := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		embedding[i] = float32(v)
	}

	return embedding, nil
}

// GetModel returns the model name being used.
func (e *OpenAIEmbedder) GetModel() string {
	return e.model
}

var _ interfaces.Embedder = (*OpenAIEmbedder)(nil)
