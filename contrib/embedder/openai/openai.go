package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sweetpotato0/miniagent/vector"
)

// DefaultModel is used when no embedding model is configured.
const DefaultModel = openaisdk.EmbeddingModelTextEmbedding3Small

// OpenAIEmbedder implements vector.Embedder by using openai.
type OpenAIEmbedder struct {
	client    openaisdk.Client
	model     openaisdk.EmbeddingModel
	dimension int
}

var _ vector.Embedder = (*OpenAIEmbedder)(nil)

// New create OpenAIEmbedder. A zero dimension keeps whatever length the
// service returns.
func New(apiKey, baseURL string, model openaisdk.EmbeddingModel, dimension int) *OpenAIEmbedder {
	opts := []option.RequestOption{}
	if strings.TrimSpace(apiKey) != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIEmbedder{
		client:    openaisdk.NewClient(opts...),
		model:     model,
		dimension: dimension,
	}
}

// Dimension return number of embedding dimensions
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// Embed converts text to a vector embedding
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts to embeddings
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedBatch(ctx, texts)
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openaisdk.EmbeddingNewParams{
		Model: e.model,
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}
	if e.dimension > 0 {
		params.Dimensions = openaisdk.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(resp.Data))
	for _, emb := range resp.Data {
		if emb.Index < 0 || int(emb.Index) >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", emb.Index)
		}
		out[emb.Index] = convertVector(emb.Embedding, e.dimension)
	}
	return out, nil
}

func convertVector(input []float64, expected int) []float32 {
	if expected <= 0 {
		expected = len(input)
	}
	vec := make([]float32, expected)
	for i := 0; i < len(input) && i < expected; i++ {
		vec[i] = float32(input[i])
	}
	return vec
}
