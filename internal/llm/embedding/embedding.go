// Package embedding wraps the vector-embedding backend behind a small
// interface so the re-ranker can be tested with deterministic fakes.
package embedding

import (
	"context"
	"errors"
	"math"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float64, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

// OpenAI embeds text through the OpenAI embeddings endpoint.
type OpenAI struct {
	client openai.Client
	model  string

	// OnUsage, when set, receives the input token count of every call so
	// embedding spend can reach the cost ledger.
	OnUsage func(tokens int64)
}

// NewOpenAI builds an embedder over the OpenAI embeddings endpoint.
func NewOpenAI(apiKey string, baseURL string, model string) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing api key")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = "text-embedding-3-small"
	}
	opts := []ooption.RequestOption{ooption.WithAPIKey(strings.TrimSpace(apiKey))}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, ooption.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

func (e *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	if e == nil {
		return nil, errors.New("nil embedder")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty input")
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, err
	}
	if e.OnUsage != nil {
		e.OnUsage(resp.Usage.PromptTokens)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}

// Cosine computes cosine similarity; zero-length or mismatched vectors score 0.
func Cosine(a []float64, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
