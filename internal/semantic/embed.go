package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Embedder turns texts into vectors. Implementations may fail per call; the
// metrics treat a failed embedding batch as a soft degradation and fall back
// to the keyword layer.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Scorer rates a single text's surprise against a baseline language-model
// distribution, in [0, 1].
type Scorer interface {
	SurpriseScore(ctx context.Context, text string) (float64, error)
}

// OpenAIClient is the production Embedder and Scorer.
type OpenAIClient struct {
	client     *openai.Client
	embedModel openai.EmbeddingModel
	chatModel  string
	log        *slog.Logger
}

// NewOpenAIClient creates a client for the given API key. Model names fall
// back to small defaults when empty.
func NewOpenAIClient(apiKey, embedModel, chatModel string, log *slog.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if embedModel == "" {
		embedModel = string(openai.SmallEmbedding3)
	}
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}
	if log == nil {
		log = slog.Default()
	}
	return &OpenAIClient{
		client:     openai.NewClient(apiKey),
		embedModel: openai.EmbeddingModel(embedModel),
		chatModel:  chatModel,
		log:        log,
	}, nil
}

// EmbedTexts implements Embedder.
func (o *OpenAIClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: o.embedModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: embed: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai: embed: vector index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

const surprisePrompt = `Rate how surprising the following text is relative to routine ` +
	`software-project discussion. Answer with one number between 0.0 and 1.0 and nothing else.

%s`

// SurpriseScore implements Scorer via a single chat completion.
func (o *OpenAIClient) SurpriseScore(ctx context.Context, text string) (float64, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(surprisePrompt, text)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("openai: score: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("openai: score: no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("openai: score: unparseable reply %q", raw)
	}
	return math.Max(0, math.Min(1, score)), nil
}

// centroid averages a set of equal-length vectors.
func centroid(vectors [][]float32) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			out[i] += float64(x)
		}
	}
	for i := range out {
		out[i] /= float64(len(vectors))
	}
	return out
}

// cosineDistance is 1 - cosine similarity, clamped to [0, 1]. Zero vectors
// are maximally distant.
func cosineDistance(a []float32, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * b[i]
		na += float64(a[i]) * float64(a[i])
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, 1-sim))
}
