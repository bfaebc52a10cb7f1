package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
)

const (
	// DefaultBaseURL is Ollama's OpenAI-compatible endpoint
	DefaultBaseURL = "http://localhost:11434/v1"
	// DefaultAPIKey is accepted and ignored by Ollama
	DefaultAPIKey = "ollama"
)

// ErrWrongDimensions is returned when an embedding does not have the configured dimension
var ErrWrongDimensions = errors.New("embedding has wrong dimensions")

// API is the subset of the OpenAI surface the client needs
type API interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	CreateCompletion(ctx context.Context, prompt string) (string, error)
}

// OpenAIAdapter implements API on go-openai. Any server speaking the
// OpenAI wire format works, including Ollama.
type OpenAIAdapter struct {
	client         *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = DefaultAPIKey
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = cfg.Model
	}

	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		embeddingModel: openai.EmbeddingModel(embeddingModel),
	}
}

// CreateEmbeddings embeds texts in one request, preserving input order
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w", len(texts), len(resp.Data), domain.ErrNoEmbedding)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// CreateCompletion sends prompt as a single user message
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", domain.ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	// EmbeddingDimensions, when positive, is enforced on every embedding
	EmbeddingDimensions int
}

// Client provides the embedder and completer used by the pipeline
type Client struct {
	api        API
	dimensions int
}

// NewClient creates a client backed by go-openai.
func NewClient(cfg Config) *Client {
	return NewClientWithAPI(NewOpenAIAdapter(cfg), cfg.EmbeddingDimensions)
}

func NewClientWithAPI(api API, dimensions int) *Client {
	return &Client{api: api, dimensions: dimensions}
}

// Embed generates an embedding for a single text
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, domain.ErrEmptyText
	}

	embeddings, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return embeddings[0], nil
}

// EmbedMany generates embeddings for texts in input order
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings, err := c.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("embedding %d: %w", i, domain.ErrNoEmbedding)
		}
		if c.dimensions > 0 && len(e) != c.dimensions {
			return nil, fmt.Errorf("expected %d, got %d: %w", c.dimensions, len(e), ErrWrongDimensions)
		}
	}

	return embeddings, nil
}

// Complete returns the model's reply to prompt
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.api.CreateCompletion(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to complete prompt: %w", err)
	}
	return out, nil
}
