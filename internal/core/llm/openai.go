package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/jmiran15/chatmate-ingest/internal/core"
)

// OpenAIProvider implements core.CompletionProvider and core.EmbeddingProvider
// against the OpenAI API (or any OpenAI-compatible endpoint via base URL).
type OpenAIProvider struct {
	client     *openai.Client
	chatModel  string
	embedModel string
	embedDim   int
}

type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
	EmbedDim   int
}

func NewOpenAIProvider(opts OpenAIOptions) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai api key not set")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(cfg),
		chatModel:  opts.ChatModel,
		embedModel: opts.EmbedModel,
		embedDim:   opts.EmbedDim,
	}, nil
}

// GenerateJSON issues one structured (json_schema) chat completion and decodes
// the response into out. A model refusal maps to core.ErrRefused and a
// context-window overflow to core.ErrContextLength so callers can tell the
// absorbable failures apart from transport errors.
func (p *OpenAIProvider) GenerateJSON(ctx context.Context, system, user, schemaName string, out any) error {
	_, err := p.generateJSON(ctx, system, user, schemaName, out)
	return err
}

// generateJSON also reports provider token usage so quota-gated wrappers can
// true up their budgets.
func (p *OpenAIProvider) generateJSON(ctx context.Context, system, user, schemaName string, out any) (openai.Usage, error) {
	schema, err := jsonschema.GenerateSchemaForType(out)
	if err != nil {
		return openai.Usage{}, fmt.Errorf("generate schema %s: %w", schemaName, err)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return openai.Usage{}, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return resp.Usage, fmt.Errorf("chat completion %s returned no choices", schemaName)
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return resp.Usage, fmt.Errorf("%w: %s", core.ErrRefused, msg.Refusal)
	}
	if err := json.Unmarshal([]byte(msg.Content), out); err != nil {
		return resp.Usage, fmt.Errorf("decode %s response: %w", schemaName, err)
	}
	return resp.Usage, nil
}

// EmbedTexts requests one vector per text in a single provider call.
func (p *OpenAIProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.embedModel),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	results := make([][]float32, len(resp.Data))
	for i, datum := range resp.Data {
		if p.embedDim > 0 && len(datum.Embedding) != p.embedDim {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", p.embedDim, len(datum.Embedding))
		}
		results[i] = datum.Embedding
	}
	return results, nil
}

// classifyError maps provider API errors onto the pipeline's sentinels.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == "context_length_exceeded" {
			return fmt.Errorf("%w: %s", core.ErrContextLength, apiErr.Message)
		}
	}
	return fmt.Errorf("chat completion: %w", err)
}

var (
	_ core.CompletionProvider = (*OpenAIProvider)(nil)
	_ core.EmbeddingProvider  = (*OpenAIProvider)(nil)
)
