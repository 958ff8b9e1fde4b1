package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jmiran15/chatmate-ingest/internal/core"
)

// GeminiProvider implements core.CompletionProvider and core.EmbeddingProvider
// against the Gemini API. Selected with PROVIDER=gemini.
type GeminiProvider struct {
	client     *genai.Client
	chatModel  string
	embedModel string
}

func NewGeminiProvider(ctx context.Context, apiKey, chatModel, embedModel string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if chatModel == "" {
		chatModel = "gemini-1.5-flash"
	}
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}
	return &GeminiProvider{client: cl, chatModel: chatModel, embedModel: embedModel}, nil
}

func (g *GeminiProvider) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// GenerateJSON asks for application/json output and decodes it into out.
// Gemini signals refusals through finish/block reasons rather than a refusal
// message; both map to core.ErrRefused.
func (g *GeminiProvider) GenerateJSON(ctx context.Context, system, user, schemaName string, out any) error {
	m := g.client.GenerativeModel(g.chatModel)
	m.ResponseMIMEType = "application/json"
	if system != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return fmt.Errorf("gemini generate %s: %w", schemaName, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return fmt.Errorf("%w: gemini returned no candidates", core.ErrRefused)
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety || cand.FinishReason == genai.FinishReasonRecitation {
		return fmt.Errorf("%w: finish reason %s", core.ErrRefused, cand.FinishReason)
	}

	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if err := json.Unmarshal([]byte(b.String()), out); err != nil {
		return fmt.Errorf("decode %s response: %w", schemaName, err)
	}
	return nil
}

// EmbedTexts batches all texts in one request via BatchEmbedContents.
func (g *GeminiProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.embedModel)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

var (
	_ core.CompletionProvider = (*GeminiProvider)(nil)
	_ core.EmbeddingProvider  = (*GeminiProvider)(nil)
)
