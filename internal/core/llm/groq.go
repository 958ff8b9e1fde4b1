package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmiran15/chatmate-ingest/internal/logger"
)

// ErrUnavailable signals that a provider's rate budget has no room for the
// call. The fallback chain skips to the next provider instead of blocking.
var ErrUnavailable = errors.New("provider unavailable")

// GroqProvider routes structured completions through Groq's OpenAI-compatible
// API, gated by a free-tier Budget. Token costs are estimated before the call
// and trued up against the usage the provider reports.
type GroqProvider struct {
	inner  *OpenAIProvider
	budget *Budget
	log    *logger.Logger

	// responseTokenReserve is added to the input estimate since the budget
	// must cover completion tokens we cannot know up front.
	responseTokenReserve int
}

func NewGroqProvider(opts OpenAIOptions, budget *Budget, log *logger.Logger) (*GroqProvider, error) {
	inner, err := NewOpenAIProvider(opts)
	if err != nil {
		return nil, fmt.Errorf("groq provider: %w", err)
	}
	return &GroqProvider{
		inner:                inner,
		budget:               budget,
		log:                  log,
		responseTokenReserve: 1024,
	}, nil
}

func (g *GroqProvider) Name() string { return "groq" }

func (g *GroqProvider) GenerateJSON(ctx context.Context, system, user, schemaName string, out any) error {
	estimated := EstimateTokens(system, user) + g.responseTokenReserve
	if !g.budget.TryAcquire(estimated) {
		g.log.Debug("groq budget exhausted", "schema", schemaName, "estimated_tokens", estimated)
		return fmt.Errorf("%w: groq budget exhausted", ErrUnavailable)
	}

	usage, err := g.inner.generateJSON(ctx, system, user, schemaName, out)
	if usage.TotalTokens > 0 {
		g.budget.Reconcile(estimated, usage.TotalTokens)
	}
	if err != nil {
		return err
	}
	return nil
}

var _ ChainProvider = (*GroqProvider)(nil)
