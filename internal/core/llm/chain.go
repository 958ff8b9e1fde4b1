package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
)

// ChainProvider is one link in a fallback chain: a named completion provider
// that may decline a call (ErrUnavailable) when its rate budget has no room.
type ChainProvider interface {
	Name() string
	GenerateJSON(ctx context.Context, system, user, schemaName string, out any) error
}

// Chain tries providers in order and returns the first success. A provider
// that declines or fails falls through to the next one; only when every
// provider has failed does the chain report an error.
type Chain struct {
	providers []ChainProvider
	log       *logger.Logger
}

func NewChain(log *logger.Logger, providers ...ChainProvider) *Chain {
	return &Chain{providers: providers, log: log}
}

func (c *Chain) GenerateJSON(ctx context.Context, system, user, schemaName string, out any) error {
	if len(c.providers) == 0 {
		return fmt.Errorf("provider chain is empty")
	}

	var errs []error
	for _, p := range c.providers {
		err := p.GenerateJSON(ctx, system, user, schemaName, out)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrUnavailable) {
			c.log.Warn("provider failed, trying next", "provider", p.Name(), "schema", schemaName, "error", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return fmt.Errorf("all providers failed for %s: %w", schemaName, errors.Join(errs...))
}

// Named wraps a plain CompletionProvider so it can terminate a chain.
// It is always available.
type Named struct {
	ProviderName string
	Provider     core.CompletionProvider
}

func (n Named) Name() string { return n.ProviderName }

func (n Named) GenerateJSON(ctx context.Context, system, user, schemaName string, out any) error {
	return n.Provider.GenerateJSON(ctx, system, user, schemaName, out)
}

var _ core.CompletionProvider = (*Chain)(nil)
