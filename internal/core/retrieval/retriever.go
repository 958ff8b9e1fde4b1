package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/core/ingest"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
	"github.com/jmiran15/chatmate-ingest/internal/models"
)

const DefaultTopK = 8

// queryAugmentation mirrors the enrichment applied at ingestion time: the raw
// query is searched alongside rephrasings and a hypothetical answer so the
// query-side text has a chance to land near the answer-side vectors.
type queryAugmentation struct {
	Rephrasings        []string `json:"rephrasings"`
	HypotheticalAnswer string   `json:"hypotheticalAnswer"`
}

const augmentQuerySystemPrompt = `You expand a user's search query for semantic retrieval.
Produce 2-3 rephrasings of the query that preserve its meaning, and one short
hypothetical answer: a plausible passage that a document answering this query
might contain. Keep everything in the language of the query.`

// Retriever answers nearest-neighbor searches over a chatbot's embeddings.
type Retriever struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	chat     core.CompletionProvider
	log      *logger.Logger
}

func NewRetriever(db core.DbClient, embedder core.EmbeddingProvider, chat core.CompletionProvider, log *logger.Logger) *Retriever {
	return &Retriever{db: db, embedder: embedder, chat: chat, log: log}
}

// Retrieve returns the topK closest embedding rows for query, scoped to
// chatbotID. The query is augmented with rephrasings and a hypothetical
// answer before searching; augmentation failures degrade to a raw-query
// search instead of failing the request.
func (r *Retriever) Retrieve(ctx context.Context, chatbotID, query string, topK int) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if chatbotID == "" || query == "" {
		return nil, fmt.Errorf("%w: chatbot id and query are required", core.ErrInvalidArgument)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	texts := []string{query}
	if aug := r.augmentQuery(ctx, query); aug != nil {
		for _, t := range aug.Rephrasings {
			if s := strings.TrimSpace(t); s != "" {
				texts = append(texts, s)
			}
		}
		if s := strings.TrimSpace(aug.HypotheticalAnswer); s != "" {
			texts = append(texts, s)
		}
	}

	vectors, err := r.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	searches := ingest.Gather(ctx, len(vectors), func(ctx context.Context, i int) ([]models.SearchResult, error) {
		return r.db.SearchEmbeddings(ctx, chatbotID, vectors[i], topK)
	})

	best := make(map[string]models.SearchResult)
	var searchErr error
	for _, res := range searches {
		if res.Err != nil {
			searchErr = res.Err
			continue
		}
		for _, hit := range res.Value {
			if prev, ok := best[hit.Embedding.ID]; !ok || hit.Distance < prev.Distance {
				best[hit.Embedding.ID] = hit
			}
		}
	}
	if len(best) == 0 && searchErr != nil {
		return nil, fmt.Errorf("vector search: %w", searchErr)
	}

	merged := make([]models.SearchResult, 0, len(best))
	for _, hit := range best {
		merged = append(merged, hit)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Distance < merged[j].Distance })
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

func (r *Retriever) augmentQuery(ctx context.Context, query string) *queryAugmentation {
	if r.chat == nil {
		return nil
	}
	var aug queryAugmentation
	err := r.chat.GenerateJSON(ctx, augmentQuerySystemPrompt, query, "query_augmentation", &aug)
	if err != nil {
		r.log.Warn("query augmentation failed, searching raw query only", "error", err)
		return nil
	}
	return &aug
}
