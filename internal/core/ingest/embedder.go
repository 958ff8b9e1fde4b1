package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
	"github.com/jmiran15/chatmate-ingest/internal/models"
)

// DefaultBatchSize bounds both provider request count and insert width.
const DefaultBatchSize = 100

// EmbeddableText is one text unit headed for an embedding row. Text is what
// gets embedded; Content and ChunkContent become the row's retrieval payload
// and raw-source back-reference.
type EmbeddableText struct {
	Text         string
	Content      string
	ChunkContent string
}

// EmbedOptions keys a batch of texts to their owning document.
type EmbedOptions struct {
	DocumentID string
	ChatbotID  string
	BatchSize  int
	IsQA       bool
}

// EmbedBatcher turns embeddable texts into persisted vector rows.
//
// Texts are partitioned into contiguous batches; each batch costs exactly one
// provider call and one multi-row insert, so N texts cost ceil(N/B) of each.
// A provider or insert failure aborts the whole call; batches already
// inserted remain (at-least-once, not exactly-once).
type EmbedBatcher struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	log      *logger.Logger
}

func NewEmbedBatcher(db core.DbClient, embedder core.EmbeddingProvider, log *logger.Logger) *EmbedBatcher {
	return &EmbedBatcher{db: db, embedder: embedder, log: log}
}

// EmbedAndPersist embeds all texts and writes one row per text, returning the
// number of rows written. onProgress (optional) is invoked after each batch
// with the cumulative percent complete: monotonically non-decreasing, clamped
// to 100.
func (b *EmbedBatcher) EmbedAndPersist(ctx context.Context, texts []EmbeddableText, opts EmbedOptions, onProgress func(percent float64)) (int, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	written := 0
	for start := 0; start < len(texts); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		inputs := make([]string, len(batch))
		for i, t := range batch {
			inputs[i] = t.Text
		}

		vecs, err := b.embedder.EmbedTexts(ctx, inputs)
		if err != nil {
			return written, fmt.Errorf("embed batch at offset %d: %w", start, err)
		}
		if len(vecs) != len(batch) {
			return written, fmt.Errorf("embedding count mismatch: got %d want %d", len(vecs), len(batch))
		}

		rows := make([]models.Embedding, len(batch))
		for i, t := range batch {
			rows[i] = models.Embedding{
				ID:           uuid.New().String(),
				Embedding:    vecs[i],
				DocumentID:   opts.DocumentID,
				ChatbotID:    opts.ChatbotID,
				Content:      t.Content,
				ChunkContent: t.ChunkContent,
				IsQA:         opts.IsQA,
			}
		}
		if err := b.db.InsertEmbeddings(ctx, rows); err != nil {
			return written, fmt.Errorf("persist batch at offset %d: %w", start, err)
		}

		written += len(batch)
		if onProgress != nil {
			pct := float64(written) / float64(len(texts)) * 100
			if pct > 100 {
				pct = 100
			}
			onProgress(pct)
		}
	}

	return written, nil
}
