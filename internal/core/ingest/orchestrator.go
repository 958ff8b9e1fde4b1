package ingest

import (
	"context"
	"fmt"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
	"github.com/jmiran15/chatmate-ingest/internal/models"
)

// IngestConfig tunes the document pipeline.
//
// ChunkSize/ChunkOverlap: character sizing for the chunker.
// BatchSize: chunks enriched per outer batch, and texts embedded per
// provider call. Batches are strictly sequential, which bounds peak
// concurrent LLM calls to BatchSize*2 (augment + questions per chunk).
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{ChunkSize: 1024, ChunkOverlap: 20, BatchSize: DefaultBatchSize}
}

// ProgressFunc reports cumulative ingestion progress (0-100) back to the job
// runtime. Reporting failures are absorbed; progress is advisory.
type ProgressFunc func(ctx context.Context, percent float64) error

// Orchestrator drives the end-to-end ingestion of one document: delete stale
// vectors, chunk, enrich per batch, embed, persist, report progress, clear
// the pending flag.
type Orchestrator struct {
	db        core.DbClient
	augmenter *Augmenter
	questions *QuestionGenerator
	batcher   *EmbedBatcher
	cfg       IngestConfig
	log       *logger.Logger
}

func NewOrchestrator(db core.DbClient, augmenter *Augmenter, questions *QuestionGenerator, batcher *EmbedBatcher, cfg IngestConfig, log *logger.Logger) *Orchestrator {
	if cfg.ChunkSize <= 0 {
		cfg = DefaultIngestConfig()
	}
	return &Orchestrator{
		db:        db,
		augmenter: augmenter,
		questions: questions,
		batcher:   batcher,
		cfg:       cfg,
		log:       log,
	}
}

// Ingest runs the pipeline for one document. Enrichment failures degrade the
// output; stale-vector deletion, embedding calls and inserts are critical and
// abort the run. A failed run leaves the document pending so observers can
// see ingestion is stuck; the job runtime owns retry policy.
func (o *Orchestrator) Ingest(ctx context.Context, doc *models.Document, report ProgressFunc) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", core.ErrInvalidArgument)
	}
	if err := o.ingest(ctx, doc, report); err != nil {
		o.log.Error("ingestion failed", "document_id", doc.ID, "chatbot_id", doc.ChatbotID, "error", err)
		return err
	}
	return nil
}

func (o *Orchestrator) ingest(ctx context.Context, doc *models.Document, report ProgressFunc) error {
	if report == nil {
		report = func(context.Context, float64) error { return nil }
	}

	// Stale vectors must never coexist with a new run, so the delete is the
	// one startup step whose failure is not absorbed. The initial progress
	// report runs alongside it and is advisory.
	startup := Gather(ctx, 2, func(ctx context.Context, i int) (struct{}, error) {
		if i == 0 {
			return struct{}{}, o.db.DeleteEmbeddingsByDocument(ctx, doc.ID)
		}
		return struct{}{}, report(ctx, 0)
	})
	if err := startup[0].Err; err != nil {
		return fmt.Errorf("delete stale embeddings: %w", err)
	}
	if err := startup[1].Err; err != nil {
		o.log.Warn("initial progress report failed", "document_id", doc.ID, "error", err)
	}

	// An empty document has nothing to embed and completes immediately.
	if doc.Content == "" {
		if err := report(ctx, 100); err != nil {
			o.log.Warn("progress report failed", "document_id", doc.ID, "error", err)
		}
		return o.markCompleted(ctx, doc)
	}

	chunks, err := Split(doc, o.cfg.ChunkSize, o.cfg.ChunkOverlap)
	if err != nil {
		return err
	}
	o.log.Info("chunked document", "document_id", doc.ID, "chunks", len(chunks))

	progressPerChunk := 100 / float64(len(chunks))
	progress := 0.0

	for start := 0; start < len(chunks); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := o.enrichBatch(ctx, batch)
		if _, err := o.batcher.EmbedAndPersist(ctx, texts, EmbedOptions{
			DocumentID: doc.ID,
			ChatbotID:  doc.ChatbotID,
			BatchSize:  o.cfg.BatchSize,
		}, nil); err != nil {
			return err
		}

		progress += progressPerChunk * float64(len(batch))
		if progress > 100 {
			progress = 100
		}
		if err := report(ctx, progress); err != nil {
			o.log.Warn("progress report failed", "document_id", doc.ID, "error", err)
		}
	}

	return o.markCompleted(ctx, doc)
}

// enrichBatch fans out augmentation and question generation for every chunk
// in the batch concurrently. Each chunk's pair of calls runs independently;
// one chunk failing never blocks another. Every chunk contributes at minimum
// its own raw content; enrichment adds derived texts when it succeeds.
func (o *Orchestrator) enrichBatch(ctx context.Context, batch []Chunk) []EmbeddableText {
	n := len(batch)

	augs := make([]*AugmentationBundle, n)
	qsts := make([]*QuestionBundle, n)
	Gather(ctx, n*2, func(ctx context.Context, i int) (struct{}, error) {
		if i < n {
			augs[i] = o.augmenter.Augment(ctx, batch[i].Content)
		} else {
			qsts[i-n] = o.questions.GenerateQuestions(ctx, batch[i-n].Content)
		}
		return struct{}{}, nil
	})

	var texts []EmbeddableText
	for i, ch := range batch {
		// The retrieval payload is always the chunk's own raw text, no
		// matter which derived variation the vector came from.
		addText := func(s string) {
			texts = append(texts, EmbeddableText{
				Text:         s,
				Content:      ch.Content,
				ChunkContent: ch.Content,
			})
		}
		addText(ch.Content)
		for _, s := range augs[i].EmbeddableTexts() {
			addText(s)
		}
		for _, s := range qsts[i].EmbeddableTexts() {
			addText(s)
		}
	}
	return texts
}

func (o *Orchestrator) markCompleted(ctx context.Context, doc *models.Document) error {
	if err := o.db.UpdateDocumentPending(ctx, doc.ID, false); err != nil {
		return fmt.Errorf("clear pending flag: %w", err)
	}
	o.log.Info("ingestion completed", "document_id", doc.ID, "chatbot_id", doc.ChatbotID)
	return nil
}
