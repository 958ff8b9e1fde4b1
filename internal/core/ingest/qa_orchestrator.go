package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
	"github.com/jmiran15/chatmate-ingest/internal/models"
)

// QAOrchestrator ingests a single question/answer document. No chunking:
// the question and answer are short, so the pipeline generates similar
// questions and an augmented-answer bundle, embeds the flattened set and
// persists rows tagged isQA.
type QAOrchestrator struct {
	db        core.DbClient
	generator *QAGenerator
	batcher   *EmbedBatcher
	batchSize int
	log       *logger.Logger
}

func NewQAOrchestrator(db core.DbClient, generator *QAGenerator, batcher *EmbedBatcher, batchSize int, log *logger.Logger) *QAOrchestrator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &QAOrchestrator{
		db:        db,
		generator: generator,
		batcher:   batcher,
		batchSize: batchSize,
		log:       log,
	}
}

// Ingest runs the QA pipeline. A missing question or answer is a
// precondition for skipping, not an error: the run returns immediately
// without touching stored embeddings.
func (o *QAOrchestrator) Ingest(ctx context.Context, doc *models.Document, report ProgressFunc) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", core.ErrInvalidArgument)
	}
	if err := o.ingest(ctx, doc, report); err != nil {
		o.log.Error("qa ingestion failed", "document_id", doc.ID, "chatbot_id", doc.ChatbotID, "error", err)
		return err
	}
	return nil
}

func (o *QAOrchestrator) ingest(ctx context.Context, doc *models.Document, report ProgressFunc) error {
	if report == nil {
		report = func(context.Context, float64) error { return nil }
	}

	question := strings.TrimSpace(doc.Question)
	answer := strings.TrimSpace(doc.Answer)
	if question == "" || answer == "" {
		o.log.Info("qa document missing question or answer, skipping", "document_id", doc.ID)
		return nil
	}

	// Five independent startup operations. Only the stale-embedding delete
	// is critical; the rest degrade or are advisory.
	var (
		wg         sync.WaitGroup
		deleteErr  error
		similar    *SimilarQuestions
		augmented  *AnswerAugmentation
		reportErr  error
		pendingErr error
	)
	wg.Add(5)
	go func() { defer wg.Done(); deleteErr = o.db.DeleteEmbeddingsByDocument(ctx, doc.ID) }()
	go func() { defer wg.Done(); reportErr = report(ctx, 0) }()
	go func() { defer wg.Done(); similar = o.generator.GenerateSimilarQuestions(ctx, question) }()
	go func() { defer wg.Done(); augmented = o.generator.AugmentAnswer(ctx, question, answer) }()
	go func() { defer wg.Done(); pendingErr = o.db.UpdateDocumentPending(ctx, doc.ID, true) }()
	wg.Wait()

	if deleteErr != nil {
		return fmt.Errorf("delete stale embeddings: %w", deleteErr)
	}
	if reportErr != nil {
		o.log.Warn("initial progress report failed", "document_id", doc.ID, "error", reportErr)
	}
	if pendingErr != nil {
		o.log.Warn("pending flag write failed", "document_id", doc.ID, "error", pendingErr)
	}

	// Every row's retrieval payload is the canonical answer, no matter
	// which variation the vector came from.
	var texts []EmbeddableText
	addText := func(s string) {
		texts = append(texts, EmbeddableText{Text: s, Content: answer, ChunkContent: answer})
	}
	addText(question)
	addText(answer)
	if similar != nil {
		for _, q := range similar.Questions {
			if q != "" {
				addText(q)
			}
		}
	}
	for _, s := range augmented.EmbeddableTexts() {
		addText(s)
	}

	if _, err := o.batcher.EmbedAndPersist(ctx, texts, EmbedOptions{
		DocumentID: doc.ID,
		ChatbotID:  doc.ChatbotID,
		BatchSize:  o.batchSize,
		IsQA:       true,
	}, func(percent float64) {
		if err := report(ctx, percent); err != nil {
			o.log.Warn("progress report failed", "document_id", doc.ID, "error", err)
		}
	}); err != nil {
		return err
	}

	if err := o.db.UpdateDocumentPending(ctx, doc.ID, false); err != nil {
		return fmt.Errorf("clear pending flag: %w", err)
	}
	o.log.Info("qa ingestion completed", "document_id", doc.ID, "texts", len(texts))
	return nil
}
