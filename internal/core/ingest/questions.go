package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
)

// QuestionBundle is the structured output of hypothetical-question
// generation for one chunk. MainTopics is intentionally regenerated here even
// though augmentation also produces topics; the duplication adds retrieval
// diversity.
type QuestionBundle struct {
	Questions  []string `json:"questions"`
	MainTopics []string `json:"mainTopics"`
}

const questionsSystemPrompt = `You are a question generation engine inside a retrieval pipeline. Given one chunk of a document, generate the set of questions a user could ask that this chunk answers.

Rules:
- Every question must be answerable from the chunk alone.
- Cover the chunk's information from different angles: direct facts, comparisons, how/why phrasings, and paraphrased variants.
- Do not generate redundant questions. Generate more questions for information-dense chunks and fewer for simple ones.
- Also list the main topics the chunk covers.`

// QuestionGenerator produces hypothetical questions for a chunk. Same
// error-absorption contract as the Augmenter: failures are logged and
// reported as nil, never propagated.
type QuestionGenerator struct {
	llm core.CompletionProvider
	log *logger.Logger
}

func NewQuestionGenerator(llm core.CompletionProvider, log *logger.Logger) *QuestionGenerator {
	return &QuestionGenerator{llm: llm, log: log}
}

func (g *QuestionGenerator) GenerateQuestions(ctx context.Context, chunkText string) *QuestionBundle {
	var bundle QuestionBundle
	user := fmt.Sprintf("Generate questions for this chunk:\n\n%s", chunkText)

	err := g.llm.GenerateJSON(ctx, questionsSystemPrompt, user, "chunk_questions", &bundle)
	switch {
	case err == nil:
		return &bundle
	case errors.Is(err, core.ErrRefused):
		g.log.Info("question generation refused, continuing without it", "error", err)
		return nil
	case errors.Is(err, core.ErrContextLength):
		g.log.Warn("question generation exceeded context window, continuing without it", "chunk_len", len(chunkText))
		return nil
	default:
		g.log.Error("question generation failed, continuing without it", "error", err)
		return nil
	}
}

// EmbeddableTexts flattens the bundle into derived texts for embedding.
func (b *QuestionBundle) EmbeddableTexts() []string {
	if b == nil {
		return nil
	}
	var texts []string
	for _, q := range b.Questions {
		if q != "" {
			texts = append(texts, q)
		}
	}
	for _, t := range b.MainTopics {
		if t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}
