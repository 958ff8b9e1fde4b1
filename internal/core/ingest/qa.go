package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
)

// SimilarQuestions holds rewordings of a QA document's question.
type SimilarQuestions struct {
	Questions []string `json:"questions"`
}

// AnswerAugmentation is the structured enrichment of a QA document's answer.
type AnswerAugmentation struct {
	Summary            string   `json:"summary"`
	Rephrasing         string   `json:"rephrasing"`
	Simplification     string   `json:"simplification"`
	Expansion          string   `json:"expansion"`
	ParagraphVersion   string   `json:"paragraphVersion"`
	Context            string   `json:"context"`
	SourceType         string   `json:"sourceType"`
	TemporalRelevance  string   `json:"temporalRelevance"`
	KeyPoints          []string `json:"keyPoints"`
	Bullets            []string `json:"bullets"`
	Keywords           []string `json:"keywords"`
	PotentialQuestions []string `json:"potentialQuestions"`
	SemanticVariations []string `json:"semanticVariations"`
	RelatedConcepts    []string `json:"relatedConcepts"`
}

const similarQuestionsSystemPrompt = `You are part of a retrieval pipeline for a chatbot's question/answer knowledge base. Given one question, produce diverse rewordings of it: different phrasings, levels of formality, and typical ways a user might actually type it. Every rewording must keep the original meaning. Do not answer the question.`

const answerAugmentationSystemPrompt = `You are part of a retrieval pipeline for a chatbot's question/answer knowledge base. Given a question and its canonical answer, produce a structured set of alternative representations of the answer so it can be retrieved through many phrasings.

Return:
- summary: the answer in one sentence.
- rephrasing: the answer restated in different wording.
- simplification: the answer in plain, simple language.
- expansion: the answer with naturally implied detail spelled out.
- paragraphVersion: the answer as one flowing paragraph.
- context: the situation in which this answer applies.
- sourceType: a short label for the kind of knowledge (e.g. policy, pricing, how-to).
- temporalRelevance: a short note on whether the answer is time-sensitive.
- keyPoints, bullets, keywords, potentialQuestions, semanticVariations, relatedConcepts: lists as named.

Base everything strictly on the provided answer. Do not invent facts.`

// QAGenerator produces the two enrichment bundles for a question/answer
// document. Same absorption contract as the chunk enrichers.
type QAGenerator struct {
	llm core.CompletionProvider
	log *logger.Logger
}

func NewQAGenerator(llm core.CompletionProvider, log *logger.Logger) *QAGenerator {
	return &QAGenerator{llm: llm, log: log}
}

func (g *QAGenerator) GenerateSimilarQuestions(ctx context.Context, question string) *SimilarQuestions {
	var out SimilarQuestions
	user := fmt.Sprintf("Question:\n\n%s", question)

	err := g.llm.GenerateJSON(ctx, similarQuestionsSystemPrompt, user, "similar_questions", &out)
	if err != nil {
		g.logAbsorbed("similar question generation", err)
		return nil
	}
	return &out
}

func (g *QAGenerator) AugmentAnswer(ctx context.Context, question, answer string) *AnswerAugmentation {
	var out AnswerAugmentation
	user := fmt.Sprintf("Question:\n%s\n\nAnswer:\n%s", question, answer)

	err := g.llm.GenerateJSON(ctx, answerAugmentationSystemPrompt, user, "answer_augmentation", &out)
	if err != nil {
		g.logAbsorbed("answer augmentation", err)
		return nil
	}
	return &out
}

func (g *QAGenerator) logAbsorbed(op string, err error) {
	switch {
	case errors.Is(err, core.ErrRefused):
		g.log.Info(op+" refused, continuing without it", "error", err)
	case errors.Is(err, core.ErrContextLength):
		g.log.Warn(op+" exceeded context window, continuing without it", "error", err)
	default:
		g.log.Error(op+" failed, continuing without it", "error", err)
	}
}

// EmbeddableTexts flattens the augmentation into derived texts for embedding.
func (a *AnswerAugmentation) EmbeddableTexts() []string {
	if a == nil {
		return nil
	}
	var texts []string
	appendText := func(s string) {
		if s != "" {
			texts = append(texts, s)
		}
	}
	appendText(a.Summary)
	appendText(a.Rephrasing)
	appendText(a.Simplification)
	appendText(a.Expansion)
	appendText(a.ParagraphVersion)
	appendText(a.Context)
	appendText(a.SourceType)
	appendText(a.TemporalRelevance)
	for _, s := range a.KeyPoints {
		appendText(s)
	}
	for _, s := range a.Bullets {
		appendText(s)
	}
	for _, s := range a.Keywords {
		appendText(s)
	}
	for _, s := range a.PotentialQuestions {
		appendText(s)
	}
	for _, s := range a.SemanticVariations {
		appendText(s)
	}
	for _, s := range a.RelatedConcepts {
		appendText(s)
	}
	return texts
}
