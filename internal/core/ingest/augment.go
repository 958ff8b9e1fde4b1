package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
)

// AugmentationBundle is the structured enrichment an LLM produces for one
// chunk. Every non-empty field becomes an additional embeddable text, so the
// same chunk can be retrieved through many semantic phrasings.
type AugmentationBundle struct {
	ConciseSummary     string   `json:"conciseSummary"`
	KeyPoints          []string `json:"keyPoints"`
	RephrasedVersion   string   `json:"rephrasedVersion"`
	SimplifiedVersion  string   `json:"simplifiedVersion"`
	Keywords           []string `json:"keywords"`
	SemanticVariations []string `json:"semanticVariations"`
	MainTopics         []string `json:"mainTopics"`
	Entities           []string `json:"entities"`
	ToneStyle          string   `json:"toneStyle"`
	ContentType        string   `json:"contentType"`
	DataPoints         []string `json:"dataPoints"`
	TruncatedIdeas     []string `json:"truncatedIdeas"`
}

const augmentSystemPrompt = `You are a document analysis engine inside a retrieval pipeline. Given one chunk of a larger document, produce a structured analysis used to build alternative search representations of the chunk.

Return:
- conciseSummary: a one- or two-sentence summary of the chunk.
- keyPoints: the distinct factual points the chunk makes.
- rephrasedVersion: the full chunk restated in different wording, preserving all information.
- simplifiedVersion: the chunk restated in plain, simple language.
- keywords: search keywords a user might type to find this content.
- semanticVariations: alternative phrasings of the chunk's core statements.
- mainTopics: the broad topics the chunk covers.
- entities: named entities (people, products, organizations, places) mentioned.
- toneStyle: a short label for the chunk's tone and style.
- contentType: a short label for the kind of content (e.g. reference, tutorial, policy, marketing).
- dataPoints: concrete figures, dates or quantities, if any.
- truncatedIdeas: ideas that appear cut off at the chunk boundaries, if any.

Base everything strictly on the chunk text. Do not invent facts.`

// Augmenter produces semantic variations for a chunk. Enrichment is
// best-effort: provider refusals, context overflows and transport errors are
// logged and reported as nil so the caller proceeds with reduced enrichment
// rather than aborting the run.
type Augmenter struct {
	llm core.CompletionProvider
	log *logger.Logger
}

func NewAugmenter(llm core.CompletionProvider, log *logger.Logger) *Augmenter {
	return &Augmenter{llm: llm, log: log}
}

func (a *Augmenter) Augment(ctx context.Context, chunkText string) *AugmentationBundle {
	var bundle AugmentationBundle
	user := fmt.Sprintf("Analyze this chunk:\n\n%s", chunkText)

	err := a.llm.GenerateJSON(ctx, augmentSystemPrompt, user, "chunk_augmentation", &bundle)
	switch {
	case err == nil:
		return &bundle
	case errors.Is(err, core.ErrRefused):
		a.log.Info("augmentation refused, continuing without it", "error", err)
		return nil
	case errors.Is(err, core.ErrContextLength):
		// No re-split/retry here; the chunk simply loses its enrichment.
		a.log.Warn("augmentation exceeded context window, continuing without it", "chunk_len", len(chunkText))
		return nil
	default:
		a.log.Error("augmentation failed, continuing without it", "error", err)
		return nil
	}
}

// EmbeddableTexts flattens the bundle into the list of derived texts that get
// their own embedding rows. Empty fields are skipped.
func (b *AugmentationBundle) EmbeddableTexts() []string {
	if b == nil {
		return nil
	}
	var texts []string
	appendText := func(s string) {
		if s != "" {
			texts = append(texts, s)
		}
	}
	appendText(b.ConciseSummary)
	for _, p := range b.KeyPoints {
		appendText(p)
	}
	appendText(b.RephrasedVersion)
	appendText(b.SimplifiedVersion)
	for _, k := range b.Keywords {
		appendText(k)
	}
	for _, v := range b.SemanticVariations {
		appendText(v)
	}
	for _, t := range b.MainTopics {
		appendText(t)
	}
	for _, e := range b.Entities {
		appendText(e)
	}
	appendText(b.ToneStyle)
	appendText(b.ContentType)
	// DataPoints and TruncatedIdeas inform analysis but are not embedded.
	return texts
}
