package ingest

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/models"
)

// Chunk is an ephemeral slice of a document's content. Chunks are never
// persisted directly; they exist only for the duration of one ingestion run.
type Chunk struct {
	ID         string
	DocumentID string
	ChatbotID  string
	Content    string
}

// Split walks the document content left to right producing fixed-size chunks
// that overlap by `overlap` characters. Boundaries are character-index based,
// not token- or word-aware; callers must tolerate chunks that split mid-word.
//
// When the text remaining beyond the current chunk is at most the overlap,
// the tail is folded into one final chunk instead of emitting a trailing
// near-empty chunk. Every chunk before the last has length exactly chunkSize;
// the last carries at most chunkSize+overlap characters.
func Split(doc *models.Document, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrInvalidArgument, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", core.ErrInvalidArgument, overlap, chunkSize)
	}
	if doc == nil || doc.Content == "" {
		return nil, fmt.Errorf("%w: document has no content", core.ErrInvalidArgument)
	}

	runes := []rune(doc.Content)
	step := chunkSize - overlap

	var chunks []Chunk
	for start := 0; ; start += step {
		remainingBeyond := len(runes) - (start + chunkSize)
		if remainingBeyond <= overlap {
			chunks = append(chunks, newChunk(doc, string(runes[start:])))
			break
		}
		chunks = append(chunks, newChunk(doc, string(runes[start:start+chunkSize])))
	}
	return chunks, nil
}

func newChunk(doc *models.Document, content string) Chunk {
	return Chunk{
		ID:         uuid.New().String(),
		DocumentID: doc.ID,
		ChatbotID:  doc.ChatbotID,
		Content:    content,
	}
}
