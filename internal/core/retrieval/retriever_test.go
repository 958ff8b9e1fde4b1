package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
	"github.com/jmiran15/chatmate-ingest/internal/models"
)

type searchDB struct {
	core.DbClient

	mu       sync.Mutex
	searches int
	hits     []models.SearchResult
	err      error
}

func (f *searchDB) SearchEmbeddings(ctx context.Context, chatbotID string, queryVec []float32, limit int) ([]models.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	return f.hits, f.err
}

func (f *searchDB) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{0.1, 0.2}
	}
	return vecs, nil
}

type stubChat struct {
	fn func(out any) error
}

func (s stubChat) GenerateJSON(ctx context.Context, system, user, schemaName string, out any) error {
	return s.fn(out)
}

func hit(id string, distance float64) models.SearchResult {
	return models.SearchResult{
		Embedding: models.Embedding{ID: id, DocumentID: "doc-1", ChunkContent: "text " + id},
		Distance:  distance,
	}
}

func TestRetrieve_AugmentationFansOutSearches(t *testing.T) {
	db := &searchDB{hits: []models.SearchResult{hit("e1", 0.2), hit("e2", 0.4)}}
	chat := stubChat{fn: func(out any) error {
		aug := out.(*queryAugmentation)
		aug.Rephrasings = []string{"other phrasing", "third phrasing"}
		aug.HypotheticalAnswer = "a likely answer"
		return nil
	}}
	r := NewRetriever(db, stubEmbedder{}, chat, logger.NewNop())

	hits, err := r.Retrieve(context.Background(), "bot-1", "what is x?", 5)
	require.NoError(t, err)

	// raw query + 2 rephrasings + 1 hypothetical answer.
	assert.Equal(t, 4, db.searchCount())
	// Identical rows from each search collapse to one.
	require.Len(t, hits, 2)
	assert.Equal(t, "e1", hits[0].Embedding.ID)
	assert.Equal(t, "e2", hits[1].Embedding.ID)
}

func TestRetrieve_AugmentationFailureDegradesToRawQuery(t *testing.T) {
	db := &searchDB{hits: []models.SearchResult{hit("e1", 0.3)}}
	chat := stubChat{fn: func(out any) error { return errors.New("llm down") }}
	r := NewRetriever(db, stubEmbedder{}, chat, logger.NewNop())

	hits, err := r.Retrieve(context.Background(), "bot-1", "what is x?", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, db.searchCount(), "only the raw query is searched")
	assert.Len(t, hits, 1)
}

func TestRetrieve_ResultsRankedByDistanceAndTruncated(t *testing.T) {
	db := &searchDB{hits: []models.SearchResult{hit("far", 0.9), hit("near", 0.1), hit("mid", 0.5)}}
	chat := stubChat{fn: func(out any) error { return errors.New("skip augmentation") }}
	r := NewRetriever(db, stubEmbedder{}, chat, logger.NewNop())

	hits, err := r.Retrieve(context.Background(), "bot-1", "q", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].Embedding.ID)
	assert.Equal(t, "mid", hits[1].Embedding.ID)
}

func TestRetrieve_InvalidArguments(t *testing.T) {
	r := NewRetriever(&searchDB{}, stubEmbedder{}, nil, logger.NewNop())

	_, err := r.Retrieve(context.Background(), "", "query", 5)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = r.Retrieve(context.Background(), "bot-1", "   ", 5)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestRetrieve_SearchFailurePropagatesWhenNothingFound(t *testing.T) {
	db := &searchDB{err: errors.New("db down")}
	r := NewRetriever(db, stubEmbedder{}, nil, logger.NewNop())

	_, err := r.Retrieve(context.Background(), "bot-1", "q", 5)
	require.Error(t, err)
}
