package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmiran15/chatmate-ingest/internal/logger"
)

func makeTexts(n int) []EmbeddableText {
	texts := make([]EmbeddableText, n)
	for i := range texts {
		texts[i] = EmbeddableText{
			Text:         fmt.Sprintf("text-%d", i),
			Content:      fmt.Sprintf("content-%d", i),
			ChunkContent: fmt.Sprintf("chunk-%d", i),
		}
	}
	return texts
}

func TestEmbedAndPersist_BatchCounts(t *testing.T) {
	tests := []struct {
		name        string
		texts       int
		batchSize   int
		wantBatches int
	}{
		{"exact multiple", 200, 100, 2},
		{"remainder batch", 250, 100, 3},
		{"single undersized batch", 7, 100, 1},
		{"batch of one", 3, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newFakeDB()
			emb := &fakeEmbedder{}
			b := NewEmbedBatcher(db, emb, logger.NewNop())

			written, err := b.EmbedAndPersist(context.Background(), makeTexts(tt.texts), EmbedOptions{
				DocumentID: "doc-1", ChatbotID: "bot-1", BatchSize: tt.batchSize,
			}, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.texts, written)
			assert.Equal(t, tt.wantBatches, emb.callCount(), "one provider call per batch")
			assert.Len(t, db.inserted, tt.wantBatches, "one insert per batch")
			assert.Len(t, db.allRows(), tt.texts)
		})
	}
}

func TestEmbedAndPersist_EmptyInput(t *testing.T) {
	db := newFakeDB()
	emb := &fakeEmbedder{}
	b := NewEmbedBatcher(db, emb, logger.NewNop())

	written, err := b.EmbedAndPersist(context.Background(), nil, EmbedOptions{
		DocumentID: "doc-1", ChatbotID: "bot-1", BatchSize: 100,
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Zero(t, emb.callCount(), "no texts means no provider calls")
	assert.Empty(t, db.inserted)
}

func TestEmbedAndPersist_RowsCarryIdentityAndPayload(t *testing.T) {
	db := newFakeDB()
	b := NewEmbedBatcher(db, &fakeEmbedder{}, logger.NewNop())

	_, err := b.EmbedAndPersist(context.Background(), makeTexts(3), EmbedOptions{
		DocumentID: "doc-9", ChatbotID: "bot-9", BatchSize: 100, IsQA: true,
	}, nil)
	require.NoError(t, err)

	rows := db.allRows()
	require.Len(t, rows, 3)
	ids := make(map[string]bool)
	for i, row := range rows {
		assert.Equal(t, "doc-9", row.DocumentID)
		assert.Equal(t, "bot-9", row.ChatbotID)
		assert.True(t, row.IsQA)
		assert.Equal(t, fmt.Sprintf("content-%d", i), row.Content)
		assert.Equal(t, fmt.Sprintf("chunk-%d", i), row.ChunkContent)
		assert.NotEmpty(t, row.ID)
		assert.False(t, ids[row.ID])
		ids[row.ID] = true
	}
}

func TestEmbedAndPersist_ProgressIsMonotonicAndEndsAt100(t *testing.T) {
	db := newFakeDB()
	b := NewEmbedBatcher(db, &fakeEmbedder{}, logger.NewNop())

	var reports []float64
	_, err := b.EmbedAndPersist(context.Background(), makeTexts(250), EmbedOptions{
		DocumentID: "doc-1", ChatbotID: "bot-1", BatchSize: 100,
	}, func(pct float64) { reports = append(reports, pct) })
	require.NoError(t, err)

	require.Len(t, reports, 3)
	prev := 0.0
	for _, pct := range reports {
		assert.GreaterOrEqual(t, pct, prev)
		assert.LessOrEqual(t, pct, 100.0)
		prev = pct
	}
	assert.InDelta(t, 100, reports[len(reports)-1], 0.001)
}

func TestEmbedAndPersist_ProviderFailureAborts(t *testing.T) {
	db := newFakeDB()
	emb := &fakeEmbedder{err: errors.New("provider down")}
	b := NewEmbedBatcher(db, emb, logger.NewNop())

	written, err := b.EmbedAndPersist(context.Background(), makeTexts(10), EmbedOptions{
		DocumentID: "doc-1", ChatbotID: "bot-1", BatchSize: 5,
	}, nil)
	require.Error(t, err)
	assert.Zero(t, written)
	assert.Empty(t, db.inserted, "nothing may be written when embedding fails")
}

func TestEmbedAndPersist_VectorCountMismatchFails(t *testing.T) {
	db := newFakeDB()
	b := NewEmbedBatcher(db, &fakeEmbedder{short: true}, logger.NewNop())

	_, err := b.EmbedAndPersist(context.Background(), makeTexts(4), EmbedOptions{
		DocumentID: "doc-1", ChatbotID: "bot-1", BatchSize: 100,
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
	assert.Empty(t, db.inserted)
}

func TestEmbedAndPersist_InsertFailureReportsPartialWrite(t *testing.T) {
	db := newFakeDB()
	db.insertErr = errors.New("db down")
	b := NewEmbedBatcher(db, &fakeEmbedder{}, logger.NewNop())

	written, err := b.EmbedAndPersist(context.Background(), makeTexts(10), EmbedOptions{
		DocumentID: "doc-1", ChatbotID: "bot-1", BatchSize: 5,
	}, nil)
	require.Error(t, err)
	assert.Zero(t, written)
}
