package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/core/ingest"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
	"github.com/jmiran15/chatmate-ingest/internal/models"
)

type memDB struct {
	mu       sync.Mutex
	docs     map[string]*models.Document
	inserted []models.Embedding
	pending  map[string]bool
}

func newMemDB() *memDB {
	return &memDB{docs: make(map[string]*models.Document), pending: make(map[string]bool)}
}

func (m *memDB) CreateDocument(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *memDB) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	return doc, nil
}

func (m *memDB) UpdateDocumentPending(ctx context.Context, id string, pending bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[id] = pending
	return nil
}

func (m *memDB) UpdateDocumentContent(ctx context.Context, id string, content string) error {
	return nil
}

func (m *memDB) DeleteEmbeddingsByDocument(ctx context.Context, documentID string) error {
	return nil
}

func (m *memDB) InsertEmbeddings(ctx context.Context, rows []models.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, rows...)
	return nil
}

func (m *memDB) SearchEmbeddings(ctx context.Context, chatbotID string, queryVec []float32, limit int) ([]models.SearchResult, error) {
	return nil, nil
}

func (m *memDB) rows() []models.Embedding {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Embedding, len(m.inserted))
	copy(out, m.inserted)
	return out
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = []float32{1}
	}
	return vecs, nil
}

type stubChat struct{}

func (stubChat) GenerateJSON(ctx context.Context, system, user, schemaName string, out any) error {
	return fmt.Errorf("enrichment disabled in tests")
}

func newTestQueue(db core.DbClient, workers, depth int) *Queue {
	log := logger.NewNop()
	batcher := ingest.NewEmbedBatcher(db, stubEmbedder{}, log)
	docs := ingest.NewOrchestrator(db,
		ingest.NewAugmenter(stubChat{}, log),
		ingest.NewQuestionGenerator(stubChat{}, log),
		batcher,
		ingest.IngestConfig{ChunkSize: 100, ChunkOverlap: 10, BatchSize: 50},
		log,
	)
	qa := ingest.NewQAOrchestrator(db, ingest.NewQAGenerator(stubChat{}, log), batcher, 50, log)
	extractor := ingest.NewExtractor(db, nil, log)
	return New(db, extractor, docs, qa, workers, depth, log)
}

func waitForState(t *testing.T, q *Queue, docID, state string) Status {
	t.Helper()
	var status Status
	require.Eventually(t, func() bool {
		s, ok := q.Status(docID)
		if !ok {
			return false
		}
		status = s
		return s.State == state
	}, 5*time.Second, 10*time.Millisecond, "document %s never reached state %s", docID, state)
	return status
}

func TestQueue_ProcessesDocumentJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := newMemDB()
	doc := &models.Document{ID: "doc-1", ChatbotID: "bot-1", Content: "some document content", IsPending: true}
	require.NoError(t, db.CreateDocument(ctx, doc))

	q := newTestQueue(db, 1, 8)
	q.Start(ctx)

	require.NoError(t, q.Enqueue(ctx, Job{DocumentID: "doc-1"}))

	status := waitForState(t, q, "doc-1", StateCompleted)
	assert.InDelta(t, 100, status.Progress, 0.001)
	assert.NotEmpty(t, db.rows())
	for _, row := range db.rows() {
		assert.False(t, row.IsQA)
	}
}

func TestQueue_RoutesQADocument(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := newMemDB()
	q := newTestQueue(db, 1, 8)
	q.Start(ctx)

	// A snapshot job carries the document itself; no DB read happens.
	doc := &models.Document{ID: "qa-1", ChatbotID: "bot-1", Question: "Q?", Answer: "A."}
	require.NoError(t, q.Enqueue(ctx, Job{Document: doc}))

	waitForState(t, q, "qa-1", StateCompleted)
	rows := db.rows()
	require.NotEmpty(t, rows)
	for _, row := range rows {
		assert.True(t, row.IsQA, "q&a documents must go through the qa pipeline")
	}
}

func TestQueue_UnknownDocumentFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := newTestQueue(newMemDB(), 1, 8)
	q.Start(ctx)

	require.NoError(t, q.Enqueue(ctx, Job{DocumentID: "missing"}))
	status := waitForState(t, q, "missing", StateFailed)
	assert.Contains(t, status.Err, "not found")
}

func TestQueue_EmptyJobRejected(t *testing.T) {
	q := newTestQueue(newMemDB(), 1, 8)
	err := q.Enqueue(context.Background(), Job{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = q.TryEnqueue(Job{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestQueue_TryEnqueueShedsLoadWhenFull(t *testing.T) {
	// Workers never started, so the channel fills up.
	q := newTestQueue(newMemDB(), 1, 2)

	ok, err := q.TryEnqueue(Job{DocumentID: "a"})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = q.TryEnqueue(Job{DocumentID: "b"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = q.TryEnqueue(Job{DocumentID: "c"})
	require.NoError(t, err)
	assert.False(t, ok, "a full queue must shed, not block")
}

func TestQueue_StatusUnknownDocument(t *testing.T) {
	q := newTestQueue(newMemDB(), 1, 2)
	_, ok := q.Status("never-seen")
	assert.False(t, ok)
}
