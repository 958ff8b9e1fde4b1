package ingest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jmiran15/chatmate-ingest/internal/models"
)

// fakeDB records persistence calls in order so tests can assert sequencing
// (stale delete before insert) as well as payloads.
type fakeDB struct {
	mu  sync.Mutex
	ops []string

	deleteErr  error
	insertErr  error
	pendingErr error

	inserted [][]models.Embedding
	pending  map[string]bool
	content  map[string]string
	docs     map[string]*models.Document
	hits     []models.SearchResult
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		pending: make(map[string]bool),
		content: make(map[string]string),
		docs:    make(map[string]*models.Document),
	}
}

func (f *fakeDB) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
}

func (f *fakeDB) CreateDocument(ctx context.Context, doc *models.Document) error {
	f.record("create:" + doc.ID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDB) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	return doc, nil
}

func (f *fakeDB) UpdateDocumentPending(ctx context.Context, id string, pending bool) error {
	f.record(fmt.Sprintf("pending:%s:%t", id, pending))
	if f.pendingErr != nil {
		return f.pendingErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[id] = pending
	return nil
}

func (f *fakeDB) UpdateDocumentContent(ctx context.Context, id string, content string) error {
	f.record("content:" + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content[id] = content
	return nil
}

func (f *fakeDB) DeleteEmbeddingsByDocument(ctx context.Context, documentID string) error {
	f.record("delete:" + documentID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept [][]models.Embedding
	for _, batch := range f.inserted {
		var rows []models.Embedding
		for _, r := range batch {
			if r.DocumentID != documentID {
				rows = append(rows, r)
			}
		}
		if len(rows) > 0 {
			kept = append(kept, rows)
		}
	}
	f.inserted = kept
	return nil
}

func (f *fakeDB) InsertEmbeddings(ctx context.Context, rows []models.Embedding) error {
	f.record(fmt.Sprintf("insert:%d", len(rows)))
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, rows)
	return nil
}

func (f *fakeDB) SearchEmbeddings(ctx context.Context, chatbotID string, queryVec []float32, limit int) ([]models.SearchResult, error) {
	f.record("search:" + chatbotID)
	return f.hits, nil
}

func (f *fakeDB) allRows() []models.Embedding {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.Embedding
	for _, batch := range f.inserted {
		rows = append(rows, batch...)
	}
	return rows
}

// fakeEmbedder returns a constant-dimension vector per text and counts calls.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
	short bool // return one vector fewer than requested
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short && n > 0 {
		n--
	}
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = []float32{1, 2, 3}
	}
	return vecs, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeChat delegates structured generation to a test-provided function.
type fakeChat struct {
	fn func(ctx context.Context, system, user, schemaName string, out any) error
}

func (f *fakeChat) GenerateJSON(ctx context.Context, system, user, schemaName string, out any) error {
	return f.fn(ctx, system, user, schemaName, out)
}

// fakeObjectStore serves a fixed payload for any key.
type fakeObjectStore struct {
	data []byte
	err  error
}

func (f *fakeObjectStore) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	return "https://" + bucket + ".s3.test.amazonaws.com/" + key, nil
}

func (f *fakeObjectStore) DeleteFile(ctx context.Context, bucket, key string) error { return nil }

func (f *fakeObjectStore) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	return f.data, f.err
}

func (f *fakeObjectStore) GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not implemented")
}
