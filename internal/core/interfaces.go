package core

import (
	"context"
	"errors"
	"io"

	"github.com/jmiran15/chatmate-ingest/internal/models"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrInvalidArgument marks precondition violations (bad chunk sizing,
	// missing content). Callers must not retry without fixing the input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRefused is returned by completion providers when the model
	// explicitly refuses to produce the requested output.
	ErrRefused = errors.New("model refused")

	// ErrContextLength is returned by completion providers on a
	// context-window overflow.
	ErrContextLength = errors.New("context length exceeded")
)

// DbClient defines all persistence operations the pipeline needs.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	UpdateDocumentPending(ctx context.Context, id string, pending bool) error
	UpdateDocumentContent(ctx context.Context, id string, content string) error

	DeleteEmbeddingsByDocument(ctx context.Context, documentID string) error
	InsertEmbeddings(ctx context.Context, rows []models.Embedding) error
	SearchEmbeddings(ctx context.Context, chatbotID string, queryVec []float32, limit int) ([]models.SearchResult, error)
}

// EmbeddingProvider turns a batch of texts into one vector per text.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionProvider issues one schema-validated chat completion and decodes
// the result into out. Implementations return ErrRefused on a model refusal
// and ErrContextLength on a provider context-window overflow.
type CompletionProvider interface {
	GenerateJSON(ctx context.Context, system, user, schemaName string, out any) error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)

	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
