package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jmiran15/chatmate-ingest/internal/config"
	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for a worker service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for Document

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, chatbot_id, name, content, question, answer, is_pending, storage_url, content_type, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()), COALESCE($11, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.ChatbotID, doc.Name, doc.Content, doc.Question, doc.Answer,
		doc.IsPending, doc.StorageURL, doc.ContentType, doc.CreatedAt, doc.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, chatbot_id, name, content, question, answer, is_pending, storage_url, content_type, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.ChatbotID, &d.Name, &d.Content, &d.Question, &d.Answer,
		&d.IsPending, &d.StorageURL, &d.ContentType, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) UpdateDocumentPending(ctx context.Context, id string, pending bool) error {
	const q = `
		UPDATE documents
		SET is_pending = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, pending)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) UpdateDocumentContent(ctx context.Context, id string, content string) error {
	const q = `
		UPDATE documents
		SET content = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, content)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// Implementing the db interface for Embeddings

func (c *DatabaseClient) DeleteEmbeddingsByDocument(ctx context.Context, documentID string) error {
	const q = `DELETE FROM embeddings WHERE document_id = $1`
	if _, err := c.db.ExecContext(ctx, q, documentID); err != nil {
		return fmt.Errorf("delete embeddings for document %s: %w", documentID, err)
	}
	return nil
}

// InsertEmbeddings writes all rows in one multi-row INSERT. The batcher sizes
// its batches, so a single statement per call bounds write amplification.
func (c *DatabaseClient) InsertEmbeddings(ctx context.Context, rows []models.Embedding) error {
	if len(rows) == 0 {
		return nil
	}

	const cols = 7
	placeholders := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*cols)
	for i, r := range rows {
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			r.ID, pgvector.NewVector(r.Embedding), r.DocumentID, r.ChatbotID,
			r.Content, r.ChunkContent, r.IsQA,
		)
	}

	q := fmt.Sprintf(`
		INSERT INTO embeddings
			(id, embedding, document_id, chatbot_id, content, chunk_content, is_qa)
		VALUES %s
	`, strings.Join(placeholders, ", "))

	if _, err := c.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert %d embeddings: %w", len(rows), err)
	}
	return nil
}

// SearchEmbeddings finds the top-k nearest rows for a chatbot by cosine distance.
func (c *DatabaseClient) SearchEmbeddings(ctx context.Context, chatbotID string, queryVec []float32, limit int) ([]models.SearchResult, error) {
	const q = `
		SELECT id, embedding, document_id, chatbot_id, content, chunk_content, is_qa, created_at,
		       embedding <=> $2 AS distance
		FROM embeddings
		WHERE chatbot_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, chatbotID, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var (
			res models.SearchResult
			emb pgvector.Vector
		)
		if err := rows.Scan(
			&res.Embedding.ID, &emb, &res.Embedding.DocumentID, &res.Embedding.ChatbotID,
			&res.Embedding.Content, &res.Embedding.ChunkContent, &res.Embedding.IsQA,
			&res.Embedding.CreatedAt, &res.Distance,
		); err != nil {
			return nil, err
		}
		res.Embedding.Embedding = emb.Slice()
		out = append(out, res)
	}
	return out, rows.Err()
}
