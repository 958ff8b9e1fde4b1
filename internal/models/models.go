package models

import (
	"strings"
	"time"
)

// Document represents one unit of ingested content for a chatbot. Content may
// arrive inline (crawled page text, pasted Q&A) or live in object storage as
// an uploaded file, in which case Content is empty until extraction runs.
type Document struct {
	ID          string    `db:"id" json:"id"`
	ChatbotID   string    `db:"chatbot_id" json:"chatbot_id"`
	Name        string    `db:"name" json:"name"`
	Content     string    `db:"content" json:"content"`
	Question    string    `db:"question" json:"question"`
	Answer      string    `db:"answer" json:"answer"`
	IsPending   bool      `db:"is_pending" json:"is_pending"`
	StorageURL  string    `db:"storage_url" json:"storage_url"`
	ContentType string    `db:"content_type" json:"content_type"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// IsQA reports whether this document is a question/answer pair rather than
// free-text content.
func (d *Document) IsQA() bool {
	return strings.TrimSpace(d.Question) != "" || strings.TrimSpace(d.Answer) != ""
}

// Embedding is one persisted vector row.
//
// Content is the literal string returned at retrieval time: the chunk's raw
// text for document-sourced rows, the canonical answer for QA-sourced rows,
// independent of which derived variation produced the vector. ChunkContent
// keeps the raw source text backing the row.
type Embedding struct {
	ID           string    `db:"id" json:"id"`
	Embedding    []float32 `db:"embedding" json:"embedding"`
	DocumentID   string    `db:"document_id" json:"document_id"`
	ChatbotID    string    `db:"chatbot_id" json:"chatbot_id"`
	Content      string    `db:"content" json:"content"`
	ChunkContent string    `db:"chunk_content" json:"chunk_content"`
	IsQA         bool      `db:"is_qa" json:"is_qa"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SearchResult is one retrieval hit with its cosine distance to the query.
type SearchResult struct {
	Embedding Embedding `json:"embedding"`
	Distance  float64   `json:"distance"`
}
