package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
	"github.com/jmiran15/chatmate-ingest/internal/models"
)

// Extractor resolves the text content of storage-backed documents. Crawled
// and Q&A documents arrive with inline content; uploaded files live in object
// storage and get their text extracted with docconv before chunking.
type Extractor struct {
	db  core.DbClient
	obj core.ObjectClient
	log *logger.Logger
}

func NewExtractor(db core.DbClient, obj core.ObjectClient, log *logger.Logger) *Extractor {
	return &Extractor{db: db, obj: obj, log: log}
}

// ResolveContent fills doc.Content from object storage when it is empty and a
// storage URL is present. Extraction failures propagate: a document that
// cannot produce text cannot be chunked.
func (e *Extractor) ResolveContent(ctx context.Context, doc *models.Document) error {
	if doc.Content != "" || doc.StorageURL == "" {
		return nil
	}
	if e.obj == nil {
		return fmt.Errorf("document %s has storage url but no object client is configured", doc.ID)
	}

	bucket, key := parseS3URL(doc.StorageURL)
	data, err := e.obj.GetFile(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("fetch source file: %w", err)
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}

	var text string
	if strings.HasPrefix(contentType, "text/") {
		text = string(data)
	} else {
		res, err := docconv.Convert(bytes.NewReader(data), contentType, false)
		if err != nil {
			return fmt.Errorf("extract text from %s: %w", contentType, err)
		}
		text = res.Body
	}
	text = strings.TrimSpace(text)

	doc.Content = text
	if err := e.db.UpdateDocumentContent(ctx, doc.ID, text); err != nil {
		return fmt.Errorf("store extracted content: %w", err)
	}
	e.log.Info("extracted document content", "document_id", doc.ID, "content_type", contentType, "chars", len(text))
	return nil
}

// parseS3URL extracts the bucket and key from a typical virtual-hosted-style
// S3 URL, e.g. https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf.
func parseS3URL(u string) (bucket, key string) {
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	parts := strings.Split(host, ".")
	if len(parts) > 0 {
		bucket = parts[0]
	}
	return bucket, key
}
