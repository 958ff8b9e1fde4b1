package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
	"github.com/jmiran15/chatmate-ingest/internal/models"
	"github.com/jmiran15/chatmate-ingest/internal/queue"
)

// DocumentHandler creates documents and schedules their ingestion.
type DocumentHandler struct {
	db    core.DbClient
	queue *queue.Queue
	log   *logger.Logger
}

func NewDocumentHandler(db core.DbClient, q *queue.Queue, log *logger.Logger) *DocumentHandler {
	return &DocumentHandler{db: db, queue: q, log: log}
}

type createDocumentRequest struct {
	ChatbotID   string `json:"chatbotId"`
	Name        string `json:"name"`
	Content     string `json:"content"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	StorageURL  string `json:"storageUrl"`
	ContentType string `json:"contentType"`
}

// CreateDocument inserts a document row and enqueues its ingestion job. The
// response is returned as soon as the job is queued.
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.ChatbotID == "" {
		writeError(w, http.StatusBadRequest, "chatbotId is required")
		return
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:          uuid.NewString(),
		ChatbotID:   req.ChatbotID,
		Name:        req.Name,
		Content:     req.Content,
		Question:    req.Question,
		Answer:      req.Answer,
		IsPending:   true,
		StorageURL:  req.StorageURL,
		ContentType: req.ContentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.db.CreateDocument(r.Context(), doc); err != nil {
		h.log.Error("create document failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create document")
		return
	}

	ok, err := h.queue.TryEnqueue(queue.Job{Document: doc})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "ingestion queue is full, retry later")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": doc.ID})
}

// Reingest re-runs the pipeline for an existing document, replacing all of
// its embeddings.
func (h *DocumentHandler) Reingest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.db.GetDocumentByID(r.Context(), id)
	if err != nil || doc == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	ok, err := h.queue.TryEnqueue(queue.Job{DocumentID: id})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "ingestion queue is full, retry later")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// Progress reports the queue's view of a document's ingestion run.
func (h *DocumentHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, ok := h.queue.Status(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no ingestion run recorded for document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documentId": id,
		"state":      status.State,
		"progress":   status.Progress,
		"error":      status.Err,
	})
}
