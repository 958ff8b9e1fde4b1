package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmiran15/chatmate-ingest/internal/core"
	"github.com/jmiran15/chatmate-ingest/internal/core/retrieval"
	"github.com/jmiran15/chatmate-ingest/internal/logger"
)

type RetrieveHandler struct {
	retriever *retrieval.Retriever
	log       *logger.Logger
}

func NewRetrieveHandler(r *retrieval.Retriever, log *logger.Logger) *RetrieveHandler {
	return &RetrieveHandler{retriever: r, log: log}
}

type retrieveRequest struct {
	ChatbotID string `json:"chatbotId"`
	Query     string `json:"query"`
	TopK      int    `json:"topK"`
}

type retrieveHit struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"documentId"`
	Content    string  `json:"content"`
	IsQA       bool    `json:"isQA"`
	Distance   float64 `json:"distance"`
}

// Retrieve runs a nearest-neighbor search for a chatbot's knowledge base.
func (h *RetrieveHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	hits, err := h.retriever.Retrieve(r.Context(), req.ChatbotID, req.Query, req.TopK)
	if err != nil {
		if errors.Is(err, core.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("retrieval failed", "chatbot_id", req.ChatbotID, "error", err)
		writeError(w, http.StatusInternalServerError, "retrieval failed")
		return
	}

	out := make([]retrieveHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, retrieveHit{
			ID:         hit.Embedding.ID,
			DocumentID: hit.Embedding.DocumentID,
			Content:    hit.Embedding.ChunkContent,
			IsQA:       hit.Embedding.IsQA,
			Distance:   hit.Distance,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}
