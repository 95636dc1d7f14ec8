package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/quarrydocs/quarry/internal/api"
	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/quarrydocs/quarry/internal/service"
)

type DocumentService interface {
	Create(ctx context.Context, input service.CreateDocumentInput) (*domain.Document, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	QueueEmbedding(ctx context.Context, documentID string) (*domain.Document, error)
	RetryEmbedding(ctx context.Context, documentID string) (*domain.Document, error)
	Delete(ctx context.Context, documentID string) error
}

// SourceURLSigner issues presigned download URLs for archived raw sources.
type SourceURLSigner interface {
	GenerateDownloadURL(ctx context.Context, documentID string) (string, error)
}

type DocumentHandler struct {
	svc    DocumentService
	signer SourceURLSigner
}

// NewDocumentHandler creates a DocumentHandler. The signer is optional;
// pass nil when no source archive is configured.
func NewDocumentHandler(svc DocumentService, signer SourceURLSigner) *DocumentHandler {
	return &DocumentHandler{svc: svc, signer: signer}
}

type CreateDocumentRequest struct {
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Title           string `json:"title"`
	SourceURL       string `json:"source_url"`
	Content         string `json:"content"`
}

type DocumentResponse struct {
	ID              string `json:"id"`
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Title           string `json:"title"`
	SourceURL       string `json:"source_url,omitempty"`
	EmbeddingStatus string `json:"embedding_status"`
	EmbeddingError  string `json:"embedding_error,omitempty"`
	ChunkCount      int    `json:"chunk_count"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:              d.ID,
		KnowledgeBaseID: d.KnowledgeBaseID,
		Title:           d.Title,
		SourceURL:       d.SourceURL,
		EmbeddingStatus: string(d.EmbeddingStatus),
		EmbeddingError:  d.EmbeddingError,
		ChunkCount:      d.ChunkCount,
		CreatedAt:       d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:       d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.KnowledgeBaseID == "" {
		api.Error(w, http.StatusBadRequest, "knowledge_base_id is required")
		return
	}
	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	doc, err := h.svc.Create(r.Context(), service.CreateDocumentInput{
		KnowledgeBaseID: req.KnowledgeBaseID,
		Title:           req.Title,
		SourceURL:       req.SourceURL,
		Content:         req.Content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	knowledgeBaseID := r.URL.Query().Get("knowledge_base_id")
	if knowledgeBaseID == "" {
		api.Error(w, http.StatusBadRequest, "knowledge_base_id is required")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.List(r.Context(), service.ListDocumentsInput{
		KnowledgeBaseID: knowledgeBaseID,
		Cursor:          cursor,
		Limit:           limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(output.Items))
	for i, d := range output.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *DocumentHandler) Embed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.QueueEmbedding(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.RetryEmbedding(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

type DocumentStatusResponse struct {
	ID              string `json:"id"`
	EmbeddingStatus string `json:"embedding_status"`
	EmbeddingError  string `json:"embedding_error,omitempty"`
	ChunkCount      int    `json:"chunk_count"`
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DocumentStatusResponse{
		ID:              doc.ID,
		EmbeddingStatus: string(doc.EmbeddingStatus),
		EmbeddingError:  doc.EmbeddingError,
		ChunkCount:      doc.ChunkCount,
	})
}

type SourceDownloadResponse struct {
	URL string `json:"url"`
}

func (h *DocumentHandler) SourceDownloadURL(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if h.signer == nil {
		api.Error(w, http.StatusNotFound, "source archive not configured")
		return
	}

	// Confirm the document exists before signing a URL for it.
	if _, err := h.svc.GetByID(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	url, err := h.signer.GenerateDownloadURL(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SourceDownloadResponse{URL: url})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
