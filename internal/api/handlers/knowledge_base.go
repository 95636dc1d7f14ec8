package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/quarrydocs/quarry/internal/api"
	"github.com/quarrydocs/quarry/internal/domain"
)

type KnowledgeBaseService interface {
	Create(ctx context.Context, name, description string) (*domain.KnowledgeBase, error)
	GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	List(ctx context.Context) ([]*domain.KnowledgeBase, error)
	Delete(ctx context.Context, id string) error
}

// KnowledgeBaseEmbedder queues a whole-knowledge-base embedding job.
type KnowledgeBaseEmbedder interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

type KnowledgeBaseHandler struct {
	svc      KnowledgeBaseService
	jobRepo  KnowledgeBaseEmbedder
	newJobID func() string
}

func NewKnowledgeBaseHandler(svc KnowledgeBaseService, jobRepo KnowledgeBaseEmbedder, newJobID func() string) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{svc: svc, jobRepo: jobRepo, newJobID: newJobID}
}

type CreateKnowledgeBaseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type KnowledgeBaseResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func knowledgeBaseToResponse(kb *domain.KnowledgeBase) *KnowledgeBaseResponse {
	return &KnowledgeBaseResponse{
		ID:          kb.ID,
		Name:        kb.Name,
		Description: kb.Description,
		CreatedAt:   kb.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *KnowledgeBaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateKnowledgeBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	kb, err := h.svc.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, knowledgeBaseToResponse(kb))
}

func (h *KnowledgeBaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	kb, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeBaseToResponse(kb))
}

func (h *KnowledgeBaseHandler) List(w http.ResponseWriter, r *http.Request) {
	kbs, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*KnowledgeBaseResponse, len(kbs))
	for i, kb := range kbs {
		responses[i] = knowledgeBaseToResponse(kb)
	}

	api.Success(w, http.StatusOK, responses)
}

type EmbedKnowledgeBaseResponse struct {
	JobID string `json:"job_id"`
}

// Embed queues an embedding pass over every document in the knowledge base.
func (h *KnowledgeBaseHandler) Embed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	kb, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	job := &domain.EmbeddingJob{
		ID:              h.newJobID(),
		KnowledgeBaseID: kb.ID,
		Status:          domain.EmbeddingJobStatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, EmbedKnowledgeBaseResponse{JobID: job.ID})
}

func (h *KnowledgeBaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
