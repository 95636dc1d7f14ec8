package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/quarrydocs/quarry/internal/api"
	"github.com/quarrydocs/quarry/internal/domain"
)

type SettingsService interface {
	MaskedEmbeddingConfig(ctx context.Context) (domain.EmbeddingConfig, error)
	MaskedRerankerConfig(ctx context.Context) (domain.RerankerConfig, error)
	UpdateEmbeddingConfig(ctx context.Context, cfg domain.EmbeddingConfig) error
	UpdateRerankerConfig(ctx context.Context, cfg domain.RerankerConfig) error
}

type SettingsHandler struct {
	svc SettingsService
}

func NewSettingsHandler(svc SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

type EmbeddingSettingsPayload struct {
	Provider       string `json:"provider"`
	BaseURL        string `json:"base_url,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	Model          string `json:"model"`
	Dimensions     int    `json:"dimensions"`
	BatchSize      int    `json:"batch_size"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
	ContextEnabled bool   `json:"context_enabled"`
}

type RerankerSettingsPayload struct {
	Provider       string            `json:"provider"`
	APIKey         string            `json:"api_key,omitempty"`
	Model          string            `json:"model,omitempty"`
	BaseURL        string            `json:"base_url,omitempty"`
	ResponseFormat string            `json:"response_format,omitempty"`
	CustomHeaders  map[string]string `json:"custom_headers,omitempty"`
	Enabled        bool              `json:"enabled"`
}

func embeddingConfigToPayload(cfg domain.EmbeddingConfig) EmbeddingSettingsPayload {
	return EmbeddingSettingsPayload{
		Provider:       string(cfg.Provider),
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		Dimensions:     cfg.Dimensions,
		BatchSize:      cfg.BatchSize,
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		ContextEnabled: cfg.ContextEnabled,
	}
}

func rerankerConfigToPayload(cfg domain.RerankerConfig) RerankerSettingsPayload {
	return RerankerSettingsPayload{
		Provider:       string(cfg.Provider),
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		BaseURL:        cfg.BaseURL,
		ResponseFormat: string(cfg.ResponseFormat),
		CustomHeaders:  cfg.CustomHeaders,
		Enabled:        cfg.Enabled,
	}
}

func (h *SettingsHandler) GetEmbedding(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.MaskedEmbeddingConfig(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, embeddingConfigToPayload(cfg))
}

func (h *SettingsHandler) UpdateEmbedding(w http.ResponseWriter, r *http.Request) {
	var req EmbeddingSettingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := domain.EmbeddingConfig{
		Provider:       domain.EmbeddingProvider(req.Provider),
		BaseURL:        req.BaseURL,
		APIKey:         req.APIKey,
		Model:          req.Model,
		Dimensions:     req.Dimensions,
		BatchSize:      req.BatchSize,
		ChunkSize:      req.ChunkSize,
		ChunkOverlap:   req.ChunkOverlap,
		ContextEnabled: req.ContextEnabled,
	}

	if err := h.svc.UpdateEmbeddingConfig(r.Context(), cfg); err != nil {
		api.HandleError(w, err)
		return
	}

	masked, err := h.svc.MaskedEmbeddingConfig(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, embeddingConfigToPayload(masked))
}

func (h *SettingsHandler) GetReranker(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.MaskedRerankerConfig(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, rerankerConfigToPayload(cfg))
}

func (h *SettingsHandler) UpdateReranker(w http.ResponseWriter, r *http.Request) {
	var req RerankerSettingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := domain.RerankerConfig{
		Provider:       domain.RerankerProvider(req.Provider),
		APIKey:         req.APIKey,
		Model:          req.Model,
		BaseURL:        req.BaseURL,
		ResponseFormat: domain.RerankResponseFormat(req.ResponseFormat),
		CustomHeaders:  req.CustomHeaders,
		Enabled:        req.Enabled,
	}

	if err := h.svc.UpdateRerankerConfig(r.Context(), cfg); err != nil {
		api.HandleError(w, err)
		return
	}

	masked, err := h.svc.MaskedRerankerConfig(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, rerankerConfigToPayload(masked))
}
