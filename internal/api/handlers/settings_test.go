package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSettingsService struct {
	mock.Mock
}

func (m *MockSettingsService) MaskedEmbeddingConfig(ctx context.Context) (domain.EmbeddingConfig, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.EmbeddingConfig), args.Error(1)
}

func (m *MockSettingsService) MaskedRerankerConfig(ctx context.Context) (domain.RerankerConfig, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.RerankerConfig), args.Error(1)
}

func (m *MockSettingsService) UpdateEmbeddingConfig(ctx context.Context, cfg domain.EmbeddingConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockSettingsService) UpdateRerankerConfig(ctx context.Context, cfg domain.RerankerConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func TestSettingsHandler_GetEmbedding_Masked(t *testing.T) {
	cfg := domain.DefaultEmbeddingConfig()
	cfg.APIKey = "****1234"

	mockSvc := new(MockSettingsService)
	mockSvc.On("MaskedEmbeddingConfig", mock.Anything).Return(cfg, nil)

	handler := NewSettingsHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/settings/embedding", nil)
	w := httptest.NewRecorder()

	handler.GetEmbedding(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data EmbeddingSettingsPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "****1234", resp.Data.APIKey)
	assert.Equal(t, string(domain.EmbeddingProviderOpenAI), resp.Data.Provider)
}

func TestSettingsHandler_UpdateEmbedding(t *testing.T) {
	mockSvc := new(MockSettingsService)
	mockSvc.On("UpdateEmbeddingConfig", mock.Anything, mock.MatchedBy(func(cfg domain.EmbeddingConfig) bool {
		return cfg.Provider == domain.EmbeddingProviderOpenAI &&
			cfg.APIKey == "sk-new-key" &&
			cfg.ChunkSize == 512
	})).Return(nil)

	masked := domain.DefaultEmbeddingConfig()
	masked.APIKey = "****-key"
	mockSvc.On("MaskedEmbeddingConfig", mock.Anything).Return(masked, nil)

	handler := NewSettingsHandler(mockSvc)

	body := `{"provider":"openai","api_key":"sk-new-key","model":"text-embedding-3-small","dimensions":1536,"batch_size":16,"chunk_size":512,"chunk_overlap":64}`
	req := httptest.NewRequest(http.MethodPut, "/settings/embedding", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.UpdateEmbedding(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-new-key")
	mockSvc.AssertExpectations(t)
}

func TestSettingsHandler_UpdateEmbedding_Invalid(t *testing.T) {
	mockSvc := new(MockSettingsService)
	mockSvc.On("UpdateEmbeddingConfig", mock.Anything, mock.Anything).Return(
		domain.NewDomainError(domain.ErrCodeValidation, "batch size must be at least 1"))

	handler := NewSettingsHandler(mockSvc)

	body := `{"provider":"openai","batch_size":0}`
	req := httptest.NewRequest(http.MethodPut, "/settings/embedding", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.UpdateEmbedding(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "batch size")
}

func TestSettingsHandler_GetReranker_Masked(t *testing.T) {
	cfg := domain.RerankerConfig{
		Provider: domain.RerankerProviderCohere,
		APIKey:   "****wxyz",
		Model:    "rerank-v3.5",
		Enabled:  true,
	}

	mockSvc := new(MockSettingsService)
	mockSvc.On("MaskedRerankerConfig", mock.Anything).Return(cfg, nil)

	handler := NewSettingsHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/settings/reranker", nil)
	w := httptest.NewRecorder()

	handler.GetReranker(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data RerankerSettingsPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "****wxyz", resp.Data.APIKey)
	assert.True(t, resp.Data.Enabled)
}

func TestSettingsHandler_UpdateReranker(t *testing.T) {
	mockSvc := new(MockSettingsService)
	mockSvc.On("UpdateRerankerConfig", mock.Anything, mock.MatchedBy(func(cfg domain.RerankerConfig) bool {
		return cfg.Provider == domain.RerankerProviderJina && cfg.Enabled
	})).Return(nil)

	masked := domain.RerankerConfig{
		Provider: domain.RerankerProviderJina,
		APIKey:   "****5678",
		Enabled:  true,
	}
	mockSvc.On("MaskedRerankerConfig", mock.Anything).Return(masked, nil)

	handler := NewSettingsHandler(mockSvc)

	body := `{"provider":"jina","api_key":"jina-key-5678","enabled":true}`
	req := httptest.NewRequest(http.MethodPut, "/settings/reranker", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.UpdateReranker(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "jina-key-5678")
	mockSvc.AssertExpectations(t)
}

func TestSettingsHandler_UpdateReranker_InvalidBody(t *testing.T) {
	mockSvc := new(MockSettingsService)
	handler := NewSettingsHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPut, "/settings/reranker", strings.NewReader("{"))
	w := httptest.NewRecorder()

	handler.UpdateReranker(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "UpdateRerankerConfig", mock.Anything, mock.Anything)
}
