package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/quarrydocs/quarry/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Create(ctx context.Context, input service.CreateDocumentInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListDocumentsOutput), args.Error(1)
}

func (m *MockDocumentService) QueueEmbedding(ctx context.Context, documentID string) (*domain.Document, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) RetryEmbedding(ctx context.Context, documentID string) (*domain.Document, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type MockSourceURLSigner struct {
	mock.Mock
}

func (m *MockSourceURLSigner) GenerateDownloadURL(ctx context.Context, documentID string) (string, error) {
	args := m.Called(ctx, documentID)
	return args.String(0), args.Error(1)
}

func testDocument() *domain.Document {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	return &domain.Document{
		ID:              "doc-1",
		KnowledgeBaseID: "kb-1",
		Title:           "Release notes",
		Content:         "content",
		EmbeddingStatus: domain.DocumentEmbeddingPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func newDocRequest(method, target, body string, params map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req
}

func TestDocumentHandler_Create(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Create", mock.Anything, service.CreateDocumentInput{
		KnowledgeBaseID: "kb-1",
		Title:           "Release notes",
		Content:         "content",
	}).Return(testDocument(), nil)

	handler := NewDocumentHandler(mockSvc, nil)

	body := `{"knowledge_base_id":"kb-1","title":"Release notes","content":"content"}`
	req := newDocRequest(http.MethodPost, "/documents", body, nil)
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"doc-1"`)
	assert.Contains(t, w.Body.String(), `"embedding_status":"pending"`)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Create_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing knowledge base", `{"title":"t","content":"c"}`, "knowledge_base_id is required"},
		{"missing title", `{"knowledge_base_id":"kb-1","content":"c"}`, "title is required"},
		{"missing content", `{"knowledge_base_id":"kb-1","title":"t"}`, "content is required"},
		{"invalid json", `{`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockDocumentService)
			handler := NewDocumentHandler(mockSvc, nil)

			req := newDocRequest(http.MethodPost, "/documents", tt.body, nil)
			w := httptest.NewRecorder()

			handler.Create(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
			mockSvc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestDocumentHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

	handler := NewDocumentHandler(mockSvc, nil)

	req := newDocRequest(http.MethodGet, "/documents/missing", "", map[string]string{"id": "missing"})
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_List(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("List", mock.Anything, service.ListDocumentsInput{
		KnowledgeBaseID: "kb-1",
		Limit:           20,
	}).Return(&service.ListDocumentsOutput{
		Items:   []*domain.Document{testDocument()},
		HasMore: false,
	}, nil)

	handler := NewDocumentHandler(mockSvc, nil)

	req := newDocRequest(http.MethodGet, "/documents?knowledge_base_id=kb-1", "", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data DocumentListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Items, 1)
	assert.False(t, resp.Data.HasMore)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_List_RequiresKnowledgeBase(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, nil)

	req := newDocRequest(http.MethodGet, "/documents", "", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestDocumentHandler_Embed(t *testing.T) {
	doc := testDocument()
	mockSvc := new(MockDocumentService)
	mockSvc.On("QueueEmbedding", mock.Anything, "doc-1").Return(doc, nil)

	handler := NewDocumentHandler(mockSvc, nil)

	req := newDocRequest(http.MethodPost, "/documents/doc-1/embed", "", map[string]string{"id": "doc-1"})
	w := httptest.NewRecorder()

	handler.Embed(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Embed_AlreadyProcessing(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("QueueEmbedding", mock.Anything, "doc-1").Return(nil, domain.ErrEmbeddingInProgress)

	handler := NewDocumentHandler(mockSvc, nil)

	req := newDocRequest(http.MethodPost, "/documents/doc-1/embed", "", map[string]string{"id": "doc-1"})
	w := httptest.NewRecorder()

	handler.Embed(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already in progress")
}

func TestDocumentHandler_Status(t *testing.T) {
	doc := testDocument()
	doc.EmbeddingStatus = domain.DocumentEmbeddingFailed
	doc.EmbeddingError = "provider timeout"

	mockSvc := new(MockDocumentService)
	mockSvc.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)

	handler := NewDocumentHandler(mockSvc, nil)

	req := newDocRequest(http.MethodGet, "/documents/doc-1/status", "", map[string]string{"id": "doc-1"})
	w := httptest.NewRecorder()

	handler.Status(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"embedding_status":"failed"`)
	assert.Contains(t, w.Body.String(), "provider timeout")
}

func TestDocumentHandler_SourceDownloadURL(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("GetByID", mock.Anything, "doc-1").Return(testDocument(), nil)

	mockSigner := new(MockSourceURLSigner)
	mockSigner.On("GenerateDownloadURL", mock.Anything, "doc-1").Return("https://s3.example/doc-1?sig=abc", nil)

	handler := NewDocumentHandler(mockSvc, mockSigner)

	req := newDocRequest(http.MethodGet, "/documents/doc-1/source", "", map[string]string{"id": "doc-1"})
	w := httptest.NewRecorder()

	handler.SourceDownloadURL(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sig=abc")
	mockSigner.AssertExpectations(t)
}

func TestDocumentHandler_SourceDownloadURL_NoArchive(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, nil)

	req := newDocRequest(http.MethodGet, "/documents/doc-1/source", "", map[string]string{"id": "doc-1"})
	w := httptest.NewRecorder()

	handler.SourceDownloadURL(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_Delete(t *testing.T) {
	mockSvc := new(MockDocumentService)
	mockSvc.On("Delete", mock.Anything, "doc-1").Return(nil)

	handler := NewDocumentHandler(mockSvc, nil)

	req := newDocRequest(http.MethodDelete, "/documents/doc-1", "", map[string]string{"id": "doc-1"})
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}
