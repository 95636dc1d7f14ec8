package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockKnowledgeBaseService struct {
	mock.Mock
}

func (m *MockKnowledgeBaseService) Create(ctx context.Context, name, description string) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseService) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseService) List(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockKnowledgeBaseEmbedder struct {
	mock.Mock
}

func (m *MockKnowledgeBaseEmbedder) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func testKnowledgeBase() *domain.KnowledgeBase {
	return &domain.KnowledgeBase{
		ID:        "kb-1",
		Name:      "Engineering",
		CreatedAt: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestKnowledgeBaseHandler_Create(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	mockSvc.On("Create", mock.Anything, "Engineering", "team docs").Return(testKnowledgeBase(), nil)

	handler := NewKnowledgeBaseHandler(mockSvc, nil, nil)

	body := `{"name":"Engineering","description":"team docs"}`
	req := httptest.NewRequest(http.MethodPost, "/knowledge-bases", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"kb-1"`)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeBaseHandler_Create_MissingName(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/knowledge-bases", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeBaseHandler_Embed(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	mockSvc.On("GetByID", mock.Anything, "kb-1").Return(testKnowledgeBase(), nil)

	mockJobs := new(MockKnowledgeBaseEmbedder)
	mockJobs.On("Create", mock.Anything, mock.MatchedBy(func(job *domain.EmbeddingJob) bool {
		return job.ID == "job-1" &&
			job.KnowledgeBaseID == "kb-1" &&
			job.DocumentID == "" &&
			job.Status == domain.EmbeddingJobStatusPending
	})).Return(nil)

	handler := NewKnowledgeBaseHandler(mockSvc, mockJobs, func() string { return "job-1" })

	req := newDocRequest(http.MethodPost, "/knowledge-bases/kb-1/embed", "", map[string]string{"id": "kb-1"})
	w := httptest.NewRecorder()

	handler.Embed(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"job_id":"job-1"`)
	mockJobs.AssertExpectations(t)
}

func TestKnowledgeBaseHandler_Embed_NotFound(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	mockSvc.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrKnowledgeBaseNotFound)

	mockJobs := new(MockKnowledgeBaseEmbedder)
	handler := NewKnowledgeBaseHandler(mockSvc, mockJobs, func() string { return "job-1" })

	req := newDocRequest(http.MethodPost, "/knowledge-bases/missing/embed", "", map[string]string{"id": "missing"})
	w := httptest.NewRecorder()

	handler.Embed(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockJobs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestKnowledgeBaseHandler_Delete(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	mockSvc.On("Delete", mock.Anything, "kb-1").Return(nil)

	handler := NewKnowledgeBaseHandler(mockSvc, nil, nil)

	req := newDocRequest(http.MethodDelete, "/knowledge-bases/kb-1", "", map[string]string{"id": "kb-1"})
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}
