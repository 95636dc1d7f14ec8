package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/quarrydocs/quarry/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListByKnowledgeBaseWithCursor(ctx context.Context, knowledgeBaseID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	args := m.Called(ctx, knowledgeBaseID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

func (m *MockDocumentRepository) Update(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockEmbeddingJobRepository is a mock implementation of EmbeddingJobRepositoryInterface
type MockEmbeddingJobRepository struct {
	mock.Mock
}

func (m *MockEmbeddingJobRepository) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockSourceArchive is a mock implementation of SourceArchive
type MockSourceArchive struct {
	mock.Mock
}

func (m *MockSourceArchive) Store(ctx context.Context, documentID string, content []byte) error {
	args := m.Called(ctx, documentID, content)
	return args.Error(0)
}

func (m *MockSourceArchive) Delete(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

type testTxRepos struct {
	documents DocumentRepositoryInterface
	jobs      EmbeddingJobRepositoryInterface
}

func (r *testTxRepos) Documents() DocumentRepositoryInterface        { return r.documents }
func (r *testTxRepos) EmbeddingJobs() EmbeddingJobRepositoryInterface { return r.jobs }

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}

func TestDocumentService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("registers document pending and queues embedding job", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)
		mockUUIDGen := NewMockUUIDGenerator("doc-id-1", "job-id-1")

		service := NewDocumentServiceWithUUIDGen(mockDocRepo, mockJobRepo, nil, mockUUIDGen)

		input := CreateDocumentInput{
			KnowledgeBaseID: "kb-1",
			Title:           "Release Notes",
			SourceURL:       "https://example.com/notes",
			Content:         "Version 2 adds incremental sync.",
		}

		mockDocRepo.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.ID == "doc-id-1" &&
				d.KnowledgeBaseID == "kb-1" &&
				d.Title == "Release Notes" &&
				d.SourceURL == "https://example.com/notes" &&
				d.EmbeddingStatus == domain.DocumentEmbeddingPending
		})).Return(nil)

		mockJobRepo.On("Create", mock.Anything, mock.MatchedBy(func(job *domain.EmbeddingJob) bool {
			return job.ID == "job-id-1" &&
				job.DocumentID == "doc-id-1" &&
				job.Status == domain.EmbeddingJobStatusPending &&
				job.Retries == 0
		})).Return(nil)

		result, err := service.Create(ctx, input)

		require.NoError(t, err)
		assert.Equal(t, "doc-id-1", result.ID)
		assert.Equal(t, domain.DocumentEmbeddingPending, result.EmbeddingStatus)

		mockDocRepo.AssertExpectations(t)
		mockJobRepo.AssertExpectations(t)
	})

	t.Run("returns validation error on missing title", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)

		service := NewDocumentService(mockDocRepo, mockJobRepo, nil)

		_, err := service.Create(ctx, CreateDocumentInput{
			KnowledgeBaseID: "kb-1",
			Content:         "body",
		})

		require.Error(t, err)
		mockDocRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		mockJobRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("archives raw content best effort", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)
		mockArchive := new(MockSourceArchive)
		mockUUIDGen := NewMockUUIDGenerator("doc-id-1", "job-id-1")

		service := NewDocumentServiceWithUUIDGen(mockDocRepo, mockJobRepo, mockArchive, mockUUIDGen)

		mockDocRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		mockJobRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		mockArchive.On("Store", mock.Anything, "doc-id-1", []byte("body")).Return(errors.New("bucket unavailable"))

		result, err := service.Create(ctx, CreateDocumentInput{
			KnowledgeBaseID: "kb-1",
			Title:           "Doc",
			Content:         "body",
		})

		// An archive failure must not fail the create.
		require.NoError(t, err)
		assert.Equal(t, "doc-id-1", result.ID)
		mockArchive.AssertExpectations(t)
	})

	t.Run("creates document and job in one transaction when runner present", func(t *testing.T) {
		txDocRepo := new(MockDocumentRepository)
		txJobRepo := new(MockEmbeddingJobRepository)
		runner := &testTxRunner{repos: &testTxRepos{documents: txDocRepo, jobs: txJobRepo}}

		outerDocRepo := new(MockDocumentRepository)
		outerJobRepo := new(MockEmbeddingJobRepository)

		service := NewDocumentServiceWithTx(outerDocRepo, outerJobRepo, nil, runner)

		txDocRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		txJobRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		_, err := service.Create(ctx, CreateDocumentInput{
			KnowledgeBaseID: "kb-1",
			Title:           "Doc",
			Content:         "body",
		})

		require.NoError(t, err)
		assert.True(t, runner.called)
		txDocRepo.AssertExpectations(t)
		txJobRepo.AssertExpectations(t)
		outerDocRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		outerJobRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("transaction failure aborts create", func(t *testing.T) {
		txDocRepo := new(MockDocumentRepository)
		txJobRepo := new(MockEmbeddingJobRepository)
		runner := &testTxRunner{repos: &testTxRepos{documents: txDocRepo, jobs: txJobRepo}}

		service := NewDocumentServiceWithTx(new(MockDocumentRepository), new(MockEmbeddingJobRepository), nil, runner)

		txDocRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		txJobRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

		_, err := service.Create(ctx, CreateDocumentInput{
			KnowledgeBaseID: "kb-1",
			Title:           "Doc",
			Content:         "body",
		})

		require.Error(t, err)
	})
}

func TestDocumentService_RetryEmbedding(t *testing.T) {
	ctx := context.Background()

	t.Run("resets failed document to pending and queues job", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)
		mockUUIDGen := NewMockUUIDGenerator("job-id-2")

		service := NewDocumentServiceWithUUIDGen(mockDocRepo, mockJobRepo, nil, mockUUIDGen)

		failed := &domain.Document{
			ID:              "doc-1",
			KnowledgeBaseID: "kb-1",
			Title:           "Doc",
			EmbeddingStatus: domain.DocumentEmbeddingFailed,
			EmbeddingError:  "provider returned 500",
			CreatedAt:       time.Now().UTC(),
		}

		mockDocRepo.On("GetByID", mock.Anything, "doc-1").Return(failed, nil)
		mockDocRepo.On("Update", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.EmbeddingStatus == domain.DocumentEmbeddingPending && d.EmbeddingError == ""
		})).Return(nil)
		mockJobRepo.On("Create", mock.Anything, mock.MatchedBy(func(job *domain.EmbeddingJob) bool {
			return job.ID == "job-id-2" && job.DocumentID == "doc-1"
		})).Return(nil)

		doc, err := service.RetryEmbedding(ctx, "doc-1")

		require.NoError(t, err)
		assert.Equal(t, domain.DocumentEmbeddingPending, doc.EmbeddingStatus)
		mockDocRepo.AssertExpectations(t)
		mockJobRepo.AssertExpectations(t)
	})

	t.Run("rejects retry for non-failed document", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)

		service := NewDocumentService(mockDocRepo, mockJobRepo, nil)

		mockDocRepo.On("GetByID", mock.Anything, "doc-1").Return(&domain.Document{
			ID:              "doc-1",
			KnowledgeBaseID: "kb-1",
			Title:           "Doc",
			EmbeddingStatus: domain.DocumentEmbeddingCompleted,
		}, nil)

		_, err := service.RetryEmbedding(ctx, "doc-1")

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeInvalidOperation, domainErr.Code)
		mockJobRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestDocumentService_QueueEmbedding(t *testing.T) {
	ctx := context.Background()

	t.Run("queues job for completed document", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)
		mockUUIDGen := NewMockUUIDGenerator("job-id-3")

		service := NewDocumentServiceWithUUIDGen(mockDocRepo, mockJobRepo, nil, mockUUIDGen)

		completed := &domain.Document{
			ID:              "doc-1",
			KnowledgeBaseID: "kb-1",
			Title:           "Doc",
			EmbeddingStatus: domain.DocumentEmbeddingCompleted,
			ChunkCount:      4,
			CreatedAt:       time.Now().UTC(),
		}

		mockDocRepo.On("GetByID", mock.Anything, "doc-1").Return(completed, nil)
		mockDocRepo.On("Update", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.EmbeddingStatus == domain.DocumentEmbeddingPending
		})).Return(nil)
		mockJobRepo.On("Create", mock.Anything, mock.MatchedBy(func(job *domain.EmbeddingJob) bool {
			return job.ID == "job-id-3" && job.DocumentID == "doc-1" && job.Status == domain.EmbeddingJobStatusPending
		})).Return(nil)

		doc, err := service.QueueEmbedding(ctx, "doc-1")

		require.NoError(t, err)
		assert.Equal(t, domain.DocumentEmbeddingPending, doc.EmbeddingStatus)
		mockDocRepo.AssertExpectations(t)
		mockJobRepo.AssertExpectations(t)
	})

	t.Run("clears previous embedding error", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)
		mockUUIDGen := NewMockUUIDGenerator("job-id-4")

		service := NewDocumentServiceWithUUIDGen(mockDocRepo, mockJobRepo, nil, mockUUIDGen)

		failed := &domain.Document{
			ID:              "doc-1",
			KnowledgeBaseID: "kb-1",
			Title:           "Doc",
			EmbeddingStatus: domain.DocumentEmbeddingFailed,
			EmbeddingError:  "provider timeout",
			CreatedAt:       time.Now().UTC(),
		}

		mockDocRepo.On("GetByID", mock.Anything, "doc-1").Return(failed, nil)
		mockDocRepo.On("Update", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.EmbeddingStatus == domain.DocumentEmbeddingPending && d.EmbeddingError == ""
		})).Return(nil)
		mockJobRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

		doc, err := service.QueueEmbedding(ctx, "doc-1")

		require.NoError(t, err)
		assert.Empty(t, doc.EmbeddingError)
		mockDocRepo.AssertExpectations(t)
	})

	t.Run("rejects document that is already processing", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)

		service := NewDocumentService(mockDocRepo, mockJobRepo, nil)

		mockDocRepo.On("GetByID", mock.Anything, "doc-1").Return(&domain.Document{
			ID:              "doc-1",
			KnowledgeBaseID: "kb-1",
			Title:           "Doc",
			EmbeddingStatus: domain.DocumentEmbeddingProcessing,
		}, nil)

		_, err := service.QueueEmbedding(ctx, "doc-1")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbeddingInProgress)
		mockDocRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		mockJobRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("returns not found for missing document", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)

		service := NewDocumentService(mockDocRepo, mockJobRepo, nil)

		mockDocRepo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

		_, err := service.QueueEmbedding(ctx, "missing")

		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("applies default limit and passes cursor through", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		service := NewDocumentService(mockDocRepo, new(MockEmbeddingJobRepository), nil)

		docs := []*domain.Document{
			{ID: "doc-1", KnowledgeBaseID: "kb-1", Title: "A"},
			{ID: "doc-2", KnowledgeBaseID: "kb-1", Title: "B"},
		}
		mockDocRepo.On("ListByKnowledgeBaseWithCursor", mock.Anything, "kb-1", (*pagination.Cursor)(nil), 20).
			Return(&DocumentPageResult{Items: docs, NextCursor: "", HasMore: false}, nil)

		out, err := service.List(ctx, ListDocumentsInput{KnowledgeBaseID: "kb-1"})

		require.NoError(t, err)
		assert.Len(t, out.Items, 2)
		assert.False(t, out.HasMore)
		mockDocRepo.AssertExpectations(t)
	})

	t.Run("rejects malformed cursor", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		service := NewDocumentService(mockDocRepo, new(MockEmbeddingJobRepository), nil)

		_, err := service.List(ctx, ListDocumentsInput{KnowledgeBaseID: "kb-1", Cursor: "not-base64!"})

		require.Error(t, err)
		mockDocRepo.AssertNotCalled(t, "ListByKnowledgeBaseWithCursor", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes document and archived source", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		mockArchive := new(MockSourceArchive)
		service := NewDocumentService(mockDocRepo, new(MockEmbeddingJobRepository), mockArchive)

		mockDocRepo.On("GetByID", mock.Anything, "doc-1").Return(&domain.Document{
			ID: "doc-1", KnowledgeBaseID: "kb-1", Title: "Doc",
			EmbeddingStatus: domain.DocumentEmbeddingCompleted,
		}, nil)
		mockDocRepo.On("Delete", mock.Anything, "doc-1").Return(nil)
		mockArchive.On("Delete", mock.Anything, "doc-1").Return(nil)

		require.NoError(t, service.Delete(ctx, "doc-1"))
		mockDocRepo.AssertExpectations(t)
		mockArchive.AssertExpectations(t)
	})

	t.Run("propagates not found", func(t *testing.T) {
		mockDocRepo := new(MockDocumentRepository)
		service := NewDocumentService(mockDocRepo, new(MockEmbeddingJobRepository), nil)

		mockDocRepo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

		err := service.Delete(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrDocumentNotFound)
		mockDocRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}
