package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/quarrydocs/quarry/internal/pagination"
	"github.com/quarrydocs/quarry/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByKnowledgeBaseWithCursor(ctx context.Context, knowledgeBaseID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	Update(ctx context.Context, doc *domain.Document) error
	Delete(ctx context.Context, id string) error
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// EmbeddingJobRepositoryInterface defines the repository interface for embedding job persistence
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// SourceArchive persists the raw submitted document content outside the
// database, keyed by document ID.
type SourceArchive interface {
	Store(ctx context.Context, documentID string, content []byte) error
	Delete(ctx context.Context, documentID string) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DocumentService handles business logic for documents
type DocumentService struct {
	documentRepo     DocumentRepositoryInterface
	embeddingJobRepo EmbeddingJobRepositoryInterface
	archive          SourceArchive
	txRunner         TxRunner
	uuidGen          UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance. The archive is
// optional; pass nil to skip raw source archival.
func NewDocumentService(
	documentRepo DocumentRepositoryInterface,
	embeddingJobRepo EmbeddingJobRepositoryInterface,
	archive SourceArchive,
) *DocumentService {
	return &DocumentService{
		documentRepo:     documentRepo,
		embeddingJobRepo: embeddingJobRepo,
		archive:          archive,
		uuidGen:          &DefaultUUIDGenerator{},
	}
}

// NewDocumentServiceWithTx creates a DocumentService that creates the
// document row and its embedding job in one transaction.
func NewDocumentServiceWithTx(
	documentRepo DocumentRepositoryInterface,
	embeddingJobRepo EmbeddingJobRepositoryInterface,
	archive SourceArchive,
	txRunner TxRunner,
) *DocumentService {
	return &DocumentService{
		documentRepo:     documentRepo,
		embeddingJobRepo: embeddingJobRepo,
		archive:          archive,
		txRunner:         txRunner,
		uuidGen:          &DefaultUUIDGenerator{},
	}
}

// NewDocumentServiceWithUUIDGen creates a new DocumentService with custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(
	documentRepo DocumentRepositoryInterface,
	embeddingJobRepo EmbeddingJobRepositoryInterface,
	archive SourceArchive,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		documentRepo:     documentRepo,
		embeddingJobRepo: embeddingJobRepo,
		archive:          archive,
		uuidGen:          uuidGen,
	}
}

// CreateDocumentInput represents the input for registering a document
type CreateDocumentInput struct {
	KnowledgeBaseID string
	Title           string
	SourceURL       string
	Content         string
}

type ListDocumentsInput struct {
	KnowledgeBaseID string
	Cursor          string
	Limit           int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// Create registers a new document, archives its raw content and queues an
// embedding job for it.
func (s *DocumentService) Create(ctx context.Context, input CreateDocumentInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Create", telemetry.SpanAttributes{
		KnowledgeBaseID: input.KnowledgeBaseID,
		Operation:       "create",
	})
	defer span.End()

	now := time.Now().UTC()
	documentID := s.uuidGen.NewString()

	doc := &domain.Document{
		ID:              documentID,
		KnowledgeBaseID: input.KnowledgeBaseID,
		Title:           input.Title,
		SourceURL:       input.SourceURL,
		Content:         input.Content,
		EmbeddingStatus: domain.DocumentEmbeddingPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	job := &domain.EmbeddingJob{
		ID:         s.uuidGen.NewString(),
		DocumentID: documentID,
		Status:     domain.EmbeddingJobStatusPending,
		CreatedAt:  now,
	}

	if s.txRunner != nil {
		err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
			if err := repos.Documents().Create(ctx, doc); err != nil {
				return err
			}
			return repos.EmbeddingJobs().Create(ctx, job)
		})
		if err != nil {
			return nil, err
		}
	} else {
		if err := s.documentRepo.Create(ctx, doc); err != nil {
			return nil, err
		}
		if err := s.embeddingJobRepo.Create(ctx, job); err != nil {
			return nil, err
		}
	}

	if s.archive != nil {
		if err := s.archive.Store(ctx, documentID, []byte(input.Content)); err != nil {
			// Archival is best effort; the content of record lives in the database.
			log.Printf("document %s: raw source archival failed: %v", documentID, err)
			telemetry.CaptureError(ctx, err)
		}
	}

	return doc, nil
}

// GetByID retrieves a document by ID
func (s *DocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.GetByID", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "get",
	})
	defer span.End()

	return s.documentRepo.GetByID(ctx, id)
}

// List retrieves documents in a knowledge base with cursor pagination
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.List", telemetry.SpanAttributes{
		KnowledgeBaseID: input.KnowledgeBaseID,
		Operation:       "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.documentRepo.ListByKnowledgeBaseWithCursor(ctx, input.KnowledgeBaseID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// QueueEmbedding queues a fresh embedding pass for a document. A document
// currently being processed is rejected rather than queued again.
func (s *DocumentService) QueueEmbedding(ctx context.Context, documentID string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.QueueEmbedding", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "queue_embedding",
	})
	defer span.End()

	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if !doc.CanStartEmbedding() {
		return nil, domain.ErrEmbeddingInProgress
	}

	doc.EmbeddingStatus = domain.DocumentEmbeddingPending
	doc.EmbeddingError = ""
	doc.UpdatedAt = time.Now().UTC()
	if err := s.documentRepo.Update(ctx, doc); err != nil {
		return nil, err
	}

	job := &domain.EmbeddingJob{
		ID:         s.uuidGen.NewString(),
		DocumentID: documentID,
		Status:     domain.EmbeddingJobStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.embeddingJobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	return doc, nil
}

// RetryEmbedding resets a failed document back to pending and queues a new
// embedding job. Only documents in the failed state can be retried.
func (s *DocumentService) RetryEmbedding(ctx context.Context, documentID string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.RetryEmbedding", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "retry_embedding",
	})
	defer span.End()

	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if doc.EmbeddingStatus != domain.DocumentEmbeddingFailed {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidOperation, "only failed documents can be retried")
	}

	doc.EmbeddingStatus = domain.DocumentEmbeddingPending
	doc.EmbeddingError = ""
	doc.UpdatedAt = time.Now().UTC()
	if err := s.documentRepo.Update(ctx, doc); err != nil {
		return nil, err
	}

	job := &domain.EmbeddingJob{
		ID:         s.uuidGen.NewString(),
		DocumentID: documentID,
		Status:     domain.EmbeddingJobStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.embeddingJobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	return doc, nil
}

// Delete removes a document along with its archived raw source
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "delete",
	})
	defer span.End()

	if _, err := s.documentRepo.GetByID(ctx, documentID); err != nil {
		return err
	}

	if err := s.documentRepo.Delete(ctx, documentID); err != nil {
		return err
	}

	if s.archive != nil {
		if err := s.archive.Delete(ctx, documentID); err != nil {
			log.Printf("document %s: archived source deletion failed: %v", documentID, err)
			telemetry.CaptureError(ctx, err)
		}
	}
	return nil
}
