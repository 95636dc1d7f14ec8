package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/quarrydocs/quarry/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string, cfg domain.EmbeddingConfig) ([][]float32, error)
	EmbedOne(ctx context.Context, text string, cfg domain.EmbeddingConfig) ([]float32, error)
}

// ContextGenerator defines the interface for contextual-retrieval augmentation
type ContextGenerator interface {
	GenerateContextBatch(ctx context.Context, documentText string, chunks []string, documentTitle string) ([]AugmentedChunk, error)
}

// EmbeddingDocumentRepository defines the repository interface for document
// state during embedding runs
type EmbeddingDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListIDsByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]string, error)
	UpdateEmbeddingStatus(ctx context.Context, id string, status domain.DocumentEmbeddingStatus, errMsg string) error
	UpdateChunkCount(ctx context.Context, id string, count int) error
}

// ChunkHashes holds the stored hashes used for chunk change detection.
type ChunkHashes struct {
	ContentHash string
	ContextHash string
}

// EmbeddingChunkRepository defines the repository interface for persisted chunks
type EmbeddingChunkRepository interface {
	GetChunkHashes(ctx context.Context, documentID string) (map[int]ChunkHashes, error)
	UpsertChunks(ctx context.Context, chunks []domain.Chunk) error
	DeleteChunksFrom(ctx context.Context, documentID string, fromIndex int) error
}

// EmbeddingConfigSource supplies the stored embedding configuration
type EmbeddingConfigSource interface {
	EmbeddingConfig(ctx context.Context) (domain.EmbeddingConfig, error)
}

// EmbeddingService runs the document embedding pipeline: chunking, optional
// contextual augmentation, batch embedding and chunk persistence.
type EmbeddingService struct {
	client    EmbeddingClient
	docRepo   EmbeddingDocumentRepository
	chunkRepo EmbeddingChunkRepository
	configs   EmbeddingConfigSource
	augmenter ContextGenerator
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(
	client EmbeddingClient,
	docRepo EmbeddingDocumentRepository,
	chunkRepo EmbeddingChunkRepository,
	configs EmbeddingConfigSource,
	augmenter ContextGenerator,
) *EmbeddingService {
	return &EmbeddingService{
		client:    client,
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		configs:   configs,
		augmenter: augmenter,
	}
}

// EmbedDocument chunks, embeds and persists one document. A document already
// being processed is rejected; any failure leaves the document in a terminal
// failed state so a retry must be triggered explicitly.
func (s *EmbeddingService) EmbedDocument(ctx context.Context, documentID string) error {
	cfg, err := s.configs.EmbeddingConfig(ctx)
	if err != nil {
		return err
	}
	if err := domain.ValidateEmbeddingConfig(cfg); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeConfiguration, "invalid embedding configuration", err)
	}

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if !doc.CanStartEmbedding() {
		return domain.ErrEmbeddingInProgress
	}

	if err := s.docRepo.UpdateEmbeddingStatus(ctx, documentID, domain.DocumentEmbeddingProcessing, ""); err != nil {
		return err
	}

	chunkCount, runErr := s.embedDocument(ctx, doc, cfg)
	if runErr != nil {
		if statusErr := s.docRepo.UpdateEmbeddingStatus(ctx, documentID, domain.DocumentEmbeddingFailed, runErr.Error()); statusErr != nil {
			log.Printf("failed to mark document %s as failed: %v", documentID, statusErr)
		}
		return runErr
	}

	if err := s.docRepo.UpdateChunkCount(ctx, documentID, chunkCount); err != nil {
		return err
	}
	return s.docRepo.UpdateEmbeddingStatus(ctx, documentID, domain.DocumentEmbeddingCompleted, "")
}

func (s *EmbeddingService) embedDocument(ctx context.Context, doc *domain.Document, cfg domain.EmbeddingConfig) (int, error) {
	pieces := SplitText(doc.Content, ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})

	// Zero chunks is a valid state for an empty document.
	if len(pieces) == 0 {
		if err := s.chunkRepo.DeleteChunksFrom(ctx, doc.ID, 0); err != nil {
			return 0, fmt.Errorf("failed to clear chunks: %w", err)
		}
		return 0, nil
	}

	chunks := make([]domain.Chunk, len(pieces))
	now := time.Now().UTC()
	for i, piece := range pieces {
		chunks[i] = domain.Chunk{
			DocumentID:            doc.ID,
			Index:                 i,
			OriginalContent:       piece.Content,
			ContextualizedContent: piece.Content,
			ContentHash:           piece.ContentHash,
			TokenCount:            piece.TokenCount,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
	}

	if cfg.ContextEnabled {
		contents := make([]string, len(pieces))
		for i, piece := range pieces {
			contents[i] = piece.Content
		}
		augmented, err := s.augmenter.GenerateContextBatch(ctx, doc.Content, contents, doc.Title)
		if err != nil {
			return 0, err
		}
		for i, a := range augmented {
			chunks[i].ContextSummary = a.Context
			chunks[i].ContextualizedContent = a.Contextualized
			if a.Context != "" {
				chunks[i].ContextHash = HashContent(a.Context)
			}
		}
	}

	// Skip re-embedding chunks whose content and context are unchanged
	// since the last run.
	existing, err := s.chunkRepo.GetChunkHashes(ctx, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load chunk hashes: %w", err)
	}

	var (
		toEmbed  []string
		toIndex  []int
		upserted = make([]domain.Chunk, 0, len(chunks))
	)
	for i := range chunks {
		prev, ok := existing[i]
		if ok && prev.ContentHash == chunks[i].ContentHash && prev.ContextHash == chunks[i].ContextHash {
			continue
		}
		toEmbed = append(toEmbed, chunks[i].ContextualizedContent)
		toIndex = append(toIndex, i)
	}

	if len(toEmbed) > 0 {
		vectors, err := s.client.Embed(ctx, toEmbed, cfg)
		if err != nil {
			return 0, fmt.Errorf("failed to generate chunk embeddings: %w", err)
		}
		// Embed preserves input order, so vectors line up with toIndex.
		for pos, i := range toIndex {
			chunks[i].Embedding = vectors[pos]
			upserted = append(upserted, chunks[i])
		}
	}

	if len(upserted) > 0 {
		if err := s.chunkRepo.UpsertChunks(ctx, upserted); err != nil {
			return 0, fmt.Errorf("failed to upsert chunks: %w", err)
		}
	}

	// Chunks beyond the new chunk count are stale.
	if err := s.chunkRepo.DeleteChunksFrom(ctx, doc.ID, len(chunks)); err != nil {
		return 0, fmt.Errorf("failed to trim stale chunks: %w", err)
	}

	return len(chunks), nil
}

// EmbedKnowledgeBase runs the embedding pipeline over every document in a
// knowledge base. The cancellation signal is checked between documents; an
// in-flight document finishes, but no new document starts after cancellation.
func (s *EmbeddingService) EmbedKnowledgeBase(ctx context.Context, knowledgeBaseID string) error {
	ids, err := s.docRepo.ListIDsByKnowledgeBase(ctx, knowledgeBaseID)
	if err != nil {
		return err
	}

	failed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.EmbedDocument(ctx, id); err != nil {
			log.Printf("embedding document %s failed: %v", id, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to embed", failed, len(ids))
	}
	return nil
}

// EmbedQuery generates the query vector for hybrid search using the stored
// embedding configuration.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	cfg, err := s.configs.EmbeddingConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.EmbedOne(ctx, text, cfg)
}
