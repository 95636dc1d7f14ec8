package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/quarrydocs/quarry/internal/service"
)

// ChunkRepository handles persistence and retrieval of embedded document
// chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// UpsertChunks inserts or replaces chunks keyed by (document_id, chunk_index).
func (r *ChunkRepository) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		updatedAt := c.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks
				(document_id, chunk_index, original_content, context_summary, contextualized_content, content_hash, context_hash, token_count, embedding, created_at, updated_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (document_id, chunk_index) DO UPDATE SET
				original_content = EXCLUDED.original_content,
				context_summary = EXCLUDED.context_summary,
				contextualized_content = EXCLUDED.contextualized_content,
				content_hash = EXCLUDED.content_hash,
				context_hash = EXCLUDED.context_hash,
				token_count = EXCLUDED.token_count,
				embedding = EXCLUDED.embedding,
				updated_at = EXCLUDED.updated_at`,
			c.DocumentID,
			c.Index,
			c.OriginalContent,
			nullableString(c.ContextSummary),
			c.ContextualizedContent,
			c.ContentHash,
			nullableString(c.ContextHash),
			c.TokenCount,
			pgvector.NewVector(c.Embedding),
			createdAt,
			updatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetChunkHashes returns the stored content and context hashes per chunk
// index, used to skip re-embedding unchanged chunks.
func (r *ChunkRepository) GetChunkHashes(ctx context.Context, documentID string) (map[int]service.ChunkHashes, error) {
	rows, err := r.db.Query(ctx,
		`SELECT chunk_index, content_hash, context_hash FROM chunks WHERE document_id = $1`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[int]service.ChunkHashes)
	for rows.Next() {
		var index int
		var contentHash string
		var contextHash pgtype.Text
		if err := rows.Scan(&index, &contentHash, &contextHash); err != nil {
			return nil, err
		}
		h := service.ChunkHashes{ContentHash: contentHash}
		if contextHash.Valid {
			h.ContextHash = contextHash.String
		}
		hashes[index] = h
	}
	return hashes, rows.Err()
}

// DeleteChunksFrom removes chunks at or beyond the given index, trimming
// stale tails after a document shrinks.
func (r *ChunkRepository) DeleteChunksFrom(ctx context.Context, documentID string, fromIndex int) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM chunks WHERE document_id = $1 AND chunk_index >= $2`,
		documentID, fromIndex,
	)
	return err
}

// VectorSearchChunks returns the chunks nearest to the query embedding by
// cosine distance, scoped to knowledge bases or a single document.
func (r *ChunkRepository) VectorSearchChunks(ctx context.Context, scope service.SearchScope, embedding []float32, limit int) ([]*domain.SearchCandidate, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT c.id, c.document_id, d.title, c.original_content, c.context_summary, c.chunk_index,
		       1 - (c.embedding <=> $1) AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL`
	args := []any{pgvector.NewVector(embedding)}

	query, args = appendScope(query, args, scope)

	args = append(args, limit)
	query += ` ORDER BY c.embedding <=> $1 LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSearchCandidates(rows, domain.SearchTypeVector)
}

// LexicalSearchChunks runs a full-text query over the contextualized chunk
// text, ranked by ts_rank_cd.
func (r *ChunkRepository) LexicalSearchChunks(ctx context.Context, scope service.SearchScope, queryText string, limit int) ([]*domain.SearchCandidate, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT c.id, c.document_id, d.title, c.original_content, c.context_summary, c.chunk_index,
		       ts_rank_cd(c.tsv, websearch_to_tsquery('english', $1)) AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.tsv @@ websearch_to_tsquery('english', $1)`
	args := []any{queryText}

	query, args = appendScope(query, args, scope)

	args = append(args, limit)
	query += ` ORDER BY score DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSearchCandidates(rows, domain.SearchTypeLexical)
}

func appendScope(query string, args []any, scope service.SearchScope) (string, []any) {
	if scope.DocumentID != "" {
		args = append(args, scope.DocumentID)
		query += ` AND c.document_id = $` + strconv.Itoa(len(args))
		return query, args
	}
	if len(scope.KnowledgeBaseIDs) > 0 {
		args = append(args, scope.KnowledgeBaseIDs)
		query += ` AND d.knowledge_base_id = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	return query, args
}

func scanSearchCandidates(rows pgx.Rows, searchType domain.SearchType) ([]*domain.SearchCandidate, error) {
	var results []*domain.SearchCandidate
	for rows.Next() {
		var c domain.SearchCandidate
		var contextSummary pgtype.Text
		var score float32
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.DocumentTitle, &c.Content, &contextSummary, &c.ChunkIndex, &score); err != nil {
			return nil, err
		}
		if contextSummary.Valid {
			c.ContextSummary = contextSummary.String
		}
		switch searchType {
		case domain.SearchTypeLexical:
			c.LexicalScore = score
		default:
			c.VectorScore = score
		}
		c.SearchType = searchType
		results = append(results, &c)
	}
	return results, rows.Err()
}

