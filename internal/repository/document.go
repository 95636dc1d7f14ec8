package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/quarrydocs/quarry/internal/pagination"
	"github.com/quarrydocs/quarry/internal/service"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, knowledge_base_id, title, source_url, content, embedding_status, embedding_error, chunk_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doc.ID, doc.KnowledgeBaseID, doc.Title, nullableString(doc.SourceURL), doc.Content,
		doc.EmbeddingStatus, nullableString(doc.EmbeddingError), doc.ChunkCount, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var sourceURL, embeddingError pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, knowledge_base_id, title, source_url, content, embedding_status, embedding_error, chunk_count, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.KnowledgeBaseID, &d.Title, &sourceURL, &d.Content, &d.EmbeddingStatus, &embeddingError, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if sourceURL.Valid {
		d.SourceURL = sourceURL.String
	}
	if embeddingError.Valid {
		d.EmbeddingError = embeddingError.String
	}
	return &d, nil
}

func (r *DocumentRepository) ListByKnowledgeBaseWithCursor(ctx context.Context, knowledgeBaseID string, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, knowledge_base_id, title, source_url, content, embedding_status, embedding_error, chunk_count, created_at, updated_at
			 FROM documents
			 WHERE knowledge_base_id = $1 AND (updated_at, id) < ($2, $3)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $4`,
			knowledgeBaseID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, knowledge_base_id, title, source_url, content, embedding_status, embedding_error, chunk_count, created_at, updated_at
			 FROM documents
			 WHERE knowledge_base_id = $1
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $2`,
			knowledgeBaseID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.UpdatedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *DocumentRepository) ListIDsByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM documents WHERE knowledge_base_id = $1 ORDER BY created_at ASC`,
		knowledgeBaseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *DocumentRepository) Update(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET title = $1, source_url = $2, content = $3, embedding_status = $4, embedding_error = $5, updated_at = $6
		 WHERE id = $7`,
		doc.Title, nullableString(doc.SourceURL), doc.Content, doc.EmbeddingStatus, nullableString(doc.EmbeddingError), doc.UpdatedAt, doc.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) UpdateEmbeddingStatus(ctx context.Context, id string, status domain.DocumentEmbeddingStatus, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET embedding_status = $1, embedding_error = $2, updated_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) UpdateChunkCount(ctx context.Context, id string, count int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET chunk_count = $1, updated_at = $2 WHERE id = $3`,
		count, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		var d domain.Document
		var sourceURL, embeddingError pgtype.Text
		if err := rows.Scan(&d.ID, &d.KnowledgeBaseID, &d.Title, &sourceURL, &d.Content, &d.EmbeddingStatus, &embeddingError, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if sourceURL.Valid {
			d.SourceURL = sourceURL.String
		}
		if embeddingError.Valid {
			d.EmbeddingError = embeddingError.String
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}
