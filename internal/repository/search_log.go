package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quarrydocs/quarry/internal/service"
)

// SearchLogRepository stores search logs for retrieval quality evaluation.
type SearchLogRepository struct {
	pool *pgxpool.Pool
}

func NewSearchLogRepository(pool *pgxpool.Pool) *SearchLogRepository {
	return &SearchLogRepository{pool: pool}
}

func (r *SearchLogRepository) CreateSearchLog(ctx context.Context, entry service.SearchLogEntry) (string, error) {
	scope := map[string]any{}
	if len(entry.KnowledgeBaseIDs) > 0 {
		scope["knowledge_base_ids"] = entry.KnowledgeBaseIDs
	}
	if entry.DocumentID != "" {
		scope["document_id"] = entry.DocumentID
	}

	scopeJSON, _ := json.Marshal(scope)
	resultsJSON, _ := json.Marshal(entry.Results)

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO search_logs (query, scope, search_type, match_count, vector_weight, reranked, degraded, results, result_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		entry.Query,
		scopeJSON,
		string(entry.SearchType),
		entry.MatchCount,
		entry.VectorWeight,
		entry.Reranked,
		entry.Degraded,
		resultsJSON,
		len(entry.Results),
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
