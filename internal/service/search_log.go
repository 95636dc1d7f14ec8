package service

import (
	"context"

	"github.com/quarrydocs/quarry/internal/domain"
)

// SearchLogResult captures a single result entry for logging.
type SearchLogResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Score      float32 `json:"score"`
}

// SearchLogEntry captures a search request and its outcome, including
// whether reranking was applied or degraded to the fused ordering.
type SearchLogEntry struct {
	Query            string
	KnowledgeBaseIDs []string
	DocumentID       string
	SearchType       domain.SearchType
	MatchCount       int
	VectorWeight     float32
	Reranked         bool
	Degraded         bool
	DurationMs       int
	Results          []SearchLogResult
}

// SearchLogRepository persists search logs.
type SearchLogRepository interface {
	CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error)
}
