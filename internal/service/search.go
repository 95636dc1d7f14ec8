package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/quarrydocs/quarry/internal/rerank"
	"github.com/quarrydocs/quarry/internal/telemetry"
)

// SearchScope selects which chunks a query runs over: a set of knowledge
// bases, or a single document.
type SearchScope struct {
	KnowledgeBaseIDs []string
	DocumentID       string
}

// SearchOptions controls fusion and reranking for one query.
type SearchOptions struct {
	MatchCount     int
	MatchThreshold float32
	VectorWeight   float32
	Rerank         bool
}

// SearchInput represents input for the search operation
type SearchInput struct {
	Query   string
	Scope   SearchScope
	Options SearchOptions
}

// SearchOutput represents output from the search operation. Results hold
// the final ordering; for non-reranked searches the fused score stands in
// for relevance.
type SearchOutput struct {
	Results []domain.RerankResult
	// Reranked is true when a rerank provider actually scored the results.
	Reranked bool
	// Degraded is true when reranking was requested but failed, and the
	// pre-rerank fused ranking was returned instead.
	Degraded bool
	// Detection carries rerank response format diagnostics when the format
	// was auto-detected.
	Detection *rerank.FormatDetection
	// DurationMs is the total search duration for logging.
	DurationMs int
}

// ChunkSearchRepository defines the store RPCs consumed by hybrid search
type ChunkSearchRepository interface {
	VectorSearchChunks(ctx context.Context, scope SearchScope, embedding []float32, limit int) ([]*domain.SearchCandidate, error)
	LexicalSearchChunks(ctx context.Context, scope SearchScope, query string, limit int) ([]*domain.SearchCandidate, error)
}

// QueryEmbedder defines the interface for query vector generation
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker defines the interface for the second-stage relevance pass
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.SearchCandidate, cfg domain.RerankerConfig, topK int) (*rerank.Result, error)
}

// RerankerConfigSource supplies the stored reranker configuration, fetched
// once per request so the pipeline stays testable with fixture configs.
type RerankerConfigSource interface {
	RerankerConfig(ctx context.Context) (domain.RerankerConfig, error)
}

// SearchService runs the hybrid retrieval pipeline: query embedding,
// vector/lexical fusion and optional reranking.
type SearchService struct {
	repo     ChunkSearchRepository
	embedder QueryEmbedder
	reranker Reranker
	configs  RerankerConfigSource
	logs     SearchLogRepository
}

// NewSearchService creates a new SearchService instance. The log repository
// is optional; pass nil to disable search logging.
func NewSearchService(
	repo ChunkSearchRepository,
	embedder QueryEmbedder,
	reranker Reranker,
	configs RerankerConfigSource,
	logs SearchLogRepository,
) *SearchService {
	return &SearchService{
		repo:     repo,
		embedder: embedder,
		reranker: reranker,
		configs:  configs,
		logs:     logs,
	}
}

// Search executes one hybrid query and returns the final ordering.
// Rerank failures never fail the search; the fused ranking is returned
// with Degraded set instead.
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	started := time.Now()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return &SearchOutput{Results: []domain.RerankResult{}}, nil
	}

	opts := normalizeSearchOptions(input.Options)

	ctx, span := telemetry.StartSpan(ctx, "search.hybrid", telemetry.SpanAttributes{Operation: "hybrid_search"})
	defer span.End()

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	fetchCount, fetchThreshold := opts.MatchCount, opts.MatchThreshold
	if opts.Rerank {
		// Loosened first stage so semantically relevant but low-scoring
		// candidates survive into reranking.
		fetchCount = rerankFetchCount(opts.MatchCount)
		fetchThreshold = opts.MatchThreshold / 2
	}

	candidateLimit := fetchCount * defaultCandidateMultiplier
	if candidateLimit > defaultMaxCandidates {
		candidateLimit = defaultMaxCandidates
	}

	vectorList, err := s.repo.VectorSearchChunks(ctx, input.Scope, embedding, candidateLimit)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	var lexicalList []*domain.SearchCandidate
	if keywordQuery(query) != "" {
		lexicalList, err = s.repo.LexicalSearchChunks(ctx, input.Scope, query, candidateLimit)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	fused := fuseCandidates(vectorList, lexicalList, opts.VectorWeight, fetchThreshold, fetchCount)

	out := &SearchOutput{}
	if opts.Rerank {
		cfg, err := s.configs.RerankerConfig(ctx)
		if err != nil {
			span.SetError(err)
			return nil, err
		}

		res, rerr := s.reranker.Rerank(ctx, query, fused, cfg, opts.MatchCount)
		if rerr != nil {
			// Degrade to the fused ranking rather than failing the search.
			log.Printf("rerank failed, returning fused ranking: %v", rerr)
			telemetry.CaptureError(ctx, rerr)
			out.Degraded = true
			out.Results = fusedAsResults(fused, opts.MatchCount)
		} else {
			out.Results = res.Results
			out.Reranked = res.Applied
			out.Detection = res.Detection
		}
	} else {
		out.Results = fusedAsResults(fused, opts.MatchCount)
	}

	out.DurationMs = int(time.Since(started).Milliseconds())
	s.logSearch(ctx, query, input, opts, out)
	return out, nil
}

// logSearch records the query and its outcome, best effort.
func (s *SearchService) logSearch(ctx context.Context, query string, input SearchInput, opts SearchOptions, out *SearchOutput) {
	if s.logs == nil {
		return
	}

	logResults := make([]SearchLogResult, 0, len(out.Results))
	for _, r := range out.Results {
		logResults = append(logResults, SearchLogResult{
			ChunkID:    r.Candidate.ChunkID,
			DocumentID: r.Candidate.DocumentID,
			Score:      r.RelevanceScore,
		})
	}

	entry := SearchLogEntry{
		Query:            query,
		KnowledgeBaseIDs: input.Scope.KnowledgeBaseIDs,
		DocumentID:       input.Scope.DocumentID,
		SearchType:       domain.SearchTypeHybrid,
		MatchCount:       opts.MatchCount,
		VectorWeight:     opts.VectorWeight,
		Reranked:         out.Reranked,
		Degraded:         out.Degraded,
		DurationMs:       out.DurationMs,
		Results:          logResults,
	}
	if _, err := s.logs.CreateSearchLog(ctx, entry); err != nil {
		log.Printf("search log write failed: %v", err)
	}
}

func normalizeSearchOptions(opts SearchOptions) SearchOptions {
	if opts.MatchCount <= 0 {
		opts.MatchCount = defaultMatchCount
	}
	if opts.VectorWeight <= 0 || opts.VectorWeight > 1 {
		opts.VectorWeight = defaultVectorWeight
	}
	if opts.MatchThreshold < 0 {
		opts.MatchThreshold = 0
	}
	return opts
}

func rerankFetchCount(matchCount int) int {
	n := matchCount * rerankCandidateMultiplier
	if n > rerankCandidateCap {
		n = rerankCandidateCap
	}
	return n
}

// fusedAsResults wraps the fused list so non-reranked and degraded searches
// share the reranked output shape.
func fusedAsResults(fused []domain.SearchCandidate, matchCount int) []domain.RerankResult {
	n := len(fused)
	if matchCount > 0 && matchCount < n {
		n = matchCount
	}
	results := make([]domain.RerankResult, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, domain.RerankResult{
			Candidate:      fused[i],
			RelevanceScore: fused[i].CombinedScore,
			OriginalRank:   i,
			NewRank:        i,
		})
	}
	return results
}
