package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/quarrydocs/quarry/internal/api"
	"github.com/quarrydocs/quarry/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query            string   `json:"query"`
	KnowledgeBaseIDs []string `json:"knowledge_base_ids,omitempty"`
	DocumentID       string   `json:"document_id,omitempty"`
	MatchCount       int      `json:"match_count,omitempty"`
	MatchThreshold   *float32 `json:"match_threshold,omitempty"`
	VectorWeight     *float32 `json:"vector_weight,omitempty"`
	Rerank           bool     `json:"rerank,omitempty"`
}

type SearchResultResponse struct {
	ChunkID        string  `json:"chunk_id"`
	DocumentID     string  `json:"document_id"`
	DocumentTitle  string  `json:"document_title,omitempty"`
	Content        string  `json:"content"`
	ContextSummary string  `json:"context_summary,omitempty"`
	ChunkIndex     int     `json:"chunk_index"`
	Score          float32 `json:"score"`
	VectorScore    float32 `json:"vector_score"`
	LexicalScore   float32 `json:"lexical_score"`
	CombinedScore  float32 `json:"combined_score"`
	SearchType     string  `json:"search_type"`
}

type SearchResponse struct {
	Results    []SearchResultResponse `json:"results"`
	Reranked   bool                   `json:"reranked"`
	Degraded   bool                   `json:"degraded"`
	DurationMs int                    `json:"duration_ms"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if len(req.KnowledgeBaseIDs) == 0 && req.DocumentID == "" {
		api.Error(w, http.StatusBadRequest, "knowledge_base_ids or document_id is required")
		return
	}

	opts := service.SearchOptions{
		MatchCount: req.MatchCount,
		Rerank:     req.Rerank,
	}
	if req.MatchThreshold != nil {
		opts.MatchThreshold = *req.MatchThreshold
	}
	if req.VectorWeight != nil {
		opts.VectorWeight = *req.VectorWeight
	}

	output, err := h.svc.Search(r.Context(), service.SearchInput{
		Query: req.Query,
		Scope: service.SearchScope{
			KnowledgeBaseIDs: req.KnowledgeBaseIDs,
			DocumentID:       req.DocumentID,
		},
		Options: opts,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := make([]SearchResultResponse, len(output.Results))
	for i, res := range output.Results {
		c := res.Candidate
		results[i] = SearchResultResponse{
			ChunkID:        c.ChunkID,
			DocumentID:     c.DocumentID,
			DocumentTitle:  c.DocumentTitle,
			Content:        c.Content,
			ContextSummary: c.ContextSummary,
			ChunkIndex:     c.ChunkIndex,
			Score:          res.RelevanceScore,
			VectorScore:    c.VectorScore,
			LexicalScore:   c.LexicalScore,
			CombinedScore:  c.CombinedScore,
			SearchType:     string(c.SearchType),
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results:    results,
		Reranked:   output.Reranked,
		Degraded:   output.Degraded,
		DurationMs: output.DurationMs,
	})
}
