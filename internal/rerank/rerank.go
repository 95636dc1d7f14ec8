// Package rerank implements the second-stage relevance pass over hybrid
// search candidates. Reranking is an enhancement, never a hard dependency:
// unusable configurations pass candidates through unchanged and provider
// failures are surfaced for the caller to degrade on.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/quarrydocs/quarry/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second

	cohereEndpoint = "https://api.cohere.com/v1/rerank"
	jinaEndpoint   = "https://api.jina.ai/v1/rerank"
	voyageEndpoint = "https://api.voyageai.com/v1/rerank"
	aliyunEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/rerank/text-rerank/text-rerank"
)

// Result carries the reranked list plus diagnostics about how the response
// was interpreted.
type Result struct {
	Results []domain.RerankResult
	// Detection is set when the response format was auto-detected.
	Detection *FormatDetection
	// Applied is false when the no-op gate passed candidates through
	// without calling a provider.
	Applied bool
}

// Client calls external reranking APIs.
type Client struct {
	hc *http.Client
}

// NewClient creates a rerank client with a default HTTP timeout.
func NewClient() *Client {
	return &Client{hc: &http.Client{Timeout: defaultTimeout}}
}

// NewClientWithHTTPClient creates a rerank client with a caller-supplied
// http.Client.
func NewClientWithHTTPClient(hc *http.Client) *Client {
	return &Client{hc: hc}
}

// Rerank scores candidates against the query and returns them ordered
// descending by relevance, truncated to topK (topK <= 0 keeps all).
func (c *Client) Rerank(ctx context.Context, query string, candidates []domain.SearchCandidate, cfg domain.RerankerConfig, topK int) (*Result, error) {
	if len(candidates) == 0 {
		return &Result{Results: []domain.RerankResult{}, Applied: false}, nil
	}

	if !usable(cfg) {
		return passthrough(candidates, topK), nil
	}

	raw, err := c.call(ctx, query, candidates, cfg, topK)
	if err != nil {
		return nil, err
	}

	format := cfg.ResponseFormat
	var detection *FormatDetection
	if format == domain.RerankFormatAuto || format == "" {
		d, err := DetectFormat(raw)
		if err != nil {
			return nil, err
		}
		detection = &d
		format = d.Format
	}

	scored, err := parseResults(raw, format)
	if err != nil {
		return nil, err
	}

	results := mapToCandidates(scored, candidates, topK)
	return &Result{Results: results, Detection: detection, Applied: true}, nil
}

// usable implements the no-op gate: provider none, a key-requiring provider
// without a key, or the generic provider without a base URL all skip the
// network call entirely.
func usable(cfg domain.RerankerConfig) bool {
	if !cfg.Enabled {
		return false
	}
	if cfg.Provider == domain.RerankerProviderNone || cfg.Provider == "" {
		return false
	}
	if cfg.RequiresAPIKey() && cfg.APIKey == "" {
		return false
	}
	if cfg.Provider == domain.RerankerProviderOpenAICompatible && cfg.BaseURL == "" {
		return false
	}
	return true
}

// passthrough keeps incoming order and lets the fused score stand in for
// relevance.
func passthrough(candidates []domain.SearchCandidate, topK int) *Result {
	n := len(candidates)
	if topK > 0 && topK < n {
		n = topK
	}
	results := make([]domain.RerankResult, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, domain.RerankResult{
			Candidate:      candidates[i],
			RelevanceScore: candidates[i].CombinedScore,
			OriginalRank:   i,
			NewRank:        i,
		})
	}
	return &Result{Results: results, Applied: false}
}

func (c *Client) call(ctx context.Context, query string, candidates []domain.SearchCandidate, cfg domain.RerankerConfig, topK int) ([]byte, error) {
	documents := make([]string, len(candidates))
	for i, cand := range candidates {
		documents[i] = cand.Content
	}

	topN := topK
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	body, err := buildRequestBody(query, documents, cfg, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resolveEndpoint(cfg), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	for k, v := range cfg.CustomHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rerank response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewProviderError(string(cfg.Provider), resp.StatusCode, string(raw))
	}

	return raw, nil
}

func resolveEndpoint(cfg domain.RerankerConfig) string {
	if cfg.BaseURL != "" {
		if strings.HasSuffix(cfg.BaseURL, "/rerank") {
			return cfg.BaseURL
		}
		if cfg.Provider == domain.RerankerProviderAliyun {
			return cfg.BaseURL
		}
		return strings.TrimRight(cfg.BaseURL, "/") + "/rerank"
	}

	switch cfg.Provider {
	case domain.RerankerProviderCohere:
		return cohereEndpoint
	case domain.RerankerProviderJina:
		return jinaEndpoint
	case domain.RerankerProviderVoyage:
		return voyageEndpoint
	case domain.RerankerProviderAliyun:
		return aliyunEndpoint
	default:
		return cohereEndpoint
	}
}

func buildRequestBody(query string, documents []string, cfg domain.RerankerConfig, topN int) ([]byte, error) {
	switch cfg.Provider {
	case domain.RerankerProviderAliyun:
		// DashScope nests query and documents under input
		return json.Marshal(map[string]any{
			"model": cfg.Model,
			"input": map[string]any{
				"query":     query,
				"documents": documents,
			},
			"parameters": map[string]any{
				"top_n":            topN,
				"return_documents": false,
			},
		})
	case domain.RerankerProviderVoyage:
		return json.Marshal(map[string]any{
			"model":     cfg.Model,
			"query":     query,
			"documents": documents,
			"top_k":     topN,
		})
	default:
		// cohere, jina and generic openai-compatible endpoints share the
		// flat envelope
		return json.Marshal(map[string]any{
			"model":     cfg.Model,
			"query":     query,
			"documents": documents,
			"top_n":     topN,
		})
	}
}

// mapToCandidates resolves parsed indices back to the submitted candidates,
// dropping indices outside the request, then orders by relevance.
func mapToCandidates(scored []scoredIndex, candidates []domain.SearchCandidate, topK int) []domain.RerankResult {
	results := make([]domain.RerankResult, 0, len(scored))
	for _, si := range scored {
		if si.Index < 0 || si.Index >= len(candidates) {
			continue
		}
		results = append(results, domain.RerankResult{
			Candidate:      candidates[si.Index],
			RelevanceScore: si.Score,
			OriginalRank:   si.Index,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	for i := range results {
		results[i].NewRank = i
	}
	return results
}
