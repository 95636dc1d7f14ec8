// Package embeddings converts batches of texts into fixed-dimension vectors
// via one of several embedding providers. The provider set is closed and
// small, so dispatch is a switch per provider tag rather than an interface
// hierarchy.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quarrydocs/quarry/internal/domain"
)

const (
	defaultTimeout = 60 * time.Second

	openAIEndpoint = "https://api.openai.com/v1/embeddings"
	jinaEndpoint   = "https://api.jina.ai/v1/embeddings"
	voyageEndpoint = "https://api.voyageai.com/v1/embeddings"
	aliyunEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/embeddings/text-embedding/text-embedding"
)

// Client issues embedding requests. It performs no retries; retry policy
// belongs to the caller.
type Client struct {
	hc *http.Client
}

// NewClient creates an embedding client with a default HTTP timeout.
func NewClient() *Client {
	return &Client{hc: &http.Client{Timeout: defaultTimeout}}
}

// NewClientWithHTTPClient creates an embedding client with a caller-supplied
// http.Client, used by tests and callers needing custom transports.
func NewClientWithHTTPClient(hc *http.Client) *Client {
	return &Client{hc: hc}
}

// Embed converts texts into vectors, preserving input order. Inputs are
// sent in batches of cfg.BatchSize; each result is slotted by the index the
// provider reports, not by list position, so provider reordering cannot
// scramble the output.
func (c *Client) Embed(ctx context.Context, texts []string, cfg domain.EmbeddingConfig) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	if err := checkConfig(cfg); err != nil {
		return nil, err
	}

	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	vectors := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := c.embedBatch(ctx, texts[start:end], cfg, vectors[start:end]); err != nil {
			return nil, err
		}
	}

	return vectors, nil
}

// EmbedOne is a convenience wrapper for a single input.
func (c *Client) EmbedOne(ctx context.Context, text string, cfg domain.EmbeddingConfig) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text}, cfg)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || vectors[0] == nil {
		return nil, domain.NewParseError("embedding response missing vector", nil)
	}
	return vectors[0], nil
}

func checkConfig(cfg domain.EmbeddingConfig) error {
	if cfg.APIKey == "" {
		return domain.NewConfigurationError(fmt.Sprintf("embedding provider %s requires an API key", cfg.Provider))
	}
	if cfg.Provider == domain.EmbeddingProviderOpenAICompatible && cfg.BaseURL == "" {
		return domain.NewConfigurationError("openai-compatible embedding provider requires a base URL")
	}
	return nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string, cfg domain.EmbeddingConfig, out [][]float32) error {
	body, err := buildRequestBody(batch, cfg)
	if err != nil {
		return fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resolveEndpoint(cfg), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read embedding response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.NewProviderError(string(cfg.Provider), resp.StatusCode, string(raw))
	}

	items, err := parseResponse(raw, cfg.Provider)
	if err != nil {
		return err
	}

	if len(items) != len(batch) {
		return domain.NewParseError(
			fmt.Sprintf("embedding response has %d vectors for %d inputs", len(items), len(batch)), nil)
	}

	for _, item := range items {
		if item.Index < 0 || item.Index >= len(out) {
			return domain.NewParseError(fmt.Sprintf("embedding response index %d out of range", item.Index), nil)
		}
		if len(item.Embedding) == 0 {
			return domain.NewParseError(fmt.Sprintf("embedding response item %d has no vector", item.Index), nil)
		}
		out[item.Index] = item.Embedding
	}

	for i, v := range out {
		if v == nil {
			return domain.NewParseError(fmt.Sprintf("embedding response missing vector for input %d", i), nil)
		}
	}

	return nil
}

func resolveEndpoint(cfg domain.EmbeddingConfig) string {
	if cfg.BaseURL != "" {
		if cfg.Provider == domain.EmbeddingProviderAliyun {
			return cfg.BaseURL
		}
		return strings.TrimRight(cfg.BaseURL, "/") + "/embeddings"
	}

	switch cfg.Provider {
	case domain.EmbeddingProviderJina:
		return jinaEndpoint
	case domain.EmbeddingProviderVoyage:
		return voyageEndpoint
	case domain.EmbeddingProviderAliyun:
		return aliyunEndpoint
	default:
		return openAIEndpoint
	}
}

func buildRequestBody(batch []string, cfg domain.EmbeddingConfig) ([]byte, error) {
	if cfg.Provider == domain.EmbeddingProviderAliyun {
		// DashScope nests inputs under input.texts
		return json.Marshal(map[string]any{
			"model": cfg.Model,
			"input": map[string]any{"texts": batch},
		})
	}

	payload := map[string]any{
		"model": cfg.Model,
		"input": batch,
	}
	if cfg.Dimensions > 0 {
		payload["dimensions"] = cfg.Dimensions
	}
	return json.Marshal(payload)
}

// embeddingItem is one vector tagged with the input position it belongs to.
type embeddingItem struct {
	Index     int
	Embedding []float32
}

type flatResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type nestedResponse struct {
	Output struct {
		Embeddings []struct {
			Embedding []float32 `json:"embedding"`
			TextIndex int       `json:"text_index"`
		} `json:"embeddings"`
	} `json:"output"`
}

func parseResponse(raw []byte, provider domain.EmbeddingProvider) ([]embeddingItem, error) {
	if provider == domain.EmbeddingProviderAliyun {
		var resp nestedResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, domain.NewParseError("failed to decode embedding response", err)
		}
		if len(resp.Output.Embeddings) == 0 {
			return nil, domain.NewParseError("embedding response has no output.embeddings", nil)
		}
		items := make([]embeddingItem, 0, len(resp.Output.Embeddings))
		for _, e := range resp.Output.Embeddings {
			items = append(items, embeddingItem{Index: e.TextIndex, Embedding: e.Embedding})
		}
		return items, nil
	}

	var resp flatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, domain.NewParseError("failed to decode embedding response", err)
	}
	if len(resp.Data) == 0 {
		return nil, domain.NewParseError("embedding response has no data array", nil)
	}
	items := make([]embeddingItem, 0, len(resp.Data))
	for _, e := range resp.Data {
		items = append(items, embeddingItem{Index: e.Index, Embedding: e.Embedding})
	}
	return items, nil
}
