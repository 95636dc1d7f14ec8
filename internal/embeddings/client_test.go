package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) domain.EmbeddingConfig {
	cfg := domain.DefaultEmbeddingConfig()
	cfg.Provider = domain.EmbeddingProviderOpenAICompatible
	cfg.BaseURL = baseURL
	cfg.APIKey = "test-key"
	cfg.BatchSize = 2
	return cfg
}

func TestEmbed_EmptyInput(t *testing.T) {
	client := NewClient()
	vectors, err := client.Embed(context.Background(), nil, testConfig("http://unused"))

	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbed_MissingAPIKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIKey = ""

	_, err := NewClient().Embed(context.Background(), []string{"text"}, cfg)

	require.Error(t, err)
	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeConfiguration, derr.Code)
	assert.False(t, called, "no network call may happen without an API key")
}

func TestEmbed_MissingBaseURLForGenericProvider(t *testing.T) {
	cfg := testConfig("")
	_, err := NewClient().Embed(context.Background(), []string{"text"}, cfg)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeConfiguration, derr.Code)
}

func TestEmbed_ReordersByResponseIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Answer in reverse order; the client must re-sort by index.
		fmt.Fprintf(w, `{"data":[`)
		for i := len(req.Input) - 1; i >= 0; i-- {
			if i < len(req.Input)-1 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"index":%d,"embedding":[%d.0,0.5]}`, i, i)
		}
		fmt.Fprint(w, `]}`)
	}))
	defer srv.Close()

	vectors, err := NewClient().Embed(context.Background(), []string{"a", "b"}, testConfig(srv.URL))

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.0, 0.5}, vectors[0])
	assert.Equal(t, []float32{1.0, 0.5}, vectors[1])
}

func TestEmbed_BatchesBySize(t *testing.T) {
	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		batchSizes = append(batchSizes, len(req.Input))

		fmt.Fprint(w, `{"data":[`)
		for i := range req.Input {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"index":%d,"embedding":[1.0]}`, i)
		}
		fmt.Fprint(w, `]}`)
	}))
	defer srv.Close()

	texts := []string{"one", "two", "three", "four", "five"}
	vectors, err := NewClient().Embed(context.Background(), texts, testConfig(srv.URL))

	require.NoError(t, err)
	assert.Len(t, vectors, 5)
	assert.Equal(t, []int{2, 2, 1}, batchSizes)
}

func TestEmbed_AliyunNestedFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input struct {
				Texts []string `json:"texts"`
			} `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input.Texts, 2)

		fmt.Fprint(w, `{"output":{"embeddings":[{"text_index":1,"embedding":[2.0]},{"text_index":0,"embedding":[1.0]}]}}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Provider = domain.EmbeddingProviderAliyun

	vectors, err := NewClient().Embed(context.Background(), []string{"a", "b"}, cfg)

	require.NoError(t, err)
	assert.Equal(t, []float32{1.0}, vectors[0])
	assert.Equal(t, []float32{2.0}, vectors[1])
}

func TestEmbed_ProviderErrorKeepsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"rate limit exceeded"}`)
	}))
	defer srv.Close()

	_, err := NewClient().Embed(context.Background(), []string{"text"}, testConfig(srv.URL))

	require.Error(t, err)
	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Contains(t, perr.Body, "rate limit exceeded")
}

func TestEmbed_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0}]}`)
	}))
	defer srv.Close()

	_, err := NewClient().Embed(context.Background(), []string{"text"}, testConfig(srv.URL))

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeParse, derr.Code)
}

func TestEmbedOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`)
	}))
	defer srv.Close()

	vector, err := NewClient().EmbedOne(context.Background(), "query text", testConfig(srv.URL))

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}
