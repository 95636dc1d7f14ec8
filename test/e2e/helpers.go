//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quarrydocs/quarry/internal/api/handlers"
	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/quarrydocs/quarry/internal/jobs"
	"github.com/quarrydocs/quarry/internal/repository"
	"github.com/quarrydocs/quarry/internal/rerank"
	"github.com/quarrydocs/quarry/internal/server"
	"github.com/quarrydocs/quarry/internal/service"
	"github.com/quarrydocs/quarry/internal/storage"
	"github.com/quarrydocs/quarry/internal/testutil"
)

const testAPIToken = "e2e-test-token"

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers, a running
// server and a background embedding worker backed by a deterministic
// embedding client.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "quarry-sources",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, s3Client, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the quarry and quarryd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "quarry-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "quarryd"), "./cmd/quarryd")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build quarryd: %v\n%s", err, out)
	}

	cmd = exec.Command("go", "build", "-o", filepath.Join(tmpDir, "quarry"), "./cmd/quarry")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build quarry: %v\n%s", err, out)
	}
}

// RunQuarry runs the quarry CLI command
func (e *E2ETestEnv) RunQuarry(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "quarry"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("QUARRY_API_TOKEN=%s", testAPIToken),
		fmt.Sprintf("QUARRY_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunQuarryWithInput runs the quarry CLI command with stdin input
func (e *E2ETestEnv) RunQuarryWithInput(workDir string, input string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "quarry"), args...)
	cmd.Dir = workDir
	cmd.Stdin = bytes.NewReader([]byte(input))
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("QUARRY_API_TOKEN=%s", testAPIToken),
		fmt.Sprintf("QUARRY_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Put performs a PUT request
func (e *E2ETestEnv) Put(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("PUT", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// DownloadFile downloads a file from the presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// WaitForDocumentStatus polls the status endpoint until the document reaches
// the expected embedding status.
func (e *E2ETestEnv) WaitForDocumentStatus(documentID, want string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	var last string
	for time.Now().Before(deadline) {
		resp, err := e.Get("/documents/"+documentID+"/status", testAPIToken)
		if err == nil {
			var status struct {
				EmbeddingStatus string `json:"embedding_status"`
				EmbeddingError  string `json:"embedding_error"`
			}
			if json.Unmarshal(resp.Data, &status) == nil {
				last = status.EmbeddingStatus
				if last == want {
					return
				}
				if last == "failed" && want != "failed" {
					e.T.Fatalf("document %s failed to embed: %s", documentID, status.EmbeddingError)
				}
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	e.T.Fatalf("document %s did not reach status %q within %v (last: %q)", documentID, want, timeout, last)
}

// startServer starts the HTTP server with all handlers and the embedding worker
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func()) {
	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	knowledgeBaseRepo := repository.NewKnowledgeBaseRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	searchLogRepo := repository.NewSearchLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	settingsSvc := service.NewSettingsService(settingsRepo)
	configSource := &fixedConfigSource{settings: settingsSvc}

	embeddingSvc := service.NewEmbeddingService(&hashEmbeddingClient{}, documentRepo, chunkRepo, configSource, nil)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	processor := jobs.NewEmbeddingWorker(embeddingJobRepo, embeddingSvc)
	worker := jobs.NewWorker(processor, 100*time.Millisecond)
	go worker.Start(workerCtx)

	documentSvc := service.NewDocumentServiceWithTx(documentRepo, embeddingJobRepo, s3Client, txRunner)
	knowledgeBaseSvc := service.NewKnowledgeBaseService(knowledgeBaseRepo)
	searchSvc := service.NewSearchService(chunkRepo, embeddingSvc, &noopReranker{}, configSource, searchLogRepo)

	uuidGen := &service.DefaultUUIDGenerator{}

	cfg := server.RouterConfig{
		APIToken:             testAPIToken,
		DocumentHandler:      handlers.NewDocumentHandler(documentSvc, s3Client),
		SearchHandler:        handlers.NewSearchHandler(searchSvc),
		SettingsHandler:      handlers.NewSettingsHandler(settingsSvc),
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(knowledgeBaseSvc, embeddingJobRepo, uuidGen.NewString),
	}

	router := server.NewRouter(cfg)
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		cancelWorker()
		worker.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// fixedConfigSource serves stored reranker settings but pins the embedding
// config to values the hash client can satisfy without network access.
type fixedConfigSource struct {
	settings *service.SettingsService
}

func (s *fixedConfigSource) EmbeddingConfig(ctx context.Context) (domain.EmbeddingConfig, error) {
	cfg := domain.DefaultEmbeddingConfig()
	cfg.APIKey = "e2e-local"
	cfg.Dimensions = 1536
	return cfg, nil
}

func (s *fixedConfigSource) RerankerConfig(ctx context.Context) (domain.RerankerConfig, error) {
	return s.settings.RerankerConfig(ctx)
}

// hashEmbeddingClient produces deterministic unit vectors from text content.
// Identical texts embed identically and share more mass on common tokens, so
// vector similarity is stable across runs without calling a real provider.
type hashEmbeddingClient struct{}

func (c *hashEmbeddingClient) Embed(ctx context.Context, texts []string, cfg domain.EmbeddingConfig) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashEmbedding(text, 1536)
	}
	return out, nil
}

func (c *hashEmbeddingClient) EmbedOne(ctx context.Context, text string, cfg domain.EmbeddingConfig) ([]float32, error) {
	return hashEmbedding(text, 1536), nil
}

func hashEmbedding(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		sum := sha256.Sum256([]byte(word))
		idx := binary.BigEndian.Uint32(sum[:4]) % uint32(dims)
		vec[idx] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// noopReranker keeps the server wiring complete without an external reranker.
type noopReranker struct{}

func (r *noopReranker) Rerank(ctx context.Context, query string, candidates []domain.SearchCandidate, cfg domain.RerankerConfig, topK int) (*rerank.Result, error) {
	return nil, fmt.Errorf("reranker not available in e2e environment")
}
