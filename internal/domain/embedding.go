package domain

import (
	"fmt"
	"time"
)

// EmbeddingProvider identifies which embedding API serves a request
type EmbeddingProvider string

const (
	EmbeddingProviderOpenAI           EmbeddingProvider = "openai"
	EmbeddingProviderOpenAICompatible EmbeddingProvider = "openai-compatible"
	EmbeddingProviderJina             EmbeddingProvider = "jina"
	EmbeddingProviderVoyage           EmbeddingProvider = "voyage"
	EmbeddingProviderAliyun           EmbeddingProvider = "aliyun"
)

// EmbeddingConfig holds settings for chunking and embedding generation
type EmbeddingConfig struct {
	Provider       EmbeddingProvider
	BaseURL        string
	APIKey         string
	Model          string
	Dimensions     int
	BatchSize      int
	ChunkSize      int
	ChunkOverlap   int
	ContextEnabled bool
}

// DefaultEmbeddingConfig provides sane defaults for embedding settings.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:     EmbeddingProviderOpenAI,
		Model:        "text-embedding-3-small",
		BatchSize:    16,
		ChunkSize:    400,
		ChunkOverlap: 60,
	}
}

// ValidateEmbeddingConfig validates an EmbeddingConfig instance
func ValidateEmbeddingConfig(c EmbeddingConfig) error {
	if !isValidEmbeddingProvider(c.Provider) {
		return fmt.Errorf("embedding Provider is invalid: %s", c.Provider)
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("embedding BatchSize must be at least 1")
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("embedding ChunkSize must be positive")
	}

	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("embedding ChunkOverlap must be smaller than ChunkSize")
	}

	return nil
}

func isValidEmbeddingProvider(p EmbeddingProvider) bool {
	switch p {
	case EmbeddingProviderOpenAI, EmbeddingProviderOpenAICompatible,
		EmbeddingProviderJina, EmbeddingProviderVoyage, EmbeddingProviderAliyun:
		return true
	}
	return false
}

// EmbeddingJobStatus represents the status of an embedding job
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

// EmbeddingJob represents an async embedding run over a document or a
// whole knowledge base
type EmbeddingJob struct {
	ID              string
	DocumentID      string // Set for single-document runs
	KnowledgeBaseID string // Set for whole-knowledge-base runs
	Status          EmbeddingJobStatus
	Retries         int32
	Error           string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// ValidateEmbeddingJob validates an EmbeddingJob instance
func ValidateEmbeddingJob(j *EmbeddingJob) error {
	if j == nil {
		return fmt.Errorf("embedding job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("embedding job ID is required")
	}

	if j.DocumentID == "" && j.KnowledgeBaseID == "" {
		return fmt.Errorf("embedding job must have either DocumentID or KnowledgeBaseID")
	}

	if j.DocumentID != "" && j.KnowledgeBaseID != "" {
		return fmt.Errorf("embedding job cannot have both DocumentID and KnowledgeBaseID")
	}

	if !isValidEmbeddingJobStatus(j.Status) {
		return fmt.Errorf("embedding job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("embedding job Retries cannot be negative")
	}

	return nil
}

// isValidEmbeddingJobStatus checks if an EmbeddingJobStatus is valid
func isValidEmbeddingJobStatus(s EmbeddingJobStatus) bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusProcessing,
		EmbeddingJobStatusCompleted, EmbeddingJobStatusFailed:
		return true
	}
	return false
}
