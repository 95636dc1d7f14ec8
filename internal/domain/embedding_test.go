package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmbeddingConfig(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		assert.NoError(t, ValidateEmbeddingConfig(DefaultEmbeddingConfig()))
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := DefaultEmbeddingConfig()
		cfg.Provider = "huggingface"
		err := ValidateEmbeddingConfig(cfg)
		assert.ErrorContains(t, err, "Provider is invalid")
	})

	t.Run("batch size below one", func(t *testing.T) {
		cfg := DefaultEmbeddingConfig()
		cfg.BatchSize = 0
		err := ValidateEmbeddingConfig(cfg)
		assert.ErrorContains(t, err, "BatchSize")
	})

	t.Run("overlap must be smaller than chunk size", func(t *testing.T) {
		cfg := DefaultEmbeddingConfig()
		cfg.ChunkSize = 100
		cfg.ChunkOverlap = 100
		err := ValidateEmbeddingConfig(cfg)
		assert.ErrorContains(t, err, "ChunkOverlap")
	})
}

func TestValidateEmbeddingJob(t *testing.T) {
	t.Run("valid document job", func(t *testing.T) {
		job := &EmbeddingJob{ID: "job-1", DocumentID: "doc-1", Status: EmbeddingJobStatusPending}
		assert.NoError(t, ValidateEmbeddingJob(job))
	})

	t.Run("valid knowledge base job", func(t *testing.T) {
		job := &EmbeddingJob{ID: "job-1", KnowledgeBaseID: "kb-1", Status: EmbeddingJobStatusPending}
		assert.NoError(t, ValidateEmbeddingJob(job))
	})

	t.Run("requires a target", func(t *testing.T) {
		job := &EmbeddingJob{ID: "job-1", Status: EmbeddingJobStatusPending}
		assert.Error(t, ValidateEmbeddingJob(job))
	})

	t.Run("rejects both targets", func(t *testing.T) {
		job := &EmbeddingJob{ID: "job-1", DocumentID: "doc-1", KnowledgeBaseID: "kb-1", Status: EmbeddingJobStatusPending}
		assert.Error(t, ValidateEmbeddingJob(job))
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		job := &EmbeddingJob{ID: "job-1", DocumentID: "doc-1", Status: "queued"}
		assert.Error(t, ValidateEmbeddingJob(job))
	})
}
