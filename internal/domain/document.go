package domain

import (
	"fmt"
	"time"
)

// DocumentEmbeddingStatus represents the embedding lifecycle of a document
type DocumentEmbeddingStatus string

const (
	DocumentEmbeddingPending    DocumentEmbeddingStatus = "pending"
	DocumentEmbeddingProcessing DocumentEmbeddingStatus = "processing"
	DocumentEmbeddingCompleted  DocumentEmbeddingStatus = "completed"
	DocumentEmbeddingFailed     DocumentEmbeddingStatus = "failed"
)

// Document represents a stored document belonging to a knowledge base
type Document struct {
	ID              string
	KnowledgeBaseID string
	Title           string
	SourceURL       string
	Content         string
	EmbeddingStatus DocumentEmbeddingStatus
	EmbeddingError  string
	ChunkCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewDocument creates a new Document instance
func NewDocument(id, knowledgeBaseID, title, content string, createdAt time.Time) *Document {
	return &Document{
		ID:              id,
		KnowledgeBaseID: knowledgeBaseID,
		Title:           title,
		Content:         content,
		EmbeddingStatus: DocumentEmbeddingPending,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.KnowledgeBaseID == "" {
		return fmt.Errorf("document KnowledgeBaseID is required")
	}

	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}

	if !isValidDocumentEmbeddingStatus(d.EmbeddingStatus) {
		return fmt.Errorf("document EmbeddingStatus is invalid: %s", d.EmbeddingStatus)
	}

	return nil
}

// CanStartEmbedding reports whether a new embedding pass may begin.
// A document already being processed is rejected, not queued.
func (d *Document) CanStartEmbedding() bool {
	return d.EmbeddingStatus != DocumentEmbeddingProcessing
}

func isValidDocumentEmbeddingStatus(s DocumentEmbeddingStatus) bool {
	switch s {
	case DocumentEmbeddingPending, DocumentEmbeddingProcessing,
		DocumentEmbeddingCompleted, DocumentEmbeddingFailed:
		return true
	}
	return false
}
