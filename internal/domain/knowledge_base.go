package domain

import (
	"fmt"
	"time"
)

// KnowledgeBase groups documents into one searchable scope
type KnowledgeBase struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// NewKnowledgeBase creates a new KnowledgeBase instance
func NewKnowledgeBase(id, name string, createdAt time.Time) *KnowledgeBase {
	return &KnowledgeBase{
		ID:        id,
		Name:      name,
		CreatedAt: createdAt,
	}
}

// ValidateKnowledgeBase validates a KnowledgeBase instance
func ValidateKnowledgeBase(kb *KnowledgeBase) error {
	if kb == nil {
		return fmt.Errorf("knowledge base cannot be nil")
	}

	if kb.ID == "" {
		return fmt.Errorf("knowledge base ID is required")
	}

	if kb.Name == "" {
		return fmt.Errorf("knowledge base Name is required")
	}

	return nil
}
