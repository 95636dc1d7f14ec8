package domain

import "time"

// Chunk represents an embedded segment of a document.
// ContentHash covers OriginalContent only, so chunk change detection is
// independent of whether contextual augmentation is enabled.
type Chunk struct {
	ID                    string
	DocumentID            string
	Index                 int
	OriginalContent       string
	ContextSummary        string
	ContextualizedContent string
	ContentHash           string
	ContextHash           string
	TokenCount            int
	Embedding             []float32
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
