package domain

// SearchType records which first-stage list a candidate appeared in.
// It is informational only and never affects scoring.
type SearchType string

const (
	SearchTypeVector  SearchType = "vector"
	SearchTypeLexical SearchType = "lexical"
	SearchTypeHybrid  SearchType = "hybrid"
)

// SearchCandidate is a transient per-query retrieval result
type SearchCandidate struct {
	ChunkID        string
	DocumentID     string
	DocumentTitle  string
	Content        string
	ContextSummary string
	ChunkIndex     int
	VectorScore    float32
	LexicalScore   float32
	CombinedScore  float32
	SearchType     SearchType
}

// RerankResult pairs a candidate with its cross-encoder relevance score
type RerankResult struct {
	Candidate      SearchCandidate
	RelevanceScore float32
	OriginalRank   int
	NewRank        int
}
