package domain

import "fmt"

// RerankerProvider identifies which reranking API serves a request
type RerankerProvider string

const (
	RerankerProviderCohere           RerankerProvider = "cohere"
	RerankerProviderJina             RerankerProvider = "jina"
	RerankerProviderVoyage           RerankerProvider = "voyage"
	RerankerProviderAliyun           RerankerProvider = "aliyun"
	RerankerProviderOpenAICompatible RerankerProvider = "openai-compatible"
	RerankerProviderNone             RerankerProvider = "none"
)

// RerankResponseFormat pins the wire shape a reranker response is parsed
// with. Auto lets the parser detect the shape from the raw JSON.
type RerankResponseFormat string

const (
	RerankFormatCohere RerankResponseFormat = "cohere"
	RerankFormatJina   RerankResponseFormat = "jina"
	RerankFormatVoyage RerankResponseFormat = "voyage"
	RerankFormatAliyun RerankResponseFormat = "aliyun"
	RerankFormatAuto   RerankResponseFormat = "auto"
)

// RerankerConfig holds settings for the reranking stage
type RerankerConfig struct {
	Provider       RerankerProvider
	APIKey         string
	Model          string
	BaseURL        string
	ResponseFormat RerankResponseFormat
	CustomHeaders  map[string]string
	Enabled        bool
}

// DefaultRerankerConfig returns a disabled reranker configuration.
func DefaultRerankerConfig() RerankerConfig {
	return RerankerConfig{
		Provider:       RerankerProviderNone,
		ResponseFormat: RerankFormatAuto,
	}
}

// ValidateRerankerConfig validates a RerankerConfig instance
func ValidateRerankerConfig(c RerankerConfig) error {
	if !isValidRerankerProvider(c.Provider) {
		return fmt.Errorf("reranker Provider is invalid: %s", c.Provider)
	}

	switch c.ResponseFormat {
	case RerankFormatCohere, RerankFormatJina, RerankFormatVoyage,
		RerankFormatAliyun, RerankFormatAuto, "":
	default:
		return fmt.Errorf("reranker ResponseFormat is invalid: %s", c.ResponseFormat)
	}

	return nil
}

// RequiresAPIKey reports whether the provider cannot be called without a key.
// The generic provider may target unauthenticated self-hosted endpoints.
func (c RerankerConfig) RequiresAPIKey() bool {
	switch c.Provider {
	case RerankerProviderCohere, RerankerProviderJina,
		RerankerProviderVoyage, RerankerProviderAliyun:
		return true
	}
	return false
}

func isValidRerankerProvider(p RerankerProvider) bool {
	switch p {
	case RerankerProviderCohere, RerankerProviderJina, RerankerProviderVoyage,
		RerankerProviderAliyun, RerankerProviderOpenAICompatible, RerankerProviderNone:
		return true
	}
	return false
}
