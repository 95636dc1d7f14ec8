package service

import (
	"context"
	"strings"

	"github.com/quarrydocs/quarry/internal/domain"
)

// SettingsRepositoryInterface defines the repository interface for stored
// embedding and reranker configuration
type SettingsRepositoryInterface interface {
	GetEmbeddingConfig(ctx context.Context) (domain.EmbeddingConfig, error)
	SaveEmbeddingConfig(ctx context.Context, cfg domain.EmbeddingConfig) error
	GetRerankerConfig(ctx context.Context) (domain.RerankerConfig, error)
	SaveRerankerConfig(ctx context.Context, cfg domain.RerankerConfig) error
}

// SettingsService mediates stored configuration. Stored API keys are never
// echoed back verbatim: every read-back surface goes through the masked
// accessors.
type SettingsService struct {
	repo SettingsRepositoryInterface
}

// NewSettingsService creates a new SettingsService instance
func NewSettingsService(repo SettingsRepositoryInterface) *SettingsService {
	return &SettingsService{repo: repo}
}

// EmbeddingConfig returns the stored embedding configuration with secrets
// intact, for pipeline use only.
func (s *SettingsService) EmbeddingConfig(ctx context.Context) (domain.EmbeddingConfig, error) {
	return s.repo.GetEmbeddingConfig(ctx)
}

// RerankerConfig returns the stored reranker configuration with secrets
// intact, for pipeline use only.
func (s *SettingsService) RerankerConfig(ctx context.Context) (domain.RerankerConfig, error) {
	return s.repo.GetRerankerConfig(ctx)
}

// MaskedEmbeddingConfig returns the embedding configuration safe for
// returning to callers.
func (s *SettingsService) MaskedEmbeddingConfig(ctx context.Context) (domain.EmbeddingConfig, error) {
	cfg, err := s.repo.GetEmbeddingConfig(ctx)
	if err != nil {
		return domain.EmbeddingConfig{}, err
	}
	cfg.APIKey = MaskSecret(cfg.APIKey)
	return cfg, nil
}

// MaskedRerankerConfig returns the reranker configuration safe for
// returning to callers.
func (s *SettingsService) MaskedRerankerConfig(ctx context.Context) (domain.RerankerConfig, error) {
	cfg, err := s.repo.GetRerankerConfig(ctx)
	if err != nil {
		return domain.RerankerConfig{}, err
	}
	cfg.APIKey = MaskSecret(cfg.APIKey)
	return cfg, nil
}

// UpdateEmbeddingConfig validates and stores embedding settings. A masked or
// empty APIKey in the update keeps the previously stored key, so clients can
// round-trip masked views without losing the secret.
func (s *SettingsService) UpdateEmbeddingConfig(ctx context.Context, cfg domain.EmbeddingConfig) error {
	if cfg.APIKey == "" || isMasked(cfg.APIKey) {
		stored, err := s.repo.GetEmbeddingConfig(ctx)
		if err != nil {
			return err
		}
		cfg.APIKey = stored.APIKey
	}

	if err := domain.ValidateEmbeddingConfig(cfg); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid embedding settings", err)
	}
	return s.repo.SaveEmbeddingConfig(ctx, cfg)
}

// UpdateRerankerConfig validates and stores reranker settings, with the same
// masked-key round-trip rule as UpdateEmbeddingConfig.
func (s *SettingsService) UpdateRerankerConfig(ctx context.Context, cfg domain.RerankerConfig) error {
	if cfg.APIKey == "" || isMasked(cfg.APIKey) {
		stored, err := s.repo.GetRerankerConfig(ctx)
		if err != nil {
			return err
		}
		cfg.APIKey = stored.APIKey
	}

	if err := domain.ValidateRerankerConfig(cfg); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid reranker settings", err)
	}
	return s.repo.SaveRerankerConfig(ctx, cfg)
}

// MaskSecret hides all but the last four characters of a secret.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

func isMasked(secret string) bool {
	return strings.HasPrefix(secret, "****")
}
