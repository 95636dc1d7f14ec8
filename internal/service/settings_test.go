package service

import (
	"context"
	"testing"

	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSettingsRepository is a mock implementation of SettingsRepositoryInterface
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetEmbeddingConfig(ctx context.Context) (domain.EmbeddingConfig, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.EmbeddingConfig), args.Error(1)
}

func (m *MockSettingsRepository) SaveEmbeddingConfig(ctx context.Context, cfg domain.EmbeddingConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockSettingsRepository) GetRerankerConfig(ctx context.Context) (domain.RerankerConfig, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.RerankerConfig), args.Error(1)
}

func (m *MockSettingsRepository) SaveRerankerConfig(ctx context.Context, cfg domain.RerankerConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "****", MaskSecret("abcd"))
	assert.Equal(t, "****3456", MaskSecret("sk-123456"))
}

func TestSettingsService_MaskedConfigs(t *testing.T) {
	ctx := context.Background()

	t.Run("masked embedding config hides the key", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		stored := domain.DefaultEmbeddingConfig()
		stored.APIKey = "sk-secret-1234"
		repo.On("GetEmbeddingConfig", mock.Anything).Return(stored, nil)

		service := NewSettingsService(repo)
		cfg, err := service.MaskedEmbeddingConfig(ctx)

		require.NoError(t, err)
		assert.Equal(t, "****1234", cfg.APIKey)
		assert.Equal(t, stored.Model, cfg.Model)
	})

	t.Run("masked reranker config hides the key", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		stored := domain.RerankerConfig{
			Provider: domain.RerankerProviderCohere,
			APIKey:   "co-secret-5678",
			Enabled:  true,
		}
		repo.On("GetRerankerConfig", mock.Anything).Return(stored, nil)

		service := NewSettingsService(repo)
		cfg, err := service.MaskedRerankerConfig(ctx)

		require.NoError(t, err)
		assert.Equal(t, "****5678", cfg.APIKey)
	})

	t.Run("pipeline accessor keeps the key intact", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		stored := domain.DefaultEmbeddingConfig()
		stored.APIKey = "sk-secret-1234"
		repo.On("GetEmbeddingConfig", mock.Anything).Return(stored, nil)

		service := NewSettingsService(repo)
		cfg, err := service.EmbeddingConfig(ctx)

		require.NoError(t, err)
		assert.Equal(t, "sk-secret-1234", cfg.APIKey)
	})
}

func TestSettingsService_UpdateEmbeddingConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a new key as given", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		cfg := domain.DefaultEmbeddingConfig()
		cfg.APIKey = "sk-new-key"

		repo.On("SaveEmbeddingConfig", mock.Anything, mock.MatchedBy(func(c domain.EmbeddingConfig) bool {
			return c.APIKey == "sk-new-key"
		})).Return(nil)

		service := NewSettingsService(repo)
		require.NoError(t, service.UpdateEmbeddingConfig(ctx, cfg))
		repo.AssertExpectations(t)
	})

	t.Run("masked key round-trip keeps the stored key", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		stored := domain.DefaultEmbeddingConfig()
		stored.APIKey = "sk-stored-key"
		repo.On("GetEmbeddingConfig", mock.Anything).Return(stored, nil)

		update := domain.DefaultEmbeddingConfig()
		update.APIKey = "****-key"
		update.Model = "text-embedding-3-large"

		repo.On("SaveEmbeddingConfig", mock.Anything, mock.MatchedBy(func(c domain.EmbeddingConfig) bool {
			return c.APIKey == "sk-stored-key" && c.Model == "text-embedding-3-large"
		})).Return(nil)

		service := NewSettingsService(repo)
		require.NoError(t, service.UpdateEmbeddingConfig(ctx, update))
		repo.AssertExpectations(t)
	})

	t.Run("rejects invalid settings", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		cfg := domain.DefaultEmbeddingConfig()
		cfg.APIKey = "sk-key"
		cfg.BatchSize = 0

		service := NewSettingsService(repo)
		err := service.UpdateEmbeddingConfig(ctx, cfg)

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
		repo.AssertNotCalled(t, "SaveEmbeddingConfig", mock.Anything, mock.Anything)
	})
}

func TestSettingsService_UpdateRerankerConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("masked key round-trip keeps the stored key", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		stored := domain.RerankerConfig{
			Provider: domain.RerankerProviderJina,
			APIKey:   "jina-stored-key",
			Enabled:  true,
		}
		repo.On("GetRerankerConfig", mock.Anything).Return(stored, nil)
		repo.On("SaveRerankerConfig", mock.Anything, mock.MatchedBy(func(c domain.RerankerConfig) bool {
			return c.APIKey == "jina-stored-key" && c.Provider == domain.RerankerProviderJina
		})).Return(nil)

		update := stored
		update.APIKey = "****-key"

		service := NewSettingsService(repo)
		require.NoError(t, service.UpdateRerankerConfig(ctx, update))
		repo.AssertExpectations(t)
	})

	t.Run("disabling the reranker needs no key", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		repo.On("GetRerankerConfig", mock.Anything).Return(domain.DefaultRerankerConfig(), nil)
		repo.On("SaveRerankerConfig", mock.Anything, mock.Anything).Return(nil)

		service := NewSettingsService(repo)
		err := service.UpdateRerankerConfig(ctx, domain.RerankerConfig{
			Provider: domain.RerankerProviderNone,
		})

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}
