package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quarrydocs/quarry/internal/domain"
)

const (
	settingsKeyEmbedding = "embedding"
	settingsKeyReranker  = "reranker"
)

// SettingsRepository stores pipeline configuration as versioned JSONB rows
// keyed by name. Missing rows fall back to defaults so a fresh database
// works without a settings bootstrap.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

type embeddingSettingsRow struct {
	Provider       string `json:"provider"`
	BaseURL        string `json:"base_url,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	Model          string `json:"model"`
	Dimensions     int    `json:"dimensions,omitempty"`
	BatchSize      int    `json:"batch_size"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
	ContextEnabled bool   `json:"context_enabled"`
}

type rerankerSettingsRow struct {
	Provider       string            `json:"provider"`
	APIKey         string            `json:"api_key,omitempty"`
	Model          string            `json:"model,omitempty"`
	BaseURL        string            `json:"base_url,omitempty"`
	ResponseFormat string            `json:"response_format,omitempty"`
	CustomHeaders  map[string]string `json:"custom_headers,omitempty"`
	Enabled        bool              `json:"enabled"`
}

func (r *SettingsRepository) GetEmbeddingConfig(ctx context.Context) (domain.EmbeddingConfig, error) {
	raw, err := r.get(ctx, settingsKeyEmbedding)
	if err != nil {
		return domain.EmbeddingConfig{}, err
	}
	if raw == nil {
		return domain.DefaultEmbeddingConfig(), nil
	}

	var row embeddingSettingsRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return domain.EmbeddingConfig{}, fmt.Errorf("failed to decode embedding settings: %w", err)
	}
	return domain.EmbeddingConfig{
		Provider:       domain.EmbeddingProvider(row.Provider),
		BaseURL:        row.BaseURL,
		APIKey:         row.APIKey,
		Model:          row.Model,
		Dimensions:     row.Dimensions,
		BatchSize:      row.BatchSize,
		ChunkSize:      row.ChunkSize,
		ChunkOverlap:   row.ChunkOverlap,
		ContextEnabled: row.ContextEnabled,
	}, nil
}

func (r *SettingsRepository) SaveEmbeddingConfig(ctx context.Context, cfg domain.EmbeddingConfig) error {
	row := embeddingSettingsRow{
		Provider:       string(cfg.Provider),
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		Dimensions:     cfg.Dimensions,
		BatchSize:      cfg.BatchSize,
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		ContextEnabled: cfg.ContextEnabled,
	}
	return r.save(ctx, settingsKeyEmbedding, row)
}

func (r *SettingsRepository) GetRerankerConfig(ctx context.Context) (domain.RerankerConfig, error) {
	raw, err := r.get(ctx, settingsKeyReranker)
	if err != nil {
		return domain.RerankerConfig{}, err
	}
	if raw == nil {
		return domain.DefaultRerankerConfig(), nil
	}

	var row rerankerSettingsRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return domain.RerankerConfig{}, fmt.Errorf("failed to decode reranker settings: %w", err)
	}
	return domain.RerankerConfig{
		Provider:       domain.RerankerProvider(row.Provider),
		APIKey:         row.APIKey,
		Model:          row.Model,
		BaseURL:        row.BaseURL,
		ResponseFormat: domain.RerankResponseFormat(row.ResponseFormat),
		CustomHeaders:  row.CustomHeaders,
		Enabled:        row.Enabled,
	}, nil
}

func (r *SettingsRepository) SaveRerankerConfig(ctx context.Context, cfg domain.RerankerConfig) error {
	row := rerankerSettingsRow{
		Provider:       string(cfg.Provider),
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		BaseURL:        cfg.BaseURL,
		ResponseFormat: string(cfg.ResponseFormat),
		CustomHeaders:  cfg.CustomHeaders,
		Enabled:        cfg.Enabled,
	}
	return r.save(ctx, settingsKeyReranker, row)
}

func (r *SettingsRepository) get(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`,
		key,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return raw, nil
}

func (r *SettingsRepository) save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, raw, time.Now().UTC(),
	)
	return err
}
