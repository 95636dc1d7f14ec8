package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/quarrydocs/quarry/internal/config"
	"github.com/quarrydocs/quarry/internal/database"
	"github.com/quarrydocs/quarry/internal/embeddings"
	"github.com/quarrydocs/quarry/internal/openai"
	"github.com/quarrydocs/quarry/internal/repository"
	"github.com/quarrydocs/quarry/internal/service"
	"github.com/spf13/cobra"
)

// EmbedKBCmd returns the embed-kb command, which runs a full embedding pass
// over every document in a knowledge base without going through the job
// queue. Useful for backfills and local testing.
func EmbedKBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed-kb <knowledge-base-id>",
		Short: "Embed all documents in a knowledge base",
		Long:  "Run the embedding pipeline synchronously over every document in the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE:  runEmbedKB,
	}
}

func runEmbedKB(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	knowledgeBaseID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPoolFromURL(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	settingsSvc := service.NewSettingsService(settingsRepo)
	configSource := &envFallbackConfigSource{settings: settingsSvc, openAIKey: cfg.OpenAIAPIKey}

	var augmenter service.ContextGenerator
	if cfg.HasOpenAI() {
		augmenter = service.NewContextAugmenter(openai.NewClient(cfg.OpenAIAPIKey))
	}

	embeddingSvc := service.NewEmbeddingService(embeddings.NewClient(), documentRepo, chunkRepo, configSource, augmenter)

	log.Printf("embedding knowledge base %s", knowledgeBaseID)
	if err := embeddingSvc.EmbedKnowledgeBase(ctx, knowledgeBaseID); err != nil {
		return fmt.Errorf("embedding run failed: %w", err)
	}

	log.Println("embedding run complete")
	return nil
}
