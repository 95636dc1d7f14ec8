package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/quarrydocs/quarry/internal/api/handlers"
	"github.com/quarrydocs/quarry/internal/config"
	"github.com/quarrydocs/quarry/internal/database"
	"github.com/quarrydocs/quarry/internal/domain"
	"github.com/quarrydocs/quarry/internal/embeddings"
	"github.com/quarrydocs/quarry/internal/jobs"
	"github.com/quarrydocs/quarry/internal/openai"
	"github.com/quarrydocs/quarry/internal/repository"
	"github.com/quarrydocs/quarry/internal/rerank"
	"github.com/quarrydocs/quarry/internal/server"
	"github.com/quarrydocs/quarry/internal/service"
	"github.com/quarrydocs/quarry/internal/storage"
	"github.com/quarrydocs/quarry/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the quarry API server and the embedding worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		sampleRate := cfg.SentrySampleRate
		if cfg.SentryEnvironment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPoolFromURL(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	knowledgeBaseRepo := repository.NewKnowledgeBaseRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	searchLogRepo := repository.NewSearchLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var archive *storage.S3Client
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		archive, err = storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	}

	settingsSvc := service.NewSettingsService(settingsRepo)
	configSource := &envFallbackConfigSource{settings: settingsSvc, openAIKey: cfg.OpenAIAPIKey}

	var augmenter service.ContextGenerator
	if cfg.HasOpenAI() {
		augmenter = service.NewContextAugmenter(openai.NewClient(cfg.OpenAIAPIKey))
	}

	embeddingClient := embeddings.NewClient()
	embeddingSvc := service.NewEmbeddingService(embeddingClient, documentRepo, chunkRepo, configSource, augmenter)

	embeddingProcessor := jobs.NewEmbeddingWorker(embeddingJobRepo, embeddingSvc)
	embeddingWorker := jobs.NewWorker(embeddingProcessor, cfg.WorkerPollInterval)
	go embeddingWorker.Start(ctx)
	log.Println("embedding worker started")

	var sourceArchive service.SourceArchive
	var urlSigner handlers.SourceURLSigner
	if archive != nil {
		sourceArchive = archive
		urlSigner = archive
	}

	documentSvc := service.NewDocumentServiceWithTx(documentRepo, embeddingJobRepo, sourceArchive, txRunner)
	knowledgeBaseSvc := service.NewKnowledgeBaseService(knowledgeBaseRepo)
	searchSvc := service.NewSearchService(chunkRepo, embeddingSvc, rerank.NewClient(), configSource, searchLogRepo)

	uuidGen := &service.DefaultUUIDGenerator{}

	routerCfg := server.RouterConfig{
		APIToken:             cfg.APIToken,
		DocumentHandler:      handlers.NewDocumentHandler(documentSvc, urlSigner),
		SearchHandler:        handlers.NewSearchHandler(searchSvc),
		SettingsHandler:      handlers.NewSettingsHandler(settingsSvc),
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(knowledgeBaseSvc, embeddingJobRepo, uuidGen.NewString),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	embeddingWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// envFallbackConfigSource serves stored settings, filling in the process
// OPENAI_API_KEY when the stored embedding config has no key of its own.
type envFallbackConfigSource struct {
	settings  *service.SettingsService
	openAIKey string
}

func (s *envFallbackConfigSource) EmbeddingConfig(ctx context.Context) (domain.EmbeddingConfig, error) {
	cfg, err := s.settings.EmbeddingConfig(ctx)
	if err != nil {
		return domain.EmbeddingConfig{}, err
	}
	if cfg.APIKey == "" && cfg.Provider == domain.EmbeddingProviderOpenAI {
		cfg.APIKey = s.openAIKey
	}
	return cfg, nil
}

func (s *envFallbackConfigSource) RerankerConfig(ctx context.Context) (domain.RerankerConfig, error) {
	return s.settings.RerankerConfig(ctx)
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
