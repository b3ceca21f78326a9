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
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/replyforge/replyforge/internal/api/handlers"
	"github.com/replyforge/replyforge/internal/config"
	"github.com/replyforge/replyforge/internal/crawler"
	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/jobs"
	"github.com/replyforge/replyforge/internal/llm"
	"github.com/replyforge/replyforge/internal/rag"
	"github.com/replyforge/replyforge/internal/repository"
	"github.com/replyforge/replyforge/internal/server"
	"github.com/replyforge/replyforge/internal/service"
	"github.com/replyforge/replyforge/internal/storage"
	"github.com/replyforge/replyforge/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the replyforge API server and the ingestion worker",
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
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: cfg.SentrySampleRate,
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

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	tenantRepo := repository.NewTenantRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	sourceRepo := repository.NewSourceRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	escalationRepo := repository.NewEscalationRepository(pool)
	ingestJobRepo := repository.NewIngestJobRepository(pool)
	answerLogRepo := repository.NewAnswerLogRepository(pool)
	chunkIndexRepo := repository.NewChunkIndexRepository(pool)
	txManager := repository.NewTxRunner(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(tenantRepo, apiKeyRepo, uuidGen)

	if cfg.InitTenantName != "" {
		if err := bootstrapInitialTenant(ctx, cfg, authSvc, tenantRepo); err != nil {
			return fmt.Errorf("failed to bootstrap initial tenant: %w", err)
		}
	}

	var objectStore service.ObjectStore = &unconfiguredObjectStore{}
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		objectStore = s3Client
	}

	ingestionSvc := service.NewIngestionService(sourceRepo, ingestJobRepo, chunkIndexRepo, objectStore)
	conversationSvc := service.NewConversationService(conversationRepo, escalationRepo)
	analyticsSvc := service.NewAnalyticsService(answerLogRepo)

	chunkCfg := rag.ChunkConfig{
		Size:     cfg.ChunkSize,
		Overlap:  cfg.ChunkOverlap,
		MinChars: rag.DefaultChunkConfig().MinChars,
	}

	var answerSvc handlers.AnswerService = &unconfiguredAnswerService{}
	var ingestWorker *jobs.Worker
	if cfg.HasOpenAI() {
		client := llm.NewClient(cfg.OpenAIAPIKey)

		expander := rag.NewExpander(client, llm.DefaultChatModel)
		retrieverCfg := rag.DefaultRetrieverConfig()
		retrieverCfg.PerQueryTopK = cfg.RetrievalTopK
		retriever := rag.NewRetriever(chunkIndexRepo, client, expander, retrieverCfg)
		generator := rag.NewGenerator(client)

		var reranker rag.Reranker = rag.NewScoreReranker()
		if cfg.Reranker == config.RerankerModel {
			reranker = rag.NewModelReranker(client, llm.DefaultChatModel)
		}
		pipeline := rag.NewPipeline(retriever, reranker, generator, cfg.AnswerSourceCap)
		classifier := service.NewIntentClassifier(client, llm.DefaultChatModel)

		answerSvc = service.NewAnswerService(tenantRepo, conversationSvc, pipeline, classifier, answerLogRepo)

		siteCrawler := crawler.New(crawler.Config{
			MaxDepth: cfg.CrawlMaxDepth,
			MaxPages: cfg.CrawlMaxPages,
		})
		processor := jobs.NewIngestWorker(
			ingestJobRepo, sourceRepo, objectStore, siteCrawler,
			client, txManager, chunkCfg, string(llm.DefaultEmbeddingModel),
		)
		ingestWorker = jobs.NewWorker(processor, cfg.WorkerPollInterval)
		go ingestWorker.Start(ctx)
		log.Println("ingest worker started")
	} else {
		log.Println("OPENAI_API_KEY not set: chat and ingestion are disabled")
	}

	routerCfg := server.RouterConfig{
		AuthValidator:       authSvc,
		ChatHandler:         handlers.NewChatHandler(answerSvc),
		SourceHandler:       handlers.NewSourceHandler(ingestionSvc),
		ConversationHandler: handlers.NewConversationHandler(conversationSvc),
		AnalyticsHandler:    handlers.NewAnalyticsHandler(analyticsSvc),
		TenantHandler:       handlers.NewTenantHandler(authSvc),
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

	if ingestWorker != nil {
		ingestWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// unconfiguredObjectStore stands in when no S3 endpoint is configured.
// Website and FAQ sources still work; document uploads fail cleanly.
type unconfiguredObjectStore struct{}

func (s *unconfiguredObjectStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	return fmt.Errorf("object storage not configured: S3_ENDPOINT required")
}

func (s *unconfiguredObjectStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("object storage not configured: S3_ENDPOINT required")
}

func (s *unconfiguredObjectStore) DeleteObject(ctx context.Context, key string) error {
	return fmt.Errorf("object storage not configured: S3_ENDPOINT required")
}

func (s *unconfiguredObjectStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	return "", fmt.Errorf("object storage not configured: S3_ENDPOINT required")
}

type unconfiguredAnswerService struct{}

func (s *unconfiguredAnswerService) AnswerQuery(ctx context.Context, tenantID, conversationID, userMessage string) (*service.AnswerOutput, error) {
	return nil, fmt.Errorf("answer service not configured: OPENAI_API_KEY required")
}

func bootstrapInitialTenant(ctx context.Context, cfg *config.Config, authSvc *service.AuthService, tenantRepo *repository.TenantRepository) error {
	tenant, err := tenantRepo.GetByName(ctx, cfg.InitTenantName)
	if err != nil && err != domain.ErrTenantNotFound {
		return fmt.Errorf("failed to check existing tenant: %w", err)
	}

	if tenant == nil {
		tenant, err = authSvc.CreateTenant(ctx, cfg.InitTenantName)
		if err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
		log.Printf("bootstrap: created tenant '%s' (id: %s)", tenant.Name, tenant.ID)
	} else {
		log.Printf("bootstrap: tenant '%s' already exists (id: %s)", tenant.Name, tenant.ID)
	}

	if cfg.InitAPIKey != "" {
		if !service.IsValidAPIToken(cfg.InitAPIKey) {
			return fmt.Errorf("invalid REPLYFORGE_INIT_API_KEY format (expected 'rfk_<64 hex chars>')")
		}

		if _, err := authSvc.ValidateAPIKey(ctx, cfg.InitAPIKey); err == nil {
			log.Println("bootstrap: API key already exists")
			return nil
		}

		if err := authSvc.CreateAPIKeyWithToken(ctx, tenant.ID, "bootstrap", cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}
		log.Println("bootstrap: created API key")
	}

	return nil
}

func runMigrations(databaseURL string) error {
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
