// main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/qdrant/go-client/qdrant"
	"github.com/typesense/typesense-go/v2/typesense"

	"github.com/aivisible/prompt-pipeline/internal/api"
	"github.com/aivisible/prompt-pipeline/internal/batch"
	"github.com/aivisible/prompt-pipeline/internal/cache"
	"github.com/aivisible/prompt-pipeline/internal/config"
	"github.com/aivisible/prompt-pipeline/internal/enrichment"
	"github.com/aivisible/prompt-pipeline/internal/llm"
	"github.com/aivisible/prompt-pipeline/internal/logging"
	"github.com/aivisible/prompt-pipeline/internal/models"
	"github.com/aivisible/prompt-pipeline/internal/notify"
	"github.com/aivisible/prompt-pipeline/internal/providerhealth"
	"github.com/aivisible/prompt-pipeline/internal/queue"
	"github.com/aivisible/prompt-pipeline/internal/scheduler"
	"github.com/aivisible/prompt-pipeline/internal/scrape/providera"
	"github.com/aivisible/prompt-pipeline/internal/scrape/providerb"
	"github.com/aivisible/prompt-pipeline/internal/store"
)

// createDatabaseClient opens the Postgres pool used by every store.*
// repository, mirroring the teacher's main.go connection setup.
func createDatabaseClient(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	db, err := sqlx.ConnectContext(ctx, "postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// resultCheckerAdapter bridges store.TrackingResultRepository's
// correlation-id lookup to notify.ResultChecker's naming, so the
// notifier package does not need to import internal/store.
type resultCheckerAdapter struct {
	results store.TrackingResultRepository
}

func (a resultCheckerAdapter) HasTrackingResult(ctx context.Context, correlationID string) (bool, error) {
	return a.results.ExistsForCorrelation(ctx, correlationID)
}

// shardNotifier bridges batch.StateMachine's per-shard outcome callback
// to the transactional-email notifier, implementing §4.4a step 6 /
// §4.4b step 5's "emit shard-success email" requirement. Nightly shards
// never reach here: their JobBatchID is nil, so the recordShard helpers of
// provider A's worker and the provider-B callback handler skip
// StateMachine.RecordShard entirely.
type shardNotifier struct {
	notifier *notify.Notifier
}

func (s shardNotifier) NotifyShardOutcome(ctx context.Context, jb *models.JobBatch, batchNumber int, shardFailed bool) error {
	if jb.Email == nil {
		return nil
	}
	kind := notify.KindSucceeded
	if shardFailed {
		kind = notify.KindFailed
	}
	correlationID := fmt.Sprintf("%s-%d", jb.ID, batchNumber)
	return s.notifier.Send(ctx, kind, *jb.Email, correlationID, notify.Vars{
		"batch_number": strconv.Itoa(batchNumber),
		"status":       string(jb.Status),
	})
}

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("dev.env"); err != nil {
			log.Printf("Note: No .env or dev.env file loaded: %v", err)
		} else {
			log.Printf("Loaded dev.env file for local development")
		}
	} else {
		log.Printf("Loaded .env file")
	}

	cfg := config.Load()

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Port: %s", cfg.Port)
	log.Printf("Database Host: %s", cfg.Database.Host)
	log.Printf("Database Name: %s", cfg.Database.Name)

	if cfg.OpenAIAPIKey == "" {
		log.Printf("WARNING: OpenAI API key not loaded!")
	}
	if cfg.AnthropicAPIKey == "" {
		log.Printf("WARNING: Anthropic API key not loaded!")
	}

	ctx := context.Background()
	db, err := createDatabaseClient(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Printf("Successfully connected to database")

	projects := store.NewProjectStore(db)
	prompts := store.NewPromptStore(db)
	tags := store.NewTagStore(db)
	jobBatches := store.NewJobBatchStore(db)
	trackingResults := store.NewTrackingResultStore(db)
	submissions := store.NewSubmissionStore(db)
	userKeys := store.NewUserKeyStore(db)
	log.Printf("Repositories initialized")

	if cfg.Environment == "development" || cfg.Environment == "" {
		os.Unsetenv("INNGEST_SIGNING_KEY")
		cfg.Queue.SigningKey = ""
		log.Printf("Running in development mode - signing key verification disabled")
	}

	log.Println("Attempting to initialize Qdrant client...")
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Qdrant.Host,
		Port: cfg.Qdrant.Port,
	})
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	log.Println("Attempting to initialize Typesense client...")
	typesenseClient := typesense.NewClient(
		typesense.WithServer(fmt.Sprintf("http://%s:%d", cfg.Typesense.Host, cfg.Typesense.Port)),
		typesense.WithAPIKey(cfg.Typesense.APIKey),
	)

	if err := cache.EnsureCollections(ctx, typesenseClient, qdrantClient); err != nil {
		log.Printf("WARNING: citation hostname cache collections not ready: %v", err)
	} else {
		log.Printf("Citation hostname cache collections are ready")
	}
	hostnameCache := cache.New(typesenseClient, qdrantClient)

	costService := llm.NewCostService()

	providerAClient := providera.New(cfg.ProviderA.APIKey, cfg.ProviderA.BaseURL, cfg.ProviderA.DatasetID)
	providerBClient := providerb.New(cfg.ProviderB.APIKey, cfg.ProviderB.BaseURL)

	healthController := providerhealth.NewController(
		providerhealth.NewHTTPProber(cfg.ProviderA.BaseURL),
		providerhealth.NewHTTPProber(cfg.ProviderB.BaseURL),
	)
	go healthController.Run(ctx)
	log.Printf("Provider health controller started")

	inngestClient, err := inngestgo.NewClient(inngestgo.ClientOpts{
		AppID:    "prompt-pipeline",
		EventKey: inngestgo.StrPtr(cfg.Queue.EventKey),
		Env:      inngestgo.StrPtr(cfg.Environment),
	})
	if err != nil {
		log.Fatalf("Failed to create Inngest client: %v", err)
	}
	publisher := queue.NewPublisher(inngestClient)

	notifier := notify.New(notify.Config{
		APIKey:      cfg.Email.APIKey,
		FromAddress: cfg.Email.FromAddress,
		FromName:    "AI Visibility Pipeline",
		Templates: map[notify.Kind]string{
			notify.KindSubmitted: cfg.Email.TemplateSubmitted,
			notify.KindSucceeded: cfg.Email.TemplateSucceeded,
			notify.KindFailed:    cfg.Email.TemplateFailed,
		},
	}, resultCheckerAdapter{results: trackingResults})

	batchMachine := batch.New(jobBatches, shardNotifier{notifier: notifier})

	engine := enrichment.NewEngine(time.Now)

	callbackURL := strings.TrimRight(cfg.AppURL, "/") + "/api/dataforseo/callback"

	server := api.New(api.Deps{
		Logger:          logger,
		Projects:        projects,
		Tags:            tags,
		Prompts:         prompts,
		UserKeys:        userKeys,
		Submissions:     submissions,
		JobBatches:      jobBatches,
		TrackingResults: trackingResults,
		ValidateKey:     llm.ValidateKey,
		Providers:       healthController,
		Publisher:       publisher,
		Notifier:        notifier,
		Batches:         batchMachine,
		Engine:          engine,
		Cost:            costService,
		Hostnames:       hostnameCache,
		ProviderA:       providerAClient,
	})

	nightlyScheduler := scheduler.New(
		cfg.Scheduler,
		projects,
		prompts,
		userKeys,
		llm.ValidateKey,
		healthController,
		publisher,
	)
	if _, err := nightlyScheduler.Start(); err != nil {
		log.Fatalf("Failed to start nightly scheduler: %v", err)
	}
	log.Printf("Nightly scheduler started (cron: %s)", cfg.Scheduler.CronExpression)

	workerA := providera.NewWorker(providerAClient, trackingResults, batchMachine, engine, costService, hostnameCache)
	if _, err := workerA.RegisterFunction(inngestClient); err != nil {
		log.Fatalf("Failed to register provider A worker: %v", err)
	}

	workerB := providerb.NewWorker(providerBClient, trackingResults, notifier, callbackURL)
	if _, err := workerB.RegisterFunction(inngestClient); err != nil {
		log.Fatalf("Failed to register provider B worker: %v", err)
	}
	log.Printf("Dispatcher workers registered")

	h := inngestClient.Serve()
	mux := http.NewServeMux()
	mux.Handle("/api/inngest", h)

	server.Routes(mux)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"service":"prompt-pipeline","status":"running"}`))
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	port := cfg.Port
	log.Printf("Starting prompt pipeline service on port %s", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatal(err)
	}
}
