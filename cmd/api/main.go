package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvloznov/finance-assistant/internal/answer"
	"github.com/dvloznov/finance-assistant/internal/api/handlers"
	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/assembler"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/conversation"
	"github.com/dvloznov/finance-assistant/internal/embedding"
	"github.com/dvloznov/finance-assistant/internal/engine"
	"github.com/dvloznov/finance-assistant/internal/extractor"
	infraBQ "github.com/dvloznov/finance-assistant/internal/infra/bigquery"
	"github.com/dvloznov/finance-assistant/internal/indexer"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/planner"
	"github.com/dvloznov/finance-assistant/internal/vectorindex"
	memoryindex "github.com/dvloznov/finance-assistant/internal/vectorindex/memory"
	"github.com/dvloznov/finance-assistant/internal/vectorindex/qdrant"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to config file")
	)
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	if cfg.Embedder.GeminiAPIKey() == "" {
		log.Warn().Str("env", cfg.Embedder.APIKeyEnv).Msg("Gemini API key not set - model calls will fail")
	}

	ctx := context.Background()

	repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create transaction repository")
	}
	defer repo.Close()

	embedder, err := embedding.NewGeminiEmbedder(ctx, cfg.Embedder.Model, cfg.Embedder.Dimension)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create embedder")
	}

	index, err := buildVectorIndex(ctx, cfg, embedder.Dimension())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vector index")
	}
	log.Info().Str("type", cfg.VectorStore.Type).Msg("Vector index ready")

	model, err := answer.NewGeminiModel(ctx, cfg.Answer.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create completion model")
	}

	textExtractor, err := extractor.NewGeminiExtractor(ctx, cfg.Answer.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create text extractor")
	}

	idx := indexer.New(embedder, index, log).
		WithChunking(cfg.Indexer.WindowTokens, cfg.Indexer.OverlapTokens)

	eng := engine.New(
		repo,
		planner.New(),
		assembler.New(repo, index, embedder, log),
		answer.New(model, log),
		conversation.NewStore(cfg.Conversation.MaxTurns),
		idx,
		textExtractor,
		model,
		engine.Config{
			TokenBudget:   cfg.Answer.TokenBudget,
			HistoryWindow: cfg.Answer.HistoryWindow,
		},
		log,
	)

	// Job infrastructure for asynchronous (re)indexing.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.BufferSize, cfg.Jobs.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.IndexSourceJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Str("source_id", job.SourceID).
			Str("kind", string(job.Kind)).
			Msg("Processing indexing job")

		var err error
		switch job.Kind {
		case jobs.SourceKindTransaction:
			err = eng.ReindexTransaction(ctx, job.UserID, job.SourceID)
		case jobs.SourceKindDocument:
			err = eng.IngestDocument(ctx, job.UserID, job.SourceID, job.GCSURI, job.MimeType)
		default:
			err = fmt.Errorf("unknown source kind %q", job.Kind)
		}
		if err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("Indexing job failed")
			return err
		}

		log.Info().Str("job_id", job.JobID).Msg("Indexing job completed")
		return nil
	}

	go func() {
		log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting indexing workers")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Indexing workers stopped with error")
		}
	}()

	queryHandler := handlers.NewQueryHandler(eng, log)
	transactionsHandler := handlers.NewTransactionsHandler(eng, repo, log)
	documentsHandler := handlers.NewDocumentsHandler(eng, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			queryHandler.Query(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.ListTransactions(w, r)
		case http.MethodPost:
			transactionsHandler.CreateTransaction(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			transactionID := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
			if transactionID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
				return
			}
			transactionsHandler.DeleteTransaction(w, r, transactionID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/documents/ingest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			documentsHandler.IngestDocument(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/index", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			documentsHandler.EnqueueIndex(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(cfg.Server.AllowOrigins)(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

func buildVectorIndex(ctx context.Context, cfg *config.Config, dimension int) (vectorindex.Index, error) {
	switch cfg.VectorStore.Type {
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		return qdrant.New(ctx, qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey(),
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}, dimension)
	default:
		return memoryindex.New(dimension)
	}
}
