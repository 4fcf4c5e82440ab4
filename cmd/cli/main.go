package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/answer"
	"github.com/dvloznov/finance-assistant/internal/assembler"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/conversation"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/embedding"
	"github.com/dvloznov/finance-assistant/internal/engine"
	"github.com/dvloznov/finance-assistant/internal/extractor"
	"github.com/dvloznov/finance-assistant/internal/gcsuploader"
	infraBQ "github.com/dvloznov/finance-assistant/internal/infra/bigquery"
	"github.com/dvloznov/finance-assistant/internal/indexer"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/planner"
	"github.com/dvloznov/finance-assistant/internal/vectorindex"
	memoryindex "github.com/dvloznov/finance-assistant/internal/vectorindex/memory"
	"github.com/dvloznov/finance-assistant/internal/vectorindex/qdrant"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ask":
		runAsk(log)
	case "add":
		runAdd(log)
	case "ingest":
		runIngest(log)
	case "upload":
		runUpload(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Assistant CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ask       Ask a question about your finances")
	fmt.Println("  add       Add a transaction to the ledger")
	fmt.Println("  ingest    Fetch, extract and index a document from GCS")
	fmt.Println("  upload    Upload a local file to GCS")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// buildEngine wires the full engine the same way the API server does. The
// CLI pays vector index warm-up on every invocation, which is acceptable for
// one-shot commands against a persistent store like Qdrant.
func buildEngine(ctx context.Context, configPath string, log zerolog.Logger) (*engine.Engine, *infraBQ.Repository, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
	if err != nil {
		return nil, nil, fmt.Errorf("creating repository: %w", err)
	}

	embedder, err := embedding.NewGeminiEmbedder(ctx, cfg.Embedder.Model, cfg.Embedder.Dimension)
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}

	var index vectorindex.Index
	if cfg.VectorStore.Type == "qdrant" {
		q := cfg.VectorStore.Qdrant
		index, err = qdrant.New(ctx, qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey(),
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}, embedder.Dimension())
	} else {
		index, err = memoryindex.New(embedder.Dimension())
	}
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("creating vector index: %w", err)
	}

	model, err := answer.NewGeminiModel(ctx, cfg.Answer.Model)
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("creating completion model: %w", err)
	}

	textExtractor, err := extractor.NewGeminiExtractor(ctx, cfg.Answer.Model)
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("creating text extractor: %w", err)
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

	return eng, repo, nil
}

func runAsk(log zerolog.Logger) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to config file")
	userID := fs.String("user", "", "User ID")
	question := fs.String("question", "", "Question to ask")
	fs.Parse(os.Args[2:])

	if *userID == "" || *question == "" {
		log.Fatal().Msg("Usage: cli ask -user ID -question TEXT")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, repo, err := buildEngine(ctx, *configPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build engine")
	}
	defer repo.Close()

	result, err := eng.Query(ctx, *userID, *userID, *question)
	if err != nil {
		log.Fatal().Err(err).Msg("Query failed")
	}

	fmt.Println(result.Answer)
	if len(result.EvidenceRefs) > 0 {
		fmt.Println("\nEvidence:")
		for _, ref := range result.EvidenceRefs {
			fmt.Printf("  %s\n", ref)
		}
	}
}

func runAdd(log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to config file")
	userID := fs.String("user", "", "User ID")
	amount := fs.String("amount", "", "Amount, e.g. 12.50 (negative for spending)")
	category := fs.String("category", "Other", "Category")
	description := fs.String("description", "", "Description")
	date := fs.String("date", "", "Date (YYYY-MM-DD, defaults to today)")
	fs.Parse(os.Args[2:])

	if *userID == "" || *amount == "" {
		log.Fatal().Msg("Usage: cli add -user ID -amount VALUE [-category C] [-description D] [-date YYYY-MM-DD]")
	}

	minor, err := domain.ParseAmount(*amount)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid amount")
	}

	occurredAt := time.Now()
	if *date != "" {
		occurredAt, err = time.Parse("2006-01-02", *date)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid date")
		}
	}

	cat := *category
	if canon, ok := domain.CanonicalCategory(cat); ok {
		cat = canon
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, repo, err := buildEngine(ctx, *configPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build engine")
	}
	defer repo.Close()

	t := &domain.Transaction{
		UserID:      *userID,
		AmountMinor: minor,
		Category:    cat,
		Description: *description,
		OccurredAt:  occurredAt,
		Source:      domain.SourceManual,
	}

	if err := eng.AddTransaction(ctx, t); err != nil {
		log.Fatal().Err(err).Msg("Failed to add transaction")
	}

	fmt.Printf("Added %s %s (%s) on %s [%s]\n",
		domain.FormatAmount(t.AmountMinor), t.Category, t.Description,
		t.OccurredAt.Format("2006-01-02"), t.ID)
}

func runIngest(log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to config file")
	userID := fs.String("user", "", "User ID")
	sourceID := fs.String("source-id", "", "Source ID for the document (defaults to object name)")
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the document")
	mimeType := fs.String("mime-type", "application/pdf", "Document MIME type")
	fs.Parse(os.Args[2:])

	if *userID == "" || *gcsURI == "" {
		log.Fatal().Msg("Usage: cli ingest -user ID -gcs-uri gs://bucket/object [-source-id ID]")
	}

	if *sourceID == "" {
		if _, object, err := gcsuploader.SplitGCSURI(*gcsURI); err == nil {
			*sourceID = filepath.Base(object)
		} else {
			log.Fatal().Err(err).Msg("Invalid GCS URI")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, repo, err := buildEngine(ctx, *configPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build engine")
	}
	defer repo.Close()

	log.Info().Str("gcs_uri", *gcsURI).Str("source_id", *sourceID).Msg("Starting ingestion")

	if err := eng.IngestDocument(ctx, *userID, *sourceID, *gcsURI, *mimeType); err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Println("Ingestion completed successfully.")
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", "", "GCS bucket name")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcsuploader.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}
