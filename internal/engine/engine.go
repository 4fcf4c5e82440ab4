// Package engine wires the retrieval-augmented query pipeline together:
// plan, assemble, answer, remember. It also owns the indexing entry points
// the API and job layers trigger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/answer"
	"github.com/dvloznov/finance-assistant/internal/assembler"
	"github.com/dvloznov/finance-assistant/internal/conversation"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/extractor"
	"github.com/dvloznov/finance-assistant/internal/gcsuploader"
	"github.com/dvloznov/finance-assistant/internal/indexer"
	"github.com/dvloznov/finance-assistant/internal/planner"
)

// Store is the transaction ledger the engine reads and writes. The BigQuery
// repository implements it; tests swap in mocks.
type Store interface {
	assembler.TransactionReader
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	GetTransaction(ctx context.Context, userID, transactionID string) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
}

// QueryResult is what a caller gets back for one question. The engine always
// produces one; the worst cases are the fixed insufficient-data and degraded
// messages.
type QueryResult struct {
	Answer       string   `json:"answer"`
	EvidenceRefs []string `json:"evidence_refs"`
	Truncated    bool     `json:"truncated"`
	Degraded     bool     `json:"degraded,omitempty"`
}

// Engine holds one handle to every collaborator, injected at construction.
type Engine struct {
	store         Store
	planner       *planner.Planner
	assembler     *assembler.Assembler
	generator     *answer.Generator
	conversations *conversation.Store
	indexer       *indexer.Indexer
	extractor     extractor.TextExtractor
	model         answer.CompletionModel
	log           zerolog.Logger

	tokenBudget   int
	historyWindow int

	// fetch pulls document bytes for ingestion; overridable in tests.
	fetch func(ctx context.Context, gcsURI string) ([]byte, error)
}

// Config carries the engine's tunables.
type Config struct {
	TokenBudget   int
	HistoryWindow int
}

// New assembles the engine. Nil extractor disables document ingestion.
func New(
	store Store,
	plan *planner.Planner,
	asm *assembler.Assembler,
	gen *answer.Generator,
	conv *conversation.Store,
	idx *indexer.Indexer,
	ext extractor.TextExtractor,
	model answer.CompletionModel,
	cfg Config,
	log zerolog.Logger,
) *Engine {
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = assembler.DefaultTokenBudget
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = answer.DefaultHistoryWindow
	}
	return &Engine{
		store:         store,
		planner:       plan,
		assembler:     asm,
		generator:     gen,
		conversations: conv,
		indexer:       idx,
		extractor:     ext,
		model:         model,
		log:           log,
		tokenBudget:   cfg.TokenBudget,
		historyWindow: cfg.HistoryWindow,
		fetch:         gcsuploader.FetchFromGCS,
	}
}

// Query answers one free-text question for a user session. Natural-language
// expense statements are routed to the capture path instead of retrieval.
func (e *Engine) Query(ctx context.Context, userID, sessionID, question string) (*QueryResult, error) {
	history := e.conversations.Recent(sessionID, e.historyWindow)

	if isExpenseCommand(question) {
		text, err := e.captureExpense(ctx, userID, question)
		if err != nil {
			return nil, err
		}
		e.remember(userID, sessionID, question, nil, text, nil)
		return &QueryResult{Answer: text}, nil
	}

	subs := e.planner.Plan(question, history)

	evCtx, err := e.assembler.Assemble(ctx, subs, userID, e.tokenBudget)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Retrieval is down; the contract is a response object, not a fault.
		e.log.Error().Err(err).Str("user_id", userID).Msg("Context assembly failed")
		return &QueryResult{Answer: answer.DegradedMessage, Degraded: true}, nil
	}

	// The caller may cancel up to this point; after the model call is issued
	// cancellation is best-effort.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := e.generator.Answer(ctx, question, evCtx, history)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}

	e.remember(userID, sessionID, question, subs, result.Text, result.EvidenceRefs)

	return &QueryResult{
		Answer:       result.Text,
		EvidenceRefs: result.EvidenceRefs,
		Truncated:    evCtx.Truncated,
		Degraded:     result.Degraded,
	}, nil
}

// History exposes a session's recent turns to the API layer.
func (e *Engine) History(sessionID string, maxTurns int) []domain.ConversationTurn {
	return e.conversations.Recent(sessionID, maxTurns)
}

func (e *Engine) remember(userID, sessionID, question string, subs []domain.SubQuery, answerText string, refs []string) {
	now := time.Now().UTC()
	e.conversations.Append(sessionID, domain.ConversationTurn{
		UserID:     userID,
		Role:       domain.RoleUser,
		Content:    question,
		Timestamp:  now,
		SubQueries: subs,
	})
	e.conversations.Append(sessionID, domain.ConversationTurn{
		UserID:       userID,
		Role:         domain.RoleAssistant,
		Content:      answerText,
		Timestamp:    now.Add(time.Microsecond),
		EvidenceRefs: refs,
	})
}

// AddTransaction persists one transaction and indexes it synchronously, so a
// follow-up query sees it immediately.
func (e *Engine) AddTransaction(ctx context.Context, t *domain.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Source == "" {
		t.Source = domain.SourceManual
	}

	if err := e.store.InsertTransaction(ctx, t); err != nil {
		return fmt.Errorf("AddTransaction: %w", err)
	}
	if err := e.indexer.IndexTransaction(ctx, t); err != nil {
		return fmt.Errorf("AddTransaction: %w", err)
	}
	return nil
}

// DeleteTransaction removes a transaction and cascades to its derived chunk.
// A missing id is an idempotent no-op.
func (e *Engine) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	if err := e.store.DeleteTransaction(ctx, userID, transactionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return e.indexer.RemoveSource(ctx, transactionID)
}

// ReindexTransaction re-derives the chunk for an existing transaction, e.g.
// after an explicit edit. Reindex is a replace, not an append.
func (e *Engine) ReindexTransaction(ctx context.Context, userID, transactionID string) error {
	t, err := e.store.GetTransaction(ctx, userID, transactionID)
	if err != nil {
		return fmt.Errorf("ReindexTransaction: %w", err)
	}
	return e.indexer.IndexTransaction(ctx, t)
}

// IngestDocument fetches a document, extracts its text, and indexes the
// chunks under the document's source id. Extraction failure means the
// document just contributes nothing; its stale chunks are still cleared.
func (e *Engine) IngestDocument(ctx context.Context, userID, sourceID, gcsURI, mimeType string) error {
	if e.extractor == nil {
		return fmt.Errorf("IngestDocument: no text extractor configured")
	}

	data, err := e.fetch(ctx, gcsURI)
	if err != nil {
		return fmt.Errorf("IngestDocument: fetching %s: %w", gcsURI, err)
	}

	text, err := e.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		if errors.Is(err, domain.ErrNoText) {
			e.log.Warn().Str("source_id", sourceID).Msg("Document yielded no text, clearing index entries")
			return e.indexer.RemoveSource(ctx, sourceID)
		}
		return fmt.Errorf("IngestDocument: extracting %s: %w", sourceID, err)
	}

	return e.indexer.IndexDocumentText(ctx, sourceID, userID, text)
}

// RemoveDocument drops every chunk of a document from the index.
func (e *Engine) RemoveDocument(ctx context.Context, sourceID string) error {
	return e.indexer.RemoveSource(ctx, sourceID)
}
