// Package indexer converts transactions and extracted document text into
// embedded chunks and keeps the vector index in sync with the ledger.
package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/embedding"
	"github.com/dvloznov/finance-assistant/internal/vectorindex"
)

// Indexer writes to a single injected vector index handle. Indexing is atomic
// per source: every chunk is embedded before anything is written, and the
// write replaces the source's prior chunk set, so re-indexing never
// accumulates duplicates and a failed run leaves the old state intact.
type Indexer struct {
	embedder embedding.Embedder
	index    vectorindex.Index
	log      zerolog.Logger

	windowTokens  int
	overlapTokens int
}

// New creates an indexer with the default chunking windows.
func New(embedder embedding.Embedder, index vectorindex.Index, log zerolog.Logger) *Indexer {
	return &Indexer{
		embedder:      embedder,
		index:         index,
		log:           log,
		windowTokens:  DefaultWindowTokens,
		overlapTokens: DefaultOverlapTokens,
	}
}

// WithChunking overrides the chunking windows. Zero or negative values keep
// the current setting.
func (ix *Indexer) WithChunking(windowTokens, overlapTokens int) *Indexer {
	if windowTokens > 0 {
		ix.windowTokens = windowTokens
	}
	if overlapTokens > 0 {
		ix.overlapTokens = overlapTokens
	}
	return ix
}

// IndexTransaction serializes one transaction into a descriptive sentence
// chunk so it is retrievable by semantic search even without exact filters.
// The transaction id is the chunk's source identity.
func (ix *Indexer) IndexTransaction(ctx context.Context, t *domain.Transaction) error {
	text := TransactionSentence(t)

	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("IndexTransaction: embedding %s: %w", t.ID, err)
	}

	chunk := domain.DocumentChunk{
		ID:        uuid.NewString(),
		UserID:    t.UserID,
		SourceID:  t.ID,
		Text:      text,
		Embedding: vec,
		Position:  0,
		CreatedAt: time.Now().UTC(),
	}

	if err := ix.index.ReplaceSource(ctx, t.ID, []domain.DocumentChunk{chunk}); err != nil {
		return fmt.Errorf("IndexTransaction: replacing source %s: %w", t.ID, err)
	}

	ix.log.Debug().Str("source_id", t.ID).Str("user_id", t.UserID).Msg("Transaction indexed")
	return nil
}

// IndexDocumentText chunks extracted document text, embeds every chunk, and
// replaces the source's chunk set in one step. Embedding failures abort
// before any write, so a source is either fully indexed or not indexed at
// all. Empty text clears the source from the index.
func (ix *Indexer) IndexDocumentText(ctx context.Context, sourceID, userID, text string) error {
	pieces := ChunkText(text, ix.windowTokens, ix.overlapTokens)
	if len(pieces) == 0 {
		return ix.RemoveSource(ctx, sourceID)
	}

	now := time.Now().UTC()
	chunks := make([]domain.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		vec, err := ix.embedder.Embed(ctx, piece)
		if err != nil {
			// Nothing has been written yet; the failed run is a clean no-op.
			return fmt.Errorf("IndexDocumentText: embedding chunk %d of %s: %w", i, sourceID, err)
		}
		chunks[i] = domain.DocumentChunk{
			ID:        uuid.NewString(),
			UserID:    userID,
			SourceID:  sourceID,
			Text:      piece,
			Embedding: vec,
			Position:  i,
			CreatedAt: now,
		}
	}

	if err := ix.index.ReplaceSource(ctx, sourceID, chunks); err != nil {
		return fmt.Errorf("IndexDocumentText: replacing source %s: %w", sourceID, err)
	}

	ix.log.Debug().Str("source_id", sourceID).Str("user_id", userID).Int("chunks", len(chunks)).Msg("Document indexed")
	return nil
}

// RemoveSource deletes every chunk derived from sourceID. Removing an unknown
// source is an idempotent no-op.
func (ix *Indexer) RemoveSource(ctx context.Context, sourceID string) error {
	if err := ix.index.DeleteBySource(ctx, sourceID); err != nil {
		return fmt.Errorf("RemoveSource: deleting %s: %w", sourceID, err)
	}
	return nil
}

// TransactionSentence renders a transaction as one retrievable sentence:
// "On {date}, spent {amount} on {category}: {description}."
func TransactionSentence(t *domain.Transaction) string {
	verb := "spent"
	amount := t.AmountMinor
	if amount < 0 {
		amount = -amount
	}
	if t.AmountMinor > 0 && strings.EqualFold(t.Category, "income") {
		verb = "received"
	}

	return fmt.Sprintf("On %s, %s %s on %s: %s.",
		t.OccurredAt.Format("2006-01-02"),
		verb,
		domain.FormatAmount(amount),
		t.Category,
		t.Description,
	)
}
