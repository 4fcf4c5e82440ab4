package vectorindex

import (
	"context"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Result is one nearest-neighbor match with its similarity score.
type Result struct {
	Chunk domain.DocumentChunk
	Score float64
}

// Index persists embedded chunks and supports user-scoped similarity search.
// The handle is constructed once at process start and injected into the
// indexer and the context assembler; there is no package-level instance.
//
// Search must never cross user boundaries: implementations filter by the
// requesting user id inside the store, not in the caller.
type Index interface {
	// Upsert inserts fully-embedded chunks. Chunks without an embedding are
	// rejected; a chunk never becomes retrievable before its vector exists.
	Upsert(ctx context.Context, chunks []domain.DocumentChunk) error

	// DeleteBySource removes every chunk derived from sourceID. Deleting an
	// unknown source is a no-op.
	DeleteBySource(ctx context.Context, sourceID string) error

	// ReplaceSource atomically swaps the chunk set of one source, so a
	// concurrent Search sees either the old set or the new set, never a mix.
	ReplaceSource(ctx context.Context, sourceID string, chunks []domain.DocumentChunk) error

	// Search returns the top-k chunks of userID by inner-product similarity,
	// descending. Vectors are L2-normalized upstream, so inner product and
	// cosine agree.
	Search(ctx context.Context, vector []float32, userID string, k int) ([]Result, error)
}
