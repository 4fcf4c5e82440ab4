// Package memory provides a brute-force in-memory vector index. It is the
// default backend for single-instance deployments and tests; swap in the
// qdrant backend via configuration for anything larger.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/vectorindex"
)

// Index stores chunks grouped by source id and searches by inner product.
// Safe for concurrent use; ReplaceSource swaps a source's chunk set under one
// lock so readers never observe a partially-updated source.
type Index struct {
	mu        sync.RWMutex
	dimension int
	bySource  map[string][]domain.DocumentChunk
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("memory.New: invalid dimension")
	}
	return &Index{
		dimension: dimension,
		bySource:  make(map[string][]domain.DocumentChunk),
	}, nil
}

// Upsert implements vectorindex.Index.
func (x *Index) Upsert(ctx context.Context, chunks []domain.DocumentChunk) error {
	if err := x.validate(chunks); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, c := range chunks {
		x.bySource[c.SourceID] = append(x.bySource[c.SourceID], c)
	}
	return nil
}

// DeleteBySource implements vectorindex.Index. Unknown sources are a no-op.
func (x *Index) DeleteBySource(ctx context.Context, sourceID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.bySource, sourceID)
	return nil
}

// ReplaceSource implements vectorindex.Index.
func (x *Index) ReplaceSource(ctx context.Context, sourceID string, chunks []domain.DocumentChunk) error {
	if err := x.validate(chunks); err != nil {
		return err
	}
	for _, c := range chunks {
		if c.SourceID != sourceID {
			return errors.New("memory.ReplaceSource: chunk source mismatch")
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if len(chunks) == 0 {
		delete(x.bySource, sourceID)
		return nil
	}
	replacement := make([]domain.DocumentChunk, len(chunks))
	copy(replacement, chunks)
	x.bySource[sourceID] = replacement
	return nil
}

// Search implements vectorindex.Index.
func (x *Index) Search(ctx context.Context, vector []float32, userID string, k int) ([]vectorindex.Result, error) {
	if len(vector) != x.dimension {
		return nil, errors.New("memory.Search: vector dimension mismatch")
	}
	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var results []vectorindex.Result
	for _, chunks := range x.bySource {
		for _, c := range chunks {
			if c.UserID != userID {
				continue
			}
			results = append(results, vectorindex.Result{
				Chunk: c,
				Score: dot(c.Embedding, vector),
			})
		}
	}

	// Descending score, chunk id breaks ties so results are deterministic.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (x *Index) validate(chunks []domain.DocumentChunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != x.dimension {
			return errors.New("memory: chunk embedding dimension mismatch")
		}
		if c.UserID == "" || c.SourceID == "" {
			return errors.New("memory: chunk missing user or source id")
		}
	}
	return nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

var _ vectorindex.Index = (*Index)(nil)
