// Package qdrant is a minimal REST client for a Qdrant collection. It assumes
// cosine distance over normalized vectors and creates the collection if
// missing. Chunk metadata travels in the point payload; every search carries a
// mandatory user_id payload filter.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/vectorindex"
)

// Config holds connection details for the Qdrant backend.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Index talks to one Qdrant collection over HTTP.
type Index struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

// New creates the client and ensures the collection exists with the expected
// vector size.
func New(ctx context.Context, cfg Config, dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("qdrant.New: invalid dimension")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	x := &Index{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  dimension,
		client:     &http.Client{Timeout: timeout},
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 for an existing collection with the same schema.
	if err := x.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", x.url, x.collection), body, nil); err != nil {
		return nil, fmt.Errorf("qdrant.New: create collection: %w", err)
	}
	return x, nil
}

// Upsert implements vectorindex.Index.
func (x *Index) Upsert(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) != x.dimension {
			return errors.New("qdrant.Upsert: chunk embedding dimension mismatch")
		}
		points[i] = map[string]any{
			"id":     c.ID,
			"vector": c.Embedding,
			"payload": map[string]any{
				"user_id":    c.UserID,
				"source_id":  c.SourceID,
				"position":   c.Position,
				"text":       c.Text,
				"created_at": c.CreatedAt.Format(time.RFC3339Nano),
			},
		}
	}
	body := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", x.url, x.collection)
	if err := x.do(ctx, http.MethodPut, url, body, nil); err != nil {
		return fmt.Errorf("qdrant.Upsert: %w: %v", domain.ErrResourceUnavailable, err)
	}
	return nil
}

// DeleteBySource implements vectorindex.Index.
func (x *Index) DeleteBySource(ctx context.Context, sourceID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "source_id", "match": map[string]any{"value": sourceID}},
			},
		},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", x.url, x.collection)
	if err := x.do(ctx, http.MethodPost, url, body, nil); err != nil {
		return fmt.Errorf("qdrant.DeleteBySource: %w: %v", domain.ErrResourceUnavailable, err)
	}
	return nil
}

// ReplaceSource implements vectorindex.Index. Qdrant has no multi-point
// transaction, so replace is delete-then-upsert with wait=true on both calls;
// the non-atomic window is bounded by the two requests.
func (x *Index) ReplaceSource(ctx context.Context, sourceID string, chunks []domain.DocumentChunk) error {
	if err := x.DeleteBySource(ctx, sourceID); err != nil {
		return err
	}
	return x.Upsert(ctx, chunks)
}

// Search implements vectorindex.Index.
func (x *Index) Search(ctx context.Context, vector []float32, userID string, k int) ([]vectorindex.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "user_id", "match": map[string]any{"value": userID}},
			},
		},
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", x.url, x.collection)
	if err := x.do(ctx, http.MethodPost, url, req, &resp); err != nil {
		return nil, fmt.Errorf("qdrant.Search: %w: %v", domain.ErrResourceUnavailable, err)
	}

	results := make([]vectorindex.Result, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := domain.DocumentChunk{
			ID: fmt.Sprintf("%v", r.ID),
		}
		if v, ok := r.Payload["user_id"].(string); ok {
			chunk.UserID = v
		}
		if v, ok := r.Payload["source_id"].(string); ok {
			chunk.SourceID = v
		}
		if v, ok := r.Payload["position"].(float64); ok {
			chunk.Position = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		if v, ok := r.Payload["created_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
				chunk.CreatedAt = ts
			}
		}
		results = append(results, vectorindex.Result{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

func (x *Index) do(ctx context.Context, method, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ vectorindex.Index = (*Index)(nil)
