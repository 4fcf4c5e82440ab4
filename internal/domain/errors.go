package domain

import (
	"errors"
)

// Error taxonomy shared across the engine. Wrap these with fmt.Errorf and %w
// so callers can classify failures with errors.Is.
var (
	// ErrResourceUnavailable marks transient failures of an external
	// collaborator (embedder, vector index, language model). The caller layer
	// retries at most once with backoff before surfacing a degraded answer.
	ErrResourceUnavailable = errors.New("resource temporarily unavailable")

	// ErrNotFound marks a missing source id. Deletion of a missing source is
	// an idempotent no-op, so most callers swallow this one.
	ErrNotFound = errors.New("not found")

	// ErrNoText means the text extractor could not produce any text for a
	// document; the document simply contributes nothing to the index.
	ErrNoText = errors.New("no text available")
)

// IsRetryable reports whether an error is worth one retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrResourceUnavailable)
}
