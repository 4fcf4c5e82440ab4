package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/jobs"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPublishFillsDefaults(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	job := &jobs.IndexSourceJob{
		UserID:   "u1",
		SourceID: "s1",
		Kind:     jobs.SourceKindTransaction,
	}
	if err := q.PublishIndexSource(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	if job.JobID == "" {
		t.Error("job id not generated")
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("created at not set")
	}
	if job.MaxRetries != defaultMaxRetries {
		t.Errorf("max retries = %d", job.MaxRetries)
	}

	saved, err := store.GetJob(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("job not saved: %v", err)
	}
	if saved.SourceID != "s1" {
		t.Errorf("saved source = %q", saved.SourceID)
	}
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	var mu sync.Mutex
	var handled []string

	handler := func(ctx context.Context, job *jobs.IndexSourceJob) error {
		mu.Lock()
		handled = append(handled, job.SourceID)
		mu.Unlock()
		return nil
	}

	ctx := context.Background()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.IndexSourceJob{UserID: "u1", SourceID: "s1", Kind: jobs.SourceKindTransaction}
	if err := q.PublishIndexSource(ctx, job); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool {
		saved, err := store.GetJob(ctx, job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	})

	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 1 || handled[0] != "s1" {
		t.Errorf("handled = %v", handled)
	}
}

func TestQueueRetriesRetryableFailure(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var mu sync.Mutex
	attempts := 0

	handler := func(ctx context.Context, job *jobs.IndexSourceJob) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return fmt.Errorf("embedding: %w", domain.ErrResourceUnavailable)
		}
		return nil
	}

	ctx := context.Background()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.IndexSourceJob{UserID: "u1", SourceID: "s1", Kind: jobs.SourceKindDocument, GCSURI: "gs://b/o"}
	if err := q.PublishIndexSource(ctx, job); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 5*time.Second, func() bool {
		saved, err := store.GetJob(ctx, job.JobID)
		return err == nil && saved.Status == jobs.JobStatusCompleted
	})

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestQueueDoesNotRetryPermanentFailure(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	defer q.Close()

	var mu sync.Mutex
	attempts := 0

	handler := func(ctx context.Context, job *jobs.IndexSourceJob) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("malformed document")
	}

	ctx := context.Background()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.IndexSourceJob{UserID: "u1", SourceID: "s1", Kind: jobs.SourceKindDocument, GCSURI: "gs://b/o"}
	if err := q.PublishIndexSource(ctx, job); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool {
		saved, err := store.GetJob(ctx, job.JobID)
		return err == nil && saved.Status == jobs.JobStatusFailed
	})

	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}

	saved, _ := store.GetJob(ctx, job.JobID)
	if saved.Error == "" {
		t.Error("failure reason not recorded")
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	q := NewQueue(10, 1, NewStore())
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}

	job := &jobs.IndexSourceJob{UserID: "u1", SourceID: "s1", Kind: jobs.SourceKindTransaction}
	if err := q.PublishIndexSource(context.Background(), job); err == nil {
		t.Error("expected publish to a closed queue to fail")
	}
}

func TestStopWaitsForWorkers(t *testing.T) {
	q := NewQueue(10, 1, NewStore())

	started := make(chan struct{})
	release := make(chan struct{})
	handler := func(ctx context.Context, job *jobs.IndexSourceJob) error {
		close(started)
		<-release
		return nil
	}

	ctx := context.Background()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.IndexSourceJob{UserID: "u1", SourceID: "s1", Kind: jobs.SourceKindTransaction}
	if err := q.PublishIndexSource(ctx, job); err != nil {
		t.Fatal(err)
	}
	<-started

	stopCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := q.Stop(stopCtx); err == nil {
		t.Error("expected Stop to time out while a job is in flight")
	}

	close(release)
}
