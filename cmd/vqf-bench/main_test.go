package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"vqf.sievelabs.dev/internal/vqf"
)

func TestRunWorkerInsertsUntilFull(t *testing.T) {
	f := vqf.New(64)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	r := runWorker(ctx, f, 0, 5)

	if r.inserted == 0 {
		t.Fatal("expected at least one successful insert")
	}
	if r.refused == 0 {
		t.Error("expected the worker to eventually fill a 64-slot filter and see a refusal")
	}
	if uint64(r.inserted) != f.Len() {
		t.Errorf("filter reports %d elements but worker counted %d successful inserts", f.Len(), r.inserted)
	}
}

func TestRunWorkerQueriesAfterFull(t *testing.T) {
	f := vqf.New(64)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	r := runWorker(ctx, f, 1, 0)

	if r.queries == 0 {
		t.Fatal("expected the worker to spend remaining time querying once the filter filled")
	}
	if r.correctHits == 0 {
		t.Error("expected at least one query against a key the worker knows it inserted to hit")
	}
	if r.falsePos > r.queries {
		t.Errorf("false positive count %d exceeds total queries %d", r.falsePos, r.queries)
	}
}

func TestRunWorkerRespectsCanceledContext(t *testing.T) {
	f := vqf.New(1 << 16)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := runWorker(ctx, f, 2, 0)

	if r.inserted != 0 || r.queries != 0 {
		t.Errorf("expected no work against an already-canceled context, got inserted=%d queries=%d", r.inserted, r.queries)
	}
}

func TestRunWorkerDistinctWorkersDontCollide(t *testing.T) {
	// runWorker keeps inserting until a refusal or the deadline, so the
	// filter must be far larger than two workers can fill in 100ms.
	f := vqf.New(1 << 24)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Both workers share the filter and the deadline, running side by side
	// as vqf-bench runs them.
	var a, b result
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); a = runWorker(ctx, f, 10, 1) }()
	go func() { defer wg.Done(); b = runWorker(ctx, f, 11, 1) }()
	wg.Wait()

	if a.inserted == 0 || b.inserted == 0 {
		t.Fatal("expected both workers to insert at least one key")
	}
	if a.refused != 0 || b.refused != 0 {
		t.Errorf("a 1<<24-slot filter should not fill from two short worker runs: a.refused=%d b.refused=%d", a.refused, b.refused)
	}
}
