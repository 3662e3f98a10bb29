package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTokenBucket_TryTake_RespectsCapacity(t *testing.T) {
	b := NewTokenBucket(2, 1)

	ok, _ := b.TryTake(1)
	if !ok {
		t.Fatal("expected first take to succeed")
	}
	ok, _ = b.TryTake(1)
	if !ok {
		t.Fatal("expected second take to succeed")
	}
	ok, wait := b.TryTake(1)
	if ok {
		t.Fatal("expected third take to fail, bucket should be empty")
	}
	if wait <= 0 {
		t.Fatal("expected a positive wait duration when bucket is empty")
	}
}

func TestTokenBucket_RefillsOverTime(t *testing.T) {
	b := NewTokenBucket(1, 100) // fast refill for the test
	ok, _ := b.TryTake(1)
	if !ok {
		t.Fatal("expected initial take to succeed")
	}
	time.Sleep(20 * time.Millisecond)
	ok, _ = b.TryTake(1)
	if !ok {
		t.Fatal("expected bucket to have refilled after waiting")
	}
}

func TestDispatcher_MixedPriorityJobsAllComplete(t *testing.T) {
	d := New(Config{GlobalCapacity: 1, GlobalRefillPerSec: 1000, BurstSize: 1, QueueDepth: 10})
	defer d.Shutdown()

	var mu sync.Mutex
	var order []string

	var wg sync.WaitGroup
	wg.Add(2)

	gate := make(chan struct{})
	go func() {
		<-gate
		_ = d.Submit(context.Background(), &Job{
			ID:       "low",
			Priority: PriorityLow,
			Run: func(ctx context.Context) error {
				mu.Lock()
				order = append(order, "low")
				mu.Unlock()
				wg.Done()
				return nil
			},
		})
	}()
	go func() {
		<-gate
		_ = d.Submit(context.Background(), &Job{
			ID:       "foundation",
			Priority: PriorityFoundation,
			Run: func(ctx context.Context) error {
				mu.Lock()
				order = append(order, "foundation")
				mu.Unlock()
				wg.Done()
				return nil
			},
		})
	}()

	// Give both goroutines a moment to block on the gate before releasing
	// them so they race to enqueue, not to execute.
	time.Sleep(5 * time.Millisecond)
	close(gate)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 {
		t.Fatalf("expected 2 completed jobs, got %d", len(order))
	}
}

func TestDispatcher_SubmitReturnsJobError(t *testing.T) {
	d := New(Config{GlobalCapacity: 5, GlobalRefillPerSec: 50, BurstSize: 2})
	defer d.Shutdown()

	err := d.Submit(context.Background(), &Job{
		ID:       "failing",
		Priority: PriorityRecords,
		Run: func(ctx context.Context) error {
			return context.DeadlineExceeded
		},
	})
	if err != context.DeadlineExceeded {
		t.Fatalf("expected job error to propagate, got %v", err)
	}
}
