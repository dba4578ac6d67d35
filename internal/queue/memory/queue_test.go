package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/cerebro/internal/paper"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	result := make(chan paper.QueueItem, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	if err := q.Enqueue(context.Background(), paper.QueueItem{Venue: "ACL", Year: 2023}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.Venue != "ACL" || got.Year != 2023 {
			t.Fatalf("expected ACL 2023, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return item")
	}
}

func TestQueueIsUnboundedFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := context.Background()
	for year := 2000; year < 2100; year++ {
		if err := q.Enqueue(ctx, paper.QueueItem{Venue: "ICML", Year: year}); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", year, err)
		}
	}
	if q.Len() != 100 {
		t.Fatalf("expected 100 queued items, got %d", q.Len())
	}
	for year := 2000; year < 2100; year++ {
		item, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if item.Year != year {
			t.Fatalf("expected year %d, got %d", year, item.Year)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}
	if err := q.Enqueue(ctx, paper.QueueItem{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueCloseDrainsThenFails(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := context.Background()
	if err := q.Enqueue(ctx, paper.QueueItem{Venue: "ACL", Year: 2020}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	q.Close()
	if err := q.Enqueue(ctx, paper.QueueItem{Venue: "ACL", Year: 2021}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on enqueue after close, got %v", err)
	}
	if item, err := q.Dequeue(ctx); err != nil || item.Year != 2020 {
		t.Fatalf("expected queued item before close error, got %+v %v", item, err)
	}
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected queue closed error, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
}

func TestQueueCloseWakesWaiter(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("close did not wake dequeuer")
	}
}
