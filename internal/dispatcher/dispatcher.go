// Package dispatcher owns the ingest queue and the single worker draining it.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/cerebro/internal/paper"
	"github.com/JakeFAU/cerebro/internal/venue"
)

// Runner is the worker loop driven by the dispatcher.
type Runner interface {
	Run(ctx context.Context)
}

// Dispatcher feeds queue work to one worker.
type Dispatcher struct {
	queue  paper.Queue
	worker Runner
}

// New creates a Dispatcher.
func New(queue paper.Queue, worker Runner) *Dispatcher {
	return &Dispatcher{
		queue:  queue,
		worker: worker,
	}
}

// Run starts the worker and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	if d.worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker.Run(ctx)
		}()
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item paper.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Seed enqueues every pair in order and reports how many were queued
// before the first failure.
func (d *Dispatcher) Seed(ctx context.Context, pairs []venue.Pair) (int, error) {
	for i, p := range pairs {
		if err := d.Enqueue(ctx, paper.QueueItem{Venue: p.Venue, Year: p.Year}); err != nil {
			return i, fmt.Errorf("seed %s-%d: %w", p.Venue, p.Year, err)
		}
	}
	return len(pairs), nil
}
