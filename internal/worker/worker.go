// Package worker drains the ingest queue: one (venue, year) at a time it
// fetches papers from the matching source, stores them, and records a run.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cerebro/internal/metrics"
	"github.com/JakeFAU/cerebro/internal/paper"
)

// Config controls Worker behavior.
type Config struct {
	// Topic receives one event per finished run when a publisher is set.
	Topic string
	// RefreshAfter skips pairs with a successful run newer than this. Zero
	// always refetches.
	RefreshAfter time.Duration
}

// Worker consumes queue items and executes the ingest pipeline.
type Worker struct {
	queue     paper.Queue
	store     paper.Store
	source    paper.Source
	publisher paper.Publisher
	clock     paper.Clock
	ids       paper.IDGenerator
	cfg       Config
	logger    *zap.Logger
}

type lengther interface {
	Len() int
}

// New constructs a Worker. publisher may be nil.
func New(
	queue paper.Queue,
	store paper.Store,
	source paper.Source,
	publisher paper.Publisher,
	clock paper.Clock,
	ids paper.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		store:     store,
		source:    source,
		publisher: publisher,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger.Named("worker"),
	}
}

// Run blocks, consuming queue items until the context finishes or the
// queue is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, paper.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		if l, ok := w.queue.(lengther); ok {
			metrics.SetQueueDepth(l.Len())
		}
		w.Process(ctx, item)
	}
}

// Process ingests one item and returns the recorded run. Failures are
// logged and recorded, never returned.
func (w *Worker) Process(ctx context.Context, item paper.QueueItem) paper.Run {
	metrics.SetWorkerBusy(true)
	defer metrics.SetWorkerBusy(false)

	logger := w.logger.With(zap.String("venue", item.Venue), zap.Int("year", item.Year))
	run := paper.Run{
		ID:        w.newRunID(item),
		Venue:     item.Venue,
		Year:      item.Year,
		StartedAt: w.clock.Now(),
	}

	switch fresh, err := w.recentlyIngested(ctx, item, run.StartedAt); {
	case err != nil:
		logger.Warn("last run lookup failed; fetching anyway", zap.Error(err))
	case fresh:
		run.Status = paper.RunStatusSkipped
		w.finish(ctx, logger, run)
		return run
	}

	n, err := w.ingest(ctx, item)
	if err != nil {
		run.Status = paper.RunStatusFailed
		run.ErrorText = err.Error()
		logger.Error("ingest failed", zap.Error(err))
	} else {
		run.Status = paper.RunStatusSucceeded
		run.Papers = n
	}
	w.finish(ctx, logger, run)
	return run
}

func (w *Worker) ingest(ctx context.Context, item paper.QueueItem) (int, error) {
	papers, err := w.source.FetchPapers(ctx, item.Venue, item.Year)
	if err != nil {
		return 0, fmt.Errorf("fetch papers: %w", err)
	}
	n, err := w.store.UpsertPapers(ctx, papers)
	if err != nil {
		return 0, fmt.Errorf("store papers: %w", err)
	}
	return n, nil
}

func (w *Worker) recentlyIngested(ctx context.Context, item paper.QueueItem, now time.Time) (bool, error) {
	if w.cfg.RefreshAfter <= 0 {
		return false, nil
	}
	last, err := w.store.LastRun(ctx, item.Venue, item.Year)
	if errors.Is(err, paper.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("last run: %w", err)
	}
	return now.Sub(last.FinishedAt) < w.cfg.RefreshAfter, nil
}

func (w *Worker) finish(ctx context.Context, logger *zap.Logger, run paper.Run) {
	run.FinishedAt = w.clock.Now()
	if err := w.store.RecordRun(ctx, run); err != nil {
		logger.Error("record run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	metrics.ObserveIngestRun(run.Venue, string(run.Status), run.Papers)
	logger.Info("ingest run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("papers", run.Papers),
		zap.Duration("took", run.FinishedAt.Sub(run.StartedAt)),
	)
	w.publish(ctx, logger, run)
}

func (w *Worker) publish(ctx context.Context, logger *zap.Logger, run paper.Run) {
	if w.publisher == nil || w.cfg.Topic == "" {
		return
	}
	msgID, err := w.publisher.Publish(ctx, w.cfg.Topic, run)
	if err != nil {
		logger.Warn("publish run event failed", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	logger.Debug("published run event", zap.String("message_id", msgID))
}

func (w *Worker) newRunID(item paper.QueueItem) string {
	id, err := w.ids.NewID()
	if err != nil {
		w.logger.Warn("run id generation failed", zap.Error(err))
		return fmt.Sprintf("%s-%d-%d", item.Venue, item.Year, w.clock.Now().UnixNano())
	}
	return id
}
