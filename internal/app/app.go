// Package app builds the long-lived services from configuration and runs
// them: the store, the fetch chain, the source registry, the ingest worker
// and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cerebro/internal/api"
	"github.com/JakeFAU/cerebro/internal/archive"
	"github.com/JakeFAU/cerebro/internal/clock"
	"github.com/JakeFAU/cerebro/internal/config"
	"github.com/JakeFAU/cerebro/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/cerebro/internal/fetcher/colly"
	"github.com/JakeFAU/cerebro/internal/id/uuid"
	"github.com/JakeFAU/cerebro/internal/paper"
	"github.com/JakeFAU/cerebro/internal/policy/ratelimit"
	pubmemory "github.com/JakeFAU/cerebro/internal/publisher/memory"
	"github.com/JakeFAU/cerebro/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/cerebro/internal/queue/memory"
	"github.com/JakeFAU/cerebro/internal/search"
	"github.com/JakeFAU/cerebro/internal/source"
	"github.com/JakeFAU/cerebro/internal/source/acl"
	"github.com/JakeFAU/cerebro/internal/source/arxiv"
	"github.com/JakeFAU/cerebro/internal/source/mlconf"
	"github.com/JakeFAU/cerebro/internal/storage/gcs"
	"github.com/JakeFAU/cerebro/internal/storage/local"
	"github.com/JakeFAU/cerebro/internal/storage/memory"
	"github.com/JakeFAU/cerebro/internal/storage/postgres"
	"github.com/JakeFAU/cerebro/internal/storage/sqlite"
	"github.com/JakeFAU/cerebro/internal/venue"
	"github.com/JakeFAU/cerebro/internal/worker"
)

const shutdownTimeout = 10 * time.Second

type closer struct {
	name string
	fn   func() error
}

// App holds the shared, long-lived services. It is built once at startup.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	store      paper.Store
	queue      *queuememory.Queue
	worker     *worker.Worker
	dispatcher *dispatcher.Dispatcher
	server     *api.Server
	closers    []closer
}

// New initializes every service selected by cfg and fails fast when one
// cannot be built. Already-opened resources are released on failure.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.store = store

	fetcher, err := a.buildFetcher(ctx)
	if err != nil {
		return err
	}

	aclSource, err := acl.New(fetcher, cfg.Sources.ACLBaseURL)
	if err != nil {
		return fmt.Errorf("init acl source: %w", err)
	}
	arxivClient := arxiv.New(fetcher, cfg.Sources.ArXivBaseURL, cfg.Sources.ArXivCategories, cfg.Sources.ArXivMaxResults)
	registry := source.NewRegistry()
	registry.Register(venue.GroupACL, aclSource)
	registry.Register(venue.GroupML, mlconf.New(fetcher, cfg.Sources.MLBaseURLs))
	registry.Register(venue.GroupArXiv, arxivClient)

	publisher, err := a.openPublisher(ctx)
	if err != nil {
		return err
	}

	a.queue = queuememory.NewQueue()
	a.worker = worker.New(
		a.queue,
		store,
		registry,
		publisher,
		clock.System{},
		uuid.New(),
		worker.Config{Topic: cfg.Notify.Topic, RefreshAfter: cfg.RefreshAfter()},
		a.logger,
	)
	a.dispatcher = dispatcher.New(a.queue, a.worker)
	a.server = api.NewServer(api.Deps{
		Search: search.NewService(store, cfg.UI.PapersPerPage),
		Store:  store,
		Queue:  a.dispatcher,
		ArXiv:  arxivClient,
	}, cfg, a.logger)

	a.logger.Info("application services initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("archive", cfg.Archive.Driver),
		zap.String("notify", cfg.Notify.Driver),
	)
	return nil
}

func (a *App) openStore(ctx context.Context) (paper.Store, error) {
	switch a.cfg.Store.Driver {
	case "sqlite":
		s, err := sqlite.Open(ctx, sqlite.Config{
			Path:          a.cfg.Store.SQLite.Path,
			BusyTimeoutMs: a.cfg.Store.SQLite.BusyTimeoutMs,
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.addCloser("sqlite store", s.Close)
		a.logger.Info("using sqlite store", zap.String("path", a.cfg.Store.SQLite.Path))
		return s, nil
	case "postgres":
		s, err := postgres.NewPaperStore(ctx, postgres.Config{
			DSN:      a.cfg.Store.Postgres.DSN,
			MaxConns: a.cfg.Store.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		a.addCloser("postgres store", s.Close)
		a.logger.Info("using postgres store")
		return s, nil
	case "memory":
		a.logger.Info("using in-memory store; papers are lost on exit")
		return memory.NewPaperStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", a.cfg.Store.Driver)
	}
}

func (a *App) buildFetcher(ctx context.Context) (paper.Fetcher, error) {
	limiter := ratelimit.New(ratelimit.Config{RPS: a.cfg.HTTP.PerHostRPS, Burst: 1})
	var fetcher paper.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.HTTP.UserAgent,
		RespectRobots: a.cfg.HTTP.RespectRobots,
		Timeout:       a.cfg.FetchTimeout(),
		MaxBodySize:   a.cfg.HTTP.MaxBodyBytes,
	}, limiter)

	var blobs paper.BlobStore
	switch a.cfg.Archive.Driver {
	case "", "none":
		return fetcher, nil
	case "memory":
		blobs = memory.NewBlobStore()
	case "local":
		s, err := local.New(local.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		blobs = s
	case "gcs":
		s, err := gcs.Open(ctx, gcs.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		a.addCloser("gcs archive", s.Close)
		blobs = s
	default:
		return nil, fmt.Errorf("unknown archive driver: %s", a.cfg.Archive.Driver)
	}
	a.logger.Info("archiving raw payloads", zap.String("driver", a.cfg.Archive.Driver))
	return archive.New(fetcher, blobs, clock.System{}, a.cfg.Archive.Prefix, a.logger), nil
}

func (a *App) openPublisher(ctx context.Context) (paper.Publisher, error) {
	switch a.cfg.Notify.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return pubmemory.New(), nil
	case "pubsub":
		p, err := pubsub.Open(ctx, a.cfg.Notify.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.addCloser("pubsub publisher", p.Close)
		a.logger.Info("publishing ingest events", zap.String("topic", a.cfg.Notify.Topic))
		return p, nil
	default:
		return nil, fmt.Errorf("unknown notify driver: %s", a.cfg.Notify.Driver)
	}
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the configured paper store.
func (a *App) Store() paper.Store {
	return a.store
}

// Ingest runs one (venue, year) synchronously, bypassing the queue.
func (a *App) Ingest(ctx context.Context, item paper.QueueItem) paper.Run {
	return a.worker.Process(ctx, item)
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// SeedPairs expands the configured venues across the configured years.
// An empty venue list means every known venue.
func (a *App) SeedPairs() ([]venue.Pair, error) {
	names := venue.All()
	if len(a.cfg.Ingest.Venues) > 0 {
		names = make([]string, 0, len(a.cfg.Ingest.Venues))
		for _, v := range a.cfg.Ingest.Venues {
			name, ok := venue.Canonical(v)
			if !ok {
				return nil, fmt.Errorf("%w: %s", venue.ErrUnknownVenue, v)
			}
			names = append(names, name)
		}
	}
	return venue.Pairs(names, a.cfg.Ingest.YearFrom, a.cfg.Ingest.YearTo), nil
}

// Seed queues every configured (venue, year) pair.
func (a *App) Seed(ctx context.Context) (int, error) {
	pairs, err := a.SeedPairs()
	if err != nil {
		return 0, err
	}
	n, err := a.dispatcher.Seed(ctx, pairs)
	if err != nil {
		return n, fmt.Errorf("seed queue: %w", err)
	}
	a.logger.Info("seeded ingest queue", zap.Int("pairs", n))
	return n, nil
}

// Run listens on the configured port and serves until ctx ends.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve starts the worker, seeds the queue when configured, and serves HTTP
// on ln until ctx ends or the server fails. The queue is closed on return.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.logger.Info("dispatcher started")
		a.dispatcher.Run(ctx)
	}()

	if a.cfg.Ingest.SeedOnStart {
		if _, err := a.Seed(ctx); err != nil {
			a.logger.Error("seeding failed", zap.Error(err))
		}
	}

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.queue.Close()
	cancel()
	wg.Wait()
	a.logger.Info("shutdown complete")
	return runErr
}

// Close releases every opened resource in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("close failed", zap.String("resource", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
