// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package wrench wires the configured stores, AI provider and services into
// one App that the command line and the HTTP server share.
package wrench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/wrench/ai"
	"github.com/poiesic/wrench/ai/openai"
	"github.com/poiesic/wrench/answer"
	"github.com/poiesic/wrench/config"
	"github.com/poiesic/wrench/embedding"
	"github.com/poiesic/wrench/ingestion"
	"github.com/poiesic/wrench/reindex"
	"github.com/poiesic/wrench/search"
	"github.com/poiesic/wrench/server"
	"github.com/poiesic/wrench/storage"
	"github.com/poiesic/wrench/storage/badger"
	"github.com/poiesic/wrench/storage/qdrant"
	"github.com/poiesic/wrench/watch"
)

// ErrReindexUnsupported is returned when the configured index cannot be scanned.
var ErrReindexUnsupported = errors.New("reindex requires the local badger index")

// App owns the long-lived clients. They are created once and shared by
// every request.
type App struct {
	cfg       *config.Config
	backend   *badger.Backend
	index     storage.VectorStore
	equipment storage.EquipmentRepository
	events    storage.EventLog
	provider  ai.AIProvider
	adapter   *embedding.Adapter
	metrics   *server.Metrics
	logger    *slog.Logger
}

// AppOption configures an App.
type AppOption func(*appOptions)

type appOptions struct {
	provider ai.AIProvider
	inMemory bool
	logger   *slog.Logger
}

// WithProvider uses the given AI provider instead of building one from config.
func WithProvider(provider ai.AIProvider) AppOption {
	return func(o *appOptions) {
		o.provider = provider
	}
}

// WithInMemoryStorage keeps badger data in memory. Useful for tests.
func WithInMemoryStorage() AppOption {
	return func(o *appOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) AppOption {
	return func(o *appOptions) {
		o.logger = logger
	}
}

// New opens storage and builds the AI clients described by cfg.
func New(ctx context.Context, cfg *config.Config, opts ...AppOption) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	options := &appOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{
		cfg:     cfg,
		metrics: server.NewMetrics("wrench"),
		logger:  options.logger,
	}

	var err error
	app.backend, err = badger.OpenBackend(cfg.Index.Path, options.inMemory,
		badger.WithBackendLogger(options.logger))
	if err != nil {
		return nil, err
	}

	equipment, err := badger.NewEquipmentRepository(app.backend)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.equipment = equipment

	events, err := badger.NewEventLog(app.backend)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.events = events

	switch cfg.Index.Type {
	case config.IndexQdrant:
		store, qerr := qdrant.New(ctx, cfg.Index.Qdrant.URL, cfg.Index.Qdrant.Collection, cfg.Index.Dimension,
			qdrant.WithAPIKey(cfg.Index.Qdrant.APIKey),
			qdrant.WithLogger(app.logger))
		if qerr != nil {
			app.Close()
			return nil, qerr
		}
		app.index = store
	default:
		index, ierr := badger.NewIndex(app.backend,
			badger.WithDimension(cfg.Index.Dimension),
			badger.WithIndexLogger(app.logger))
		if ierr != nil {
			app.Close()
			return nil, ierr
		}
		app.index = index
	}

	app.provider = options.provider
	if app.provider == nil {
		app.provider, err = openai.NewProvider(cfg.ProviderConfig(), openai.WithLogger(app.logger))
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	adapterOpts := []embedding.Option{embedding.WithLogger(app.logger)}
	if cfg.Ingest.Concurrency > 0 {
		adapterOpts = append(adapterOpts, embedding.WithPoolSize(cfg.Ingest.Concurrency))
	}
	app.adapter, err = embedding.NewAdapter(app.provider.Embedder(), cfg.Index.Dimension, adapterOpts...)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.logger.Info("app ready",
		"index", cfg.Index.Type,
		"dimension", cfg.Index.Dimension,
		"embeddingModel", cfg.AI.EmbeddingModel,
		"completionModel", cfg.AI.CompletionModel)
	return app, nil
}

// Close releases every resource the App opened. Safe to call on a
// partially constructed App.
func (a *App) Close() error {
	var errs []error
	if a.adapter != nil {
		a.adapter.Release()
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Error("error closing index", "err", err)
			errs = append(errs, err)
		}
	}
	if a.equipment != nil {
		if err := a.equipment.Close(); err != nil {
			a.logger.Error("error closing equipment repository", "err", err)
			errs = append(errs, err)
		}
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Error("error closing event log", "err", err)
			errs = append(errs, err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Index returns the vector store.
func (a *App) Index() storage.VectorStore {
	return a.index
}

// Equipment returns the equipment registry.
func (a *App) Equipment() storage.EquipmentRepository {
	return a.equipment
}

// Events returns the equipment event log.
func (a *App) Events() storage.EventLog {
	return a.events
}

// Embedder returns the dimension-reconciling embedding adapter.
func (a *App) Embedder() *embedding.Adapter {
	return a.adapter
}

// Metrics returns the Prometheus collectors shared by the services.
func (a *App) Metrics() *server.Metrics {
	return a.metrics
}

// NewPipeline creates an ingestion pipeline over the configured index.
func (a *App) NewPipeline() (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(a.adapter, a.index,
		ingestion.WithChunkWindow(a.cfg.Ingest.ChunkSize, a.cfg.Ingest.ChunkOverlap),
		ingestion.WithLogger(a.logger))
}

// NewEngine creates a question-answering engine with fail-open retrieval.
func (a *App) NewEngine() (*answer.Engine, error) {
	retriever, err := search.NewRetriever(a.adapter, a.index,
		search.WithTimeout(a.cfg.RetrievalTimeout()),
		search.WithMonitor(a.metrics),
		search.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	return answer.NewEngine(retriever, a.provider.Completer(),
		answer.WithEquipment(a.equipment),
		answer.WithLogger(a.logger))
}

// NewServer creates the HTTP server with metrics enabled.
func (a *App) NewServer() (*server.Server, error) {
	engine, err := a.NewEngine()
	if err != nil {
		return nil, err
	}
	pipeline, err := a.NewPipeline()
	if err != nil {
		return nil, err
	}
	return server.New(server.Dependencies{
		Engine:    engine,
		Ingester:  pipeline,
		Equipment: a.equipment,
		Events:    a.events,
	},
		server.WithLogger(a.logger),
		server.WithMetrics(a.metrics),
		server.WithMaxUploadBytes(a.cfg.MaxUploadBytes()),
		server.WithMaxUploadFiles(a.cfg.Server.MaxUploadFiles))
}

// NewWatcher creates a drop-folder watcher that ingests through the pipeline.
func (a *App) NewWatcher(opts ...watch.Option) (*watch.Watcher, error) {
	pipeline, err := a.NewPipeline()
	if err != nil {
		return nil, err
	}
	opts = append([]watch.Option{watch.WithLogger(a.logger)}, opts...)
	return watch.New(a.metrics.InstrumentIngester(pipeline), opts...)
}

// NewReindexer creates a reindexer for the local index. Qdrant collections
// are not scannable and return ErrReindexUnsupported.
func (a *App) NewReindexer(cfg *reindex.Config, progress io.Writer) (*reindex.Reindexer, error) {
	index, ok := a.index.(reindex.Index)
	if !ok {
		return nil, ErrReindexUnsupported
	}
	return reindex.NewReindexer(index, a.adapter, cfg, progress)
}
