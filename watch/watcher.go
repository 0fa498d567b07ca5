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


// Package watch ingests documents dropped into a directory.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/extract"
	"github.com/poiesic/wrench/ingestion"
)

// DefaultSettle is how long a file must go without writes before it is ingested.
const DefaultSettle = 500 * time.Millisecond

// ErrIngesterRequired is returned when no ingester is provided.
var ErrIngesterRequired = errors.New("ingester required")

// Ingester indexes documents. ingestion.Pipeline satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, docs []*core.Document, opts *ingestion.IngestOptions) (*ingestion.Result, error)
}

// Watcher ingests supported files created or modified in a directory.
type Watcher struct {
	ingester    Ingester
	settle      time.Duration
	equipmentID string
	logger      *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets the quiet period between the last write and ingestion.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithEquipmentID tags every watched document with an equipment id.
func WithEquipmentID(id string) Option {
	return func(w *Watcher) {
		w.equipmentID = id
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a Watcher.
func New(ingester Ingester, opts ...Option) (*Watcher, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	w := &Watcher{
		ingester: ingester,
		settle:   DefaultSettle,
		logger:   slog.Default(),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "watch")
	return w, nil
}

// Run watches dir until ctx is done. Ingestion failures are logged and do
// not stop the watch.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return err
	}
	w.logger.Info("watching directory", "dir", dir)

	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !extract.SupportedExtension(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}
	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == timer {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
	w.pending[path] = timer
}

// stop cancels pending timers and waits for running ingests.
func (w *Watcher) stop() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	doc, err := ingestion.ReadDocument(path, w.equipmentID)
	if err != nil {
		w.logger.Warn("skipping file", "path", filepath.Base(path), "err", err)
		return
	}
	res, err := w.ingester.Ingest(ctx, []*core.Document{doc}, &ingestion.IngestOptions{
		Source:      ingestion.SourceWatch,
		EquipmentID: w.equipmentID,
	})
	if err != nil {
		w.logger.Error("error ingesting file", "path", path, "err", err)
		return
	}
	w.logger.Info("ingested file", "path", path, "id", doc.ID, "records", res.Records)
}
