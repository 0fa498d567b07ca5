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


package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/storage"
)

// DefaultTimeout bounds embed plus store query for a single retrieval.
const DefaultTimeout = 1200 * time.Millisecond

// QueryEmbedder turns a question into an index-dimension vector.
// embedding.Adapter satisfies it.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever fetches raw context strings for a question.
type Retriever struct {
	embedder QueryEmbedder
	store    storage.VectorStore
	timeout  time.Duration
	monitor  Monitor
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithTimeout sets the retrieval deadline.
// Default is DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Retriever) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		r.timeout = timeout
		return nil
	}
}

// WithMonitor sets a monitor notified of every retrieval outcome.
func WithMonitor(monitor Monitor) Option {
	return func(r *Retriever) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		r.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(embedder QueryEmbedder, store storage.VectorStore, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrVectorStoreRequired
	}

	r := &Retriever{
		embedder: embedder,
		store:    store,
		timeout:  DefaultTimeout,
		monitor:  &noopMonitor{},
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retriever")

	return r, nil
}

// Retrieve returns at most topK context strings in store order.
// It never fails: on timeout or any embedding or store error it returns an
// empty slice. A non-empty equipmentID restricts the store query to records
// tagged with it.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, equipmentID string) []string {
	if topK < 1 {
		return []string{}
	}
	start := time.Now()

	matches, err := FirstOf(ctx, r.timeout, func(ctx context.Context) ([]*core.Match, error) {
		vector, err := r.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		var filter *core.Filter
		if equipmentID != "" {
			filter = &core.Filter{EquipmentID: equipmentID}
		}
		matches, err := r.store.Query(ctx, vector, topK, filter)
		if err != nil {
			return nil, fmt.Errorf("query store: %w", err)
		}
		return matches, nil
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, ErrTimeout) {
			r.logger.Warn("retrieval timed out, continuing without contexts", "timeout", r.timeout)
			r.monitor.RetrievalTimeout(elapsed)
		} else {
			r.logger.Warn("retrieval failed, continuing without contexts", "err", err)
			r.monitor.RetrievalError(err, elapsed)
		}
		return []string{}
	}

	contexts := make([]string, 0, min(len(matches), topK))
	for _, m := range matches {
		if len(contexts) == topK {
			break
		}
		if m == nil || m.Metadata.Text == "" {
			continue
		}
		contexts = append(contexts, m.Metadata.Text)
	}

	r.logger.Debug("retrieved contexts", "count", len(contexts), "elapsed", elapsed)
	r.monitor.RetrievalHit(len(contexts), elapsed)
	return contexts
}
