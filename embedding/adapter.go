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


// Package embedding adapts a provider embedder to a vector index of fixed
// dimension and bounds how many provider calls run at once.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/wrench/ai"
)

// DefaultDimension matches the default index dimension.
const DefaultDimension = 1024

var (
	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidDimension is returned for a non-positive index dimension.
	ErrInvalidDimension = errors.New("index dimension must be positive")

	// ErrEmbeddingFailed wraps the first provider failure of a batch.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// Adapter produces vectors whose length always equals the index dimension.
// It is safe for concurrent use; all callers share one worker pool, so the
// pool size caps concurrent provider calls process-wide.
type Adapter struct {
	embedder  ai.Embedder
	dimension int
	pool      *ants.Pool
	logger    *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter) error

// WithPoolSize sets the maximum number of concurrent provider calls.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(a *Adapter) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if a.pool != nil {
			a.pool.Release()
		}
		a.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAdapter creates an adapter for an index of the given dimension.
func NewAdapter(embedder ai.Embedder, dimension int, opts ...Option) (*Adapter, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if dimension < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dimension)
	}

	pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		embedder:  embedder,
		dimension: dimension,
		pool:      pool,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(a); optErr != nil {
			a.Release()
			return nil, optErr
		}
	}
	a.logger = a.logger.With("component", "embedding-adapter")

	return a, nil
}

// Dimension returns the index dimension vectors are reconciled to.
func (a *Adapter) Dimension() int {
	return a.dimension
}

// Embed returns one reconciled vector per text, in input order. Each text is
// sent to the provider independently on the worker pool. The first failure
// cancels the calls still pending and is returned; no partial result is.
func (a *Adapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	a.logger.Debug("embedding batch", "count", len(texts))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i, text := range texts {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := a.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			v, err := a.embedder.EmbedText(ctx, text)
			if err != nil {
				fail(fmt.Errorf("%w: text %d: %w", ErrEmbeddingFailed, i, err))
				return
			}
			vectors[i] = Reconcile(v, a.dimension)
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("%w: %w", ErrEmbeddingFailed, submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		a.logger.Error("embedding batch failed", "count", len(texts), "err", firstErr)
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text on the caller's goroutine.
// Query latency is bounded by the caller, so it bypasses the ingest pool.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := a.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	return Reconcile(v, a.dimension), nil
}

// Release stops the worker pool. The adapter should not be used afterwards.
func (a *Adapter) Release() {
	if a.pool != nil {
		a.pool.Release()
	}
}

// Reconcile fits v to length d. A vector already of length d is returned
// as is; otherwise a new vector is returned, zero-padded or truncated.
func Reconcile(v []float32, d int) []float32 {
	if len(v) == d {
		return v
	}
	out := make([]float32, d)
	copy(out, v)
	return out
}
