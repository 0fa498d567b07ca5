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


package reindex

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/storage"
)

// Config holds configuration for the reindex operation.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: DefaultBatchSize,
	}
}

// Index is a store that can be both scanned and written.
// *badger.Index satisfies it.
type Index interface {
	storage.VectorStore
	storage.RecordScanner
}

// Reindexer orchestrates re-embedding of every record in an index.
type Reindexer struct {
	index     Index
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *RecordIterator
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(index Index, embedder BatchEmbedder, config *Config, progress io.Writer) (*Reindexer, error) {
	if index == nil {
		return nil, ErrScannerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		index:     index,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(index, embedder),
		iterator:  NewRecordIterator(index, config.BatchSize),
	}, nil
}

// Run re-embeds all records and returns how many were processed.
func (r *Reindexer) Run(ctx context.Context) (int, error) {
	total, err := r.index.CountRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No records found in index (0 records)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d records (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(records []*core.IndexRecord) error {
		if err := r.processor.Process(ctx, records); err != nil {
			return fmt.Errorf("failed to process batch after %d records: %w", processed, err)
		}
		processed += len(records)
		tracker.Increment(len(records))
		return nil
	})
	if err != nil {
		fmt.Fprintln(r.progress)
		return processed, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d records in %v\n",
		processed, elapsed.Round(time.Millisecond))

	return processed, nil
}
