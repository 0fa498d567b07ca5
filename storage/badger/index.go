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


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/storage"
)

// contextCheckInterval is how many records a scan visits between context checks.
const contextCheckInterval = 256

// Index implements storage.VectorStore over BadgerDB with an exact
// cosine-similarity scan. Suited to the corpus sizes of a single site's
// equipment manuals.
type Index struct {
	backend   *Backend
	dimension int
	logger    *slog.Logger
}

var (
	_ storage.VectorStore   = (*Index)(nil)
	_ storage.RecordScanner = (*Index)(nil)
)

// IndexOption configures an Index.
type IndexOption func(*Index) error

// WithDimension makes Upsert reject vectors of any other length.
// Default is 0, which accepts any length.
func WithDimension(d int) IndexOption {
	return func(i *Index) error {
		if d < 0 {
			return fmt.Errorf("dimension must be non-negative, got %d", d)
		}
		i.dimension = d
		return nil
	}
}

// WithIndexLogger sets a custom logger.
// Default is slog.Default().
func WithIndexLogger(logger *slog.Logger) IndexOption {
	return func(i *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
		return nil
	}
}

// NewIndex creates a vector index over the backend.
// The backend stays owned by the caller; Close on the index does not close it.
func NewIndex(backend *Backend, opts ...IndexOption) (*Index, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	idx := &Index{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}
	idx.logger = idx.logger.With("component", "badger-index")
	return idx, nil
}

// Close releases resources. Index has no resources of its own to release.
func (i *Index) Close() error {
	return nil
}

// Upsert validates and encodes every record before writing any of them, so
// a bad record leaves the index untouched. Large batches are split across
// transactions (see Backend.SetBatch); a storage failure partway through
// keeps the records already committed.
func (i *Index) Upsert(ctx context.Context, records ...*core.IndexRecord) error {
	if i.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if len(records) == 0 {
		return nil
	}

	keys := make([][]byte, len(records))
	values := make([][]byte, len(records))
	for n, record := range records {
		if record.ID == "" {
			return fmt.Errorf("%w: record id is empty", storage.ErrInvalidQuery)
		}
		if i.dimension > 0 && len(record.Vector) != i.dimension {
			return fmt.Errorf("%w: record %q has %d, index has %d",
				storage.ErrDimensionMismatch, record.ID, len(record.Vector), i.dimension)
		}
		keys[n] = makeIndexKey(record.ID)
		values[n] = storage.MarshalIndexRecord(record)
	}

	written, err := i.backend.SetBatch(ctx, keys, values)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		return fmt.Errorf("%w: wrote %d of %d records: %w",
			storage.ErrTransactionFailed, written, len(records), err)
	}

	i.logger.Debug("upserted records", "count", written)
	return nil
}

// Query scores every record against vector and returns the topK best.
// Ties keep key order.
func (i *Index) Query(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]*core.Match, error) {
	if i.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", storage.ErrInvalidQuery, topK)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	var equipmentID string
	if filter != nil {
		equipmentID = filter.EquipmentID
	}

	var matches []*core.Match
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(indexRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		visited := 0
		for iter.Rewind(); iter.Valid(); iter.Next() {
			visited++
			if visited%contextCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			var record *core.IndexRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalIndexRecord(val)
				return err
			})
			if err != nil {
				return err
			}

			if equipmentID != "" && record.Metadata.EquipmentID != equipmentID {
				continue
			}
			if len(record.Vector) == 0 {
				continue
			}

			matches = append(matches, &core.Match{
				ID:       record.ID,
				Score:    cosineSimilarity(vector, record.Vector),
				Metadata: record.Metadata,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(matches, func(a, b *core.Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	if matches == nil {
		matches = []*core.Match{}
	}
	return matches, nil
}

// CountRecords returns the number of stored index records.
func (i *Index) CountRecords(ctx context.Context) (int, error) {
	if i.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(indexRecordPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
			if count%contextCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		return nil
	}, false)
	return count, err
}

// ScanRecords returns up to limit records with IDs after the given one.
func (i *Index) ScanRecords(ctx context.Context, after string, limit int) ([]*core.IndexRecord, error) {
	if i.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []*core.IndexRecord
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(indexRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeIndexKey(after)); iter.Valid() && len(records) < limit; iter.Next() {
			item := iter.Item()
			if after != "" && indexIDFromKey(item.Key()) == after {
				continue
			}
			err := item.Value(func(val []byte) error {
				record, err := storage.UnmarshalIndexRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetRecord retrieves a single index record by ID.
// Returns storage.ErrNotFound if the record doesn't exist.
func (i *Index) GetRecord(ctx context.Context, id string) (*core.IndexRecord, error) {
	var record *core.IndexRecord
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeIndexKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			record, unmarshalErr = storage.UnmarshalIndexRecord(val)
			return unmarshalErr
		})
	}, false)
	return record, err
}
