package reindex

import (
	"context"

	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/storage"
)

const (
	// DefaultBatchSize is the default number of records to fetch in each batch
	DefaultBatchSize = 64
)

// RecordIterator pages through a RecordScanner in ID order.
type RecordIterator struct {
	scanner   storage.RecordScanner
	batchSize int
}

func NewRecordIterator(scanner storage.RecordScanner, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		scanner:   scanner,
		batchSize: batchSize,
	}
}

// ForEach calls fn with consecutive batches until the scan is exhausted,
// fn fails, or ctx is cancelled. Each batch is fetched with a fresh read,
// so fn may write back the records it receives.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.IndexRecord) error) error {
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := it.scanner.ScanRecords(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}
		after = batch[len(batch)-1].ID
	}
}
