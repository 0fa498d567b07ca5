package reindex

import (
	"context"
	"fmt"

	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/storage"
)

// BatchEmbedder embeds texts in input order with vectors of index dimension.
// embedding.Adapter satisfies it.
type BatchEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// BatchProcessor replaces the vectors of a batch of records.
type BatchProcessor struct {
	store    storage.VectorStore
	embedder BatchEmbedder
}

func NewBatchProcessor(store storage.VectorStore, embedder BatchEmbedder) *BatchProcessor {
	return &BatchProcessor{
		store:    store,
		embedder: embedder,
	}
}

// Process embeds each record's text and upserts the records in one call.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Metadata.Text
	}

	vectors, err := bp.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(records), len(vectors))
	}

	updated := make([]*core.IndexRecord, len(records))
	for i, record := range records {
		updated[i] = &core.IndexRecord{
			ID:       record.ID,
			Vector:   vectors[i],
			Metadata: record.Metadata,
		}
	}

	if err := bp.store.Upsert(ctx, updated...); err != nil {
		return fmt.Errorf("failed to update records: %w", err)
	}
	return nil
}
