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


package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/wrench/chunk"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/storage"
)

// Record sources.
const (
	SourceAPI    = "api"
	SourceUpload = "upload"
	SourceWatch  = "watch"
	SourceCLI    = "cli"
)

// BatchEmbedder embeds texts in input order with vectors of index dimension.
// embedding.Adapter satisfies it.
type BatchEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline orchestrates chunking, embedding and upserting of documents.
type Pipeline struct {
	embedder BatchEmbedder
	store    storage.VectorStore
	chunker  *chunk.Chunker
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunkWindow sets the chunk size and overlap.
// Default is chunk.DefaultSize and chunk.DefaultOverlap.
func WithChunkWindow(size, overlap int) Option {
	return func(p *Pipeline) error {
		c, err := chunk.New(size, overlap)
		if err != nil {
			return err
		}
		p.chunker = c
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(embedder BatchEmbedder, store storage.VectorStore, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrVectorStoreRequired
	}

	chunker, err := chunk.New(chunk.DefaultSize, chunk.DefaultOverlap)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		embedder: embedder,
		store:    store,
		chunker:  chunker,
		logger:   slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// IngestOptions holds optional parameters for ingestion.
type IngestOptions struct {
	Source      string // Recorded in each record's metadata
	EquipmentID string // Applied to documents that carry no EquipmentID of their own
}

// Result reports what an Ingest call wrote.
type Result struct {
	Documents int // Documents accepted
	Records   int // Index records upserted, one per chunk
}

// Ingest indexes docs. Every document is validated before any provider call.
// Record IDs are "<doc id>#<chunk index>", so re-ingesting a document
// overwrites its earlier chunks.
func (p *Pipeline) Ingest(ctx context.Context, docs []*core.Document, opts *IngestOptions) (*Result, error) {
	if opts == nil {
		opts = &IngestOptions{}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents", core.ErrInvalidDocument)
	}

	var chunks []core.Chunk
	equipment := make(map[string]string, len(docs))
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return nil, err
		}
		docChunks, err := p.chunker.Chunk(doc)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, docChunks...)

		equipmentID := doc.EquipmentID
		if equipmentID == "" {
			equipmentID = opts.EquipmentID
		}
		equipment[doc.ID] = equipmentID
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		p.logger.Error("error embedding chunks", "documents", len(docs), "chunks", len(chunks), "err", err)
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbeddingFailed, len(chunks), len(vectors))
	}

	records := make([]*core.IndexRecord, len(chunks))
	for i, c := range chunks {
		records[i] = &core.IndexRecord{
			ID:     c.ID(),
			Vector: vectors[i],
			Metadata: core.Metadata{
				Text:        c.Text,
				Source:      opts.Source,
				EquipmentID: equipment[c.ParentID],
			},
		}
	}

	if err := p.store.Upsert(ctx, records...); err != nil {
		p.logger.Error("error upserting records", "records", len(records), "err", err)
		return nil, fmt.Errorf("%w: %w", ErrUpsertFailed, err)
	}

	p.logger.Info("ingested documents",
		"documents", len(docs),
		"records", len(records),
		"source", opts.Source)

	return &Result{Documents: len(docs), Records: len(records)}, nil
}
