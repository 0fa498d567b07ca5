package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/wrench/ai/mock"
	"github.com/poiesic/wrench/chunk"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/embedding"
	"github.com/poiesic/wrench/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore rejects every upsert.
type failingStore struct {
	err error
}

func (f *failingStore) Upsert(ctx context.Context, records ...*core.IndexRecord) error {
	return f.err
}

func (f *failingStore) Query(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]*core.Match, error) {
	return nil, nil
}

func (f *failingStore) Close() error { return nil }

func newTestPipeline(t *testing.T, embedder *mock.MockEmbedder, opts ...Option) (*Pipeline, *badger.Index) {
	t.Helper()

	index, _, backend, err := badger.NewMemoryStores(badger.WithDimension(16))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	adapter, err := embedding.NewAdapter(embedder, 16, embedding.WithPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(adapter.Release)

	p, err := NewPipeline(adapter, index, opts...)
	require.NoError(t, err)
	return p, index
}

func TestNewPipeline_Validation(t *testing.T) {
	adapter, err := embedding.NewAdapter(mock.NewMockEmbedder(), 4)
	require.NoError(t, err)
	defer adapter.Release()

	_, err = NewPipeline(nil, &failingStore{})
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(adapter, nil)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewPipeline(adapter, &failingStore{}, WithChunkWindow(100, 100))
	assert.ErrorIs(t, err, chunk.ErrInvalidWindow)
}

func TestPipeline_IngestShortDocument(t *testing.T) {
	p, index := newTestPipeline(t, mock.NewMockEmbedder())
	ctx := context.Background()

	result, err := p.Ingest(ctx, []*core.Document{{ID: "d1", Text: "short"}}, &IngestOptions{Source: SourceAPI})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Documents)
	assert.Equal(t, 1, result.Records)

	record, err := index.GetRecord(ctx, "d1#0")
	require.NoError(t, err)
	assert.Equal(t, "short", record.Metadata.Text)
	assert.Equal(t, SourceAPI, record.Metadata.Source)
	assert.Len(t, record.Vector, 16)
}

func TestPipeline_IngestChunksLongDocument(t *testing.T) {
	p, index := newTestPipeline(t, mock.NewMockEmbedder(), WithChunkWindow(100, 20))
	ctx := context.Background()

	text := strings.Repeat("abcdefghij", 25) // 250 bytes: windows at 0, 80, 160
	result, err := p.Ingest(ctx, []*core.Document{
		{ID: "manual", Text: text, EquipmentID: "eq-doc"},
		{ID: "note", Text: "tiny"},
	}, &IngestOptions{Source: SourceUpload, EquipmentID: "eq-default"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, 4, result.Records)

	count, err := index.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	second, err := index.GetRecord(ctx, "manual#1")
	require.NoError(t, err)
	assert.Equal(t, text[80:180], second.Metadata.Text)
	assert.Equal(t, "eq-doc", second.Metadata.EquipmentID)

	note, err := index.GetRecord(ctx, "note#0")
	require.NoError(t, err)
	assert.Equal(t, "eq-default", note.Metadata.EquipmentID)
}

func TestPipeline_IngestManualSizedDocumentOnDisk(t *testing.T) {
	const dim = 1024
	backend, err := badger.OpenBackend(t.TempDir(), false)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	index, err := badger.NewIndex(backend, badger.WithDimension(dim))
	require.NoError(t, err)

	adapter, err := embedding.NewAdapter(mock.NewMockEmbedder(), dim, embedding.WithPoolSize(4))
	require.NoError(t, err)
	t.Cleanup(adapter.Release)

	p, err := NewPipeline(adapter, index)
	require.NoError(t, err)

	// Default 6000/400 window: 749 strides of 5600 plus a final full window.
	size := 5600*749 + 6000
	line := "Check the fuser thermistor and reseat the harness. "
	text := strings.Repeat(line, size/len(line)+1)[:size]

	ctx := context.Background()
	result, err := p.Ingest(ctx, []*core.Document{{ID: "manual", Text: text}}, &IngestOptions{Source: SourceUpload})
	require.NoError(t, err)
	assert.Equal(t, 750, result.Records)

	count, err := index.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 750, count)

	last, err := index.GetRecord(ctx, "manual#749")
	require.NoError(t, err)
	assert.Equal(t, text[5600*749:], last.Metadata.Text)
	assert.Len(t, last.Vector, dim)
}

func TestPipeline_ReingestOverwrites(t *testing.T) {
	p, index := newTestPipeline(t, mock.NewMockEmbedder())
	ctx := context.Background()

	_, err := p.Ingest(ctx, []*core.Document{{ID: "d1", Text: "first"}}, nil)
	require.NoError(t, err)
	_, err = p.Ingest(ctx, []*core.Document{{ID: "d1", Text: "second"}}, nil)
	require.NoError(t, err)

	count, err := index.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	record, err := index.GetRecord(ctx, "d1#0")
	require.NoError(t, err)
	assert.Equal(t, "second", record.Metadata.Text)
}

func TestPipeline_ValidationBeforeEmbedding(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	p, _ := newTestPipeline(t, embedder)

	tests := []struct {
		name string
		docs []*core.Document
	}{
		{"no documents", nil},
		{"empty id", []*core.Document{{ID: "", Text: "x"}}},
		{"empty text", []*core.Document{{ID: "ok", Text: "fine"}, {ID: "d2", Text: ""}}},
		{"nil document", []*core.Document{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Ingest(context.Background(), tt.docs, nil)
			assert.ErrorIs(t, err, core.ErrInvalidDocument)
			assert.True(t, core.IsValidationError(err))
		})
	}
	assert.Zero(t, embedder.CallCount())
}

func TestPipeline_EmbeddingFailureWritesNothing(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == "poison" {
			return nil, errors.New("provider 500")
		}
		return []float32{1, 2, 3}, nil
	}
	p, index := newTestPipeline(t, embedder)
	ctx := context.Background()

	_, err := p.Ingest(ctx, []*core.Document{
		{ID: "a", Text: "fine"},
		{ID: "b", Text: "poison"},
	}, nil)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	count, err := index.CountRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPipeline_UpsertFailure(t *testing.T) {
	adapter, err := embedding.NewAdapter(mock.NewMockEmbedder(), 4)
	require.NoError(t, err)
	defer adapter.Release()

	storeErr := errors.New("disk full")
	p, err := NewPipeline(adapter, &failingStore{err: storeErr})
	require.NoError(t, err)

	_, err = p.Ingest(context.Background(), []*core.Document{{ID: "d1", Text: "short"}}, nil)
	assert.ErrorIs(t, err, ErrUpsertFailed)
	assert.ErrorIs(t, err, storeErr)
}
