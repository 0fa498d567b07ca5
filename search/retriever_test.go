package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/wrench/ai/mock"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/embedding"
	"github.com/poiesic/wrench/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a storage.VectorStore with an injectable Query.
type fakeStore struct {
	QueryFunc  func(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]*core.Match, error)
	lastFilter *core.Filter
	mu         sync.Mutex
}

func (f *fakeStore) Upsert(ctx context.Context, records ...*core.IndexRecord) error {
	return nil
}

func (f *fakeStore) Query(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]*core.Match, error) {
	f.mu.Lock()
	f.lastFilter = filter
	f.mu.Unlock()
	return f.QueryFunc(ctx, vector, topK, filter)
}

func (f *fakeStore) Close() error { return nil }

type recordingMonitor struct {
	mu       sync.Mutex
	hits     []int
	timeouts int
	errs     []error
}

func (m *recordingMonitor) RetrievalHit(contexts int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits = append(m.hits, contexts)
}

func (m *recordingMonitor) RetrievalTimeout(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts++
}

func (m *recordingMonitor) RetrievalError(err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}

func newAdapter(t *testing.T) *embedding.Adapter {
	t.Helper()
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 8
	adapter, err := embedding.NewAdapter(embedder, 8)
	require.NoError(t, err)
	t.Cleanup(adapter.Release)
	return adapter
}

func matches(texts ...string) []*core.Match {
	out := make([]*core.Match, len(texts))
	for i, text := range texts {
		out[i] = &core.Match{ID: text, Score: 1, Metadata: core.Metadata{Text: text}}
	}
	return out
}

func TestNewRetriever_Validation(t *testing.T) {
	adapter := newAdapter(t)

	_, err := NewRetriever(nil, &fakeStore{})
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewRetriever(adapter, nil)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewRetriever(adapter, &fakeStore{}, WithTimeout(0))
	assert.Error(t, err)
}

func TestRetriever_Hit(t *testing.T) {
	store := &fakeStore{
		QueryFunc: func(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]*core.Match, error) {
			assert.Len(t, vector, 8)
			return matches("first", "", "second", "third"), nil
		},
	}
	monitor := &recordingMonitor{}

	r, err := NewRetriever(newAdapter(t), store, WithMonitor(monitor))
	require.NoError(t, err)

	got := r.Retrieve(context.Background(), "paper jam", 2, "")
	assert.Equal(t, []string{"first", "second"}, got)
	assert.Nil(t, store.lastFilter)
	assert.Equal(t, []int{2}, monitor.hits)
}

func TestRetriever_EquipmentFilter(t *testing.T) {
	store := &fakeStore{
		QueryFunc: func(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]*core.Match, error) {
			return matches("only"), nil
		},
	}

	r, err := NewRetriever(newAdapter(t), store)
	require.NoError(t, err)

	r.Retrieve(context.Background(), "paper jam", 4, "eq-7")
	require.NotNil(t, store.lastFilter)
	assert.Equal(t, "eq-7", store.lastFilter.EquipmentID)
}

func TestRetriever_SlowStoreFailsOpen(t *testing.T) {
	storeCancelled := make(chan struct{})
	store := &fakeStore{
		QueryFunc: func(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]*core.Match, error) {
			<-ctx.Done()
			close(storeCancelled)
			return nil, ctx.Err()
		},
	}
	monitor := &recordingMonitor{}

	r, err := NewRetriever(newAdapter(t), store, WithTimeout(30*time.Millisecond), WithMonitor(monitor))
	require.NoError(t, err)

	start := time.Now()
	got := r.Retrieve(context.Background(), "paper jam", 4, "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, monitor.timeouts)

	select {
	case <-storeCancelled:
	case <-time.After(time.Second):
		t.Fatal("store query was not cancelled")
	}
}

func TestRetriever_StoreErrorFailsOpen(t *testing.T) {
	store := &fakeStore{
		QueryFunc: func(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]*core.Match, error) {
			return nil, errors.New("connection refused")
		},
	}
	monitor := &recordingMonitor{}

	r, err := NewRetriever(newAdapter(t), store, WithMonitor(monitor))
	require.NoError(t, err)

	got := r.Retrieve(context.Background(), "paper jam", 4, "")
	assert.Empty(t, got)
	assert.Len(t, monitor.errs, 1)
}

func TestRetriever_EmbedErrorFailsOpen(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("rate limited")
	}
	adapter, err := embedding.NewAdapter(embedder, 8)
	require.NoError(t, err)
	defer adapter.Release()

	queried := false
	store := &fakeStore{
		QueryFunc: func(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]*core.Match, error) {
			queried = true
			return nil, nil
		},
	}

	r, err := NewRetriever(adapter, store)
	require.NoError(t, err)

	assert.Empty(t, r.Retrieve(context.Background(), "paper jam", 4, ""))
	assert.False(t, queried)
}

func TestRetriever_BadgerIndex(t *testing.T) {
	index, _, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	texts := []string{"Printer A: open tray 2", "Copier B: toner low"}
	for i, text := range texts {
		require.NoError(t, index.Upsert(ctx, &core.IndexRecord{
			ID:       core.Chunk{ParentID: "doc", Index: i}.ID(),
			Vector:   mock.GenerateDeterministicVector(text, 8),
			Metadata: core.Metadata{Text: text},
		}))
	}

	r, err := NewRetriever(newAdapter(t), index)
	require.NoError(t, err)

	got := r.Retrieve(ctx, "Printer A: open tray 2", 1, "")
	assert.Equal(t, []string{"Printer A: open tray 2"}, got)
}
