package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestCall struct {
	docs []*core.Document
	opts *ingestion.IngestOptions
}

type fakeIngester struct {
	mu    sync.Mutex
	calls []ingestCall
	err   error
}

func (f *fakeIngester) Ingest(ctx context.Context, docs []*core.Document, opts *ingestion.IngestOptions) (*ingestion.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ingestCall{docs: docs, opts: opts})
	if f.err != nil {
		return nil, f.err
	}
	return &ingestion.Result{Documents: len(docs), Records: len(docs)}, nil
}

func (f *fakeIngester) Calls() []ingestCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ingestCall(nil), f.calls...)
}

func TestNew_RequiresIngester(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrIngesterRequired)
}

func TestWatcher_IngestsDroppedFile(t *testing.T) {
	dir := t.TempDir()
	ing := &fakeIngester{}
	w, err := New(ing, WithSettle(20*time.Millisecond), WithEquipmentID("printer-a"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, dir) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fuser.txt"), []byte("Replace the fuser every 100k pages."), 0o644))

	require.Eventually(t, func() bool { return len(ing.Calls()) >= 1 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	for _, call := range ing.Calls() {
		require.Len(t, call.docs, 1)
		assert.Contains(t, call.docs[0].ID, "fuser.txt-")
		assert.Equal(t, "printer-a", call.docs[0].EquipmentID)
		assert.Equal(t, ingestion.SourceWatch, call.opts.Source)
	}
}

func TestWatcher_MissingDir(t *testing.T) {
	w, err := New(&fakeIngester{})
	require.NoError(t, err)

	err = w.Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestWatcher_ScheduleCoalescesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manual.md")
	require.NoError(t, os.WriteFile(path, []byte("Scanner C: wipe the glass."), 0o644))

	ing := &fakeIngester{}
	w, err := New(ing, WithSettle(50*time.Millisecond))
	require.NoError(t, err)

	ctx := context.Background()
	for range 5 {
		w.schedule(ctx, path)
	}

	require.Eventually(t, func() bool { return len(ing.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	w.stop()
	assert.Len(t, ing.Calls(), 1)
}

func TestWatcher_IngestErrorsAreNotFatal(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(good, []byte("Check the belt tension."), 0o644))
	require.NoError(t, os.WriteFile(empty, []byte("  "), 0o644))

	ing := &fakeIngester{err: errors.New("store down")}
	w, err := New(ing)
	require.NoError(t, err)

	ctx := context.Background()
	w.ingest(ctx, empty)
	assert.Empty(t, ing.Calls(), "files without text are skipped")

	w.ingest(ctx, good)
	assert.Len(t, ing.Calls(), 1)
}

func TestWatcher_StopCancelsPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.txt")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0o644))

	ing := &fakeIngester{}
	w, err := New(ing, WithSettle(time.Hour))
	require.NoError(t, err)

	w.schedule(context.Background(), path)
	w.stop()
	assert.Empty(t, ing.Calls())
}
