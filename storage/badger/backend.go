package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/wrench/storage"
)

// Backend owns the badger database shared by the vector index and the
// equipment registry.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// BackendOption configures OpenBackend.
type BackendOption func(*Backend)

// WithBackendLogger routes badger's internal logging through logger.
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// slogAdapter satisfies badger.Logger. Badger is chatty at info level
// (compactions, value log GC), so Infof is demoted to debug.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(msg string, items ...any) {
	a.logger.Error(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Warningf(msg string, items ...any) {
	a.logger.Warn(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Infof(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Debugf(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens the database directory at path, creating it if needed.
// With inMemory set the path is ignored and nothing touches disk.
func OpenBackend(path string, inMemory bool, opts ...BackendOption) (*Backend, error) {
	b := &Backend{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "badger")

	var dbOpts badger.Options
	if inMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		dbOpts = badger.DefaultOptions(path)
	}
	dbOpts.Logger = &slogAdapter{logger: b.logger}
	// Vectors are float noise to a compressor.
	dbOpts.Compression = options.None

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	b.db = db
	b.logger.Debug("backend opened", "path", path, "inMemory", inMemory)
	return b, nil
}

func ensureDir(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx runs fn inside a transaction that is always discarded afterwards.
// Writers must call tx.Commit themselves before returning. A closed backend
// yields storage.ErrStorageClosed without calling fn.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// SetBatch writes keys[i] = values[i] for every i. The pairs go into one
// transaction until badger reports it full with ErrTxnTooBig; that
// transaction is committed and the rest continues in a fresh one. A failure
// therefore leaves earlier transactions committed. It returns how many pairs
// were committed.
func (b *Backend) SetBatch(ctx context.Context, keys, values [][]byte) (int, error) {
	if len(keys) != len(values) {
		return 0, fmt.Errorf("%d keys but %d values", len(keys), len(values))
	}
	if b.db.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	tx := b.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	committed, pending, txns := 0, 0, 1
	for i := range keys {
		if err := ctx.Err(); err != nil {
			return committed, err
		}
		err := tx.Set(keys[i], values[i])
		if errors.Is(err, badger.ErrTxnTooBig) && pending > 0 {
			if err := tx.Commit(); err != nil {
				return committed, err
			}
			committed += pending
			pending = 0
			txns++
			tx = b.db.NewTransaction(true)
			err = tx.Set(keys[i], values[i])
		}
		if err != nil {
			return committed, err
		}
		pending++
	}
	if err := tx.Commit(); err != nil {
		return committed, err
	}
	if txns > 1 {
		b.logger.Debug("batch split across transactions", "pairs", len(keys), "transactions", txns)
	}
	return committed + pending, nil
}

// cosineSimilarity returns the cosine of the angle between a and b, compared
// over their common prefix. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
