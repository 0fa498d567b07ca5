package reindex

import "errors"

var (
	// ErrScannerRequired is returned when a record scanner is not provided.
	ErrScannerRequired = errors.New("record scanner required")

	// ErrEmbedderRequired is returned when a batch embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
