package storage

import (
	"context"

	"github.com/poiesic/wrench/core"
)

// VectorStore holds index records and answers nearest-neighbour queries.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// Upsert writes records, replacing any with the same ID.
	// The call is all-or-nothing: on error no record of the call is visible.
	Upsert(ctx context.Context, records ...*core.IndexRecord) error

	// Query returns at most topK matches for vector, most similar first.
	// A non-nil filter with an EquipmentID restricts matches to records
	// carrying that equipment id.
	Query(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]*core.Match, error)

	// Close closes the store and releases resources.
	Close() error
}

// RecordScanner pages through every record of a store in ID order.
// Used for reindexing; only local stores implement it.
type RecordScanner interface {
	// CountRecords returns the number of stored records.
	CountRecords(ctx context.Context) (int, error)

	// ScanRecords returns up to limit records whose ID sorts after the
	// given one. Pass "" to start from the beginning. An empty result
	// means the scan is complete.
	ScanRecords(ctx context.Context, after string, limit int) ([]*core.IndexRecord, error)
}

// EquipmentRepository provides operations for the equipment registry.
type EquipmentRepository interface {
	// AddEquipment stores a new equipment entry.
	// Generates an ID when empty and sets CreatedAt and UpdatedAt.
	AddEquipment(ctx context.Context, equipment *core.Equipment) (*core.Equipment, error)

	// UpdateEquipment replaces an existing entry and bumps UpdatedAt.
	// Returns ErrNotFound if the entry doesn't exist.
	UpdateEquipment(ctx context.Context, equipment *core.Equipment) (*core.Equipment, error)

	// DeleteEquipment removes an entry by ID.
	// Returns ErrNotFound if the entry doesn't exist.
	DeleteEquipment(ctx context.Context, id string) error

	// GetEquipment retrieves a single entry by ID.
	// Returns ErrNotFound if the entry doesn't exist.
	GetEquipment(ctx context.Context, id string) (*core.Equipment, error)

	// ListEquipment returns all entries in creation order, oldest first.
	ListEquipment(ctx context.Context) ([]*core.Equipment, error)

	// Close releases resources held by the repository.
	Close() error
}

// EventLog is an append-only log of equipment events.
type EventLog interface {
	// AppendEvent stores a new event. It assigns ID and CreatedAt.
	AppendEvent(ctx context.Context, event *core.EquipmentEvent) (*core.EquipmentEvent, error)

	// RecentEvents returns at most limit events, newest first.
	RecentEvents(ctx context.Context, limit int) ([]*core.EquipmentEvent, error)

	// Close releases resources held by the log.
	Close() error
}
