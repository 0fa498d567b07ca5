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
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/storage"
)

// EquipmentRepository implements storage.EquipmentRepository for BadgerDB.
type EquipmentRepository struct {
	backend *Backend
}

var _ storage.EquipmentRepository = (*EquipmentRepository)(nil)

// NewEquipmentRepository creates a new EquipmentRepository.
func NewEquipmentRepository(backend *Backend) (*EquipmentRepository, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	return &EquipmentRepository{
		backend: backend,
	}, nil
}

// Close releases resources. EquipmentRepository has no resources to release.
func (r *EquipmentRepository) Close() error {
	return nil
}

// AddEquipment stores a new entry.
func (r *EquipmentRepository) AddEquipment(ctx context.Context, equipment *core.Equipment) (*core.Equipment, error) {
	if err := core.ValidateEquipment(equipment); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if equipment.ID == "" {
			equipment.ID = uuid.NewString()
		}
		key := makeEquipmentKey(equipment.ID)

		existing, err := readEquipment(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrDuplicateKey
		}

		equipment.CreatedAt = time.Now().UTC()
		equipment.UpdatedAt = equipment.CreatedAt

		if err := tx.Set(key, storage.MarshalEquipment(equipment)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return equipment, nil
}

// UpdateEquipment replaces an existing entry. CreatedAt is preserved.
func (r *EquipmentRepository) UpdateEquipment(ctx context.Context, equipment *core.Equipment) (*core.Equipment, error) {
	if err := core.ValidateEquipment(equipment); err != nil {
		return nil, err
	}
	if equipment.ID == "" {
		return nil, storage.ErrNotFound
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEquipmentKey(equipment.ID)

		old, err := readEquipment(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		equipment.CreatedAt = old.CreatedAt
		equipment.UpdatedAt = time.Now().UTC()

		if err := tx.Set(key, storage.MarshalEquipment(equipment)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return equipment, nil
}

// DeleteEquipment removes an entry by ID.
func (r *EquipmentRepository) DeleteEquipment(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEquipmentKey(id)

		existing, err := readEquipment(tx, key)
		if err != nil {
			return err
		}
		if existing == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetEquipment retrieves a single entry by ID.
func (r *EquipmentRepository) GetEquipment(ctx context.Context, id string) (*core.Equipment, error) {
	var equipment *core.Equipment
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		equipment, err = readEquipment(tx, makeEquipmentKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, storage.ErrNotFound
	}
	return equipment, nil
}

// ListEquipment returns all entries oldest first. Entries created at the
// same instant are ordered by ID.
func (r *EquipmentRepository) ListEquipment(ctx context.Context) ([]*core.Equipment, error) {
	list := []*core.Equipment{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(equipmentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				equipment, err := storage.UnmarshalEquipment(val)
				if err != nil {
					return err
				}
				list = append(list, equipment)
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

	slices.SortFunc(list, byCreation)
	return list, nil
}

func byCreation(a, b *core.Equipment) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// readEquipment loads an entry inside tx. Returns nil, nil if it doesn't exist.
func readEquipment(tx *badger.Txn, key []byte) (*core.Equipment, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var equipment *core.Equipment
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		equipment, unmarshalErr = storage.UnmarshalEquipment(val)
		return unmarshalErr
	})
	return equipment, err
}
