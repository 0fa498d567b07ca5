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
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/storage"
)

// EventLog implements storage.EventLog for BadgerDB. Keys sort by creation
// time, so the newest events are read with a reverse prefix scan.
type EventLog struct {
	backend *Backend
}

var _ storage.EventLog = (*EventLog)(nil)

func NewEventLog(backend *Backend) (*EventLog, error) {
	if backend == nil {
		return nil, storage.ErrBackendRequired
	}
	return &EventLog{backend: backend}, nil
}

func (l *EventLog) Close() error {
	return nil
}

// AppendEvent validates and stores event. The caller's ID and CreatedAt are
// replaced.
func (l *EventLog) AppendEvent(ctx context.Context, event *core.EquipmentEvent) (*core.EquipmentEvent, error) {
	if err := core.ValidateEquipmentEvent(event); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	event.ID = uuid.NewString()
	event.CreatedAt = time.Now().UTC()

	err := l.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeEventKey(event.CreatedAt, event.ID), storage.MarshalEquipmentEvent(event)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// RecentEvents returns up to limit events, newest first.
func (l *EventLog) RecentEvents(ctx context.Context, limit int) ([]*core.EquipmentEvent, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}

	events := []*core.EquipmentEvent{}
	err := l.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(eventPrefix)
		opts.PrefetchSize = min(limit, opts.PrefetchSize)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(eventSeekLast()); iter.Valid() && len(events) < limit; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				event, err := storage.UnmarshalEquipmentEvent(val)
				if err != nil {
					return err
				}
				events = append(events, event)
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
	return events, nil
}
