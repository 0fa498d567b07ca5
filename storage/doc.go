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


// Package storage provides the storage abstraction layer for wrench.
//
// This package defines the interfaces that decouple storage implementations
// from the ingest and query paths. The vector index may be the local BadgerDB
// index or a remote Qdrant collection; both satisfy VectorStore.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	store, err := badger.NewIndex(backend)  // returns storage.VectorStore
//
// Internal package constructors (newIndex, newEquipmentRepository, etc.) may
// return concrete types since they're only used within the implementation
// package.
//
// # Interfaces
//
//   - VectorStore: upsert and similarity query of index records
//   - RecordScanner: paged scan of every record, used by reindexing
//   - EquipmentRepository: the equipment registry
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	store, err := badger.NewIndex(backend)
//
// Use in tests with in-memory storage:
//
//	store, registry, backend, err := badger.NewMemoryStores()
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
