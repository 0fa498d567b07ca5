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

// NewMemoryEventLog creates an in-memory event log for testing.
// Caller must close the backend when done.
func NewMemoryEventLog() (*EventLog, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}
	log, err := NewEventLog(backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return log, backend, nil
}

// NewMemoryStores creates an in-memory index and equipment repository for testing.
// Returns index, equipment repository, backend, and error.
// Caller must close the backend when done.
func NewMemoryStores(opts ...IndexOption) (*Index, *EquipmentRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	index, err := NewIndex(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	equipment, err := NewEquipmentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	return index, equipment, backend, nil
}
