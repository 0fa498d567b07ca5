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


package storage

import (
	"fmt"

	"github.com/poiesic/wrench/core"
)

// MarshalIndexRecord serializes an IndexRecord to bytes.
func MarshalIndexRecord(record *core.IndexRecord) []byte {
	buf := make([]byte, core.IndexRecordMUS.Size(*record))
	core.IndexRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalIndexRecord deserializes an IndexRecord from bytes.
func UnmarshalIndexRecord(data []byte) (*core.IndexRecord, error) {
	if len(data) == 0 {
		return nil, ErrTruncatedData
	}
	record, _, err := core.IndexRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: index record: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalEquipment serializes an Equipment to bytes.
func MarshalEquipment(equipment *core.Equipment) []byte {
	buf := make([]byte, core.EquipmentMUS.Size(*equipment))
	core.EquipmentMUS.Marshal(*equipment, buf)
	return buf
}

// UnmarshalEquipment deserializes an Equipment from bytes.
func UnmarshalEquipment(data []byte) (*core.Equipment, error) {
	if len(data) == 0 {
		return nil, ErrTruncatedData
	}
	equipment, _, err := core.EquipmentMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: equipment: %w", ErrSerializationFailed, err)
	}
	return &equipment, nil
}

// MarshalEquipmentEvent serializes an EquipmentEvent to bytes.
func MarshalEquipmentEvent(event *core.EquipmentEvent) []byte {
	buf := make([]byte, core.EquipmentEventMUS.Size(*event))
	core.EquipmentEventMUS.Marshal(*event, buf)
	return buf
}

// UnmarshalEquipmentEvent deserializes an EquipmentEvent from bytes.
func UnmarshalEquipmentEvent(data []byte) (*core.EquipmentEvent, error) {
	if len(data) == 0 {
		return nil, ErrTruncatedData
	}
	event, _, err := core.EquipmentEventMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: equipment event: %w", ErrSerializationFailed, err)
	}
	return &event, nil
}
