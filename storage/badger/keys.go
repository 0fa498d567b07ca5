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
	"encoding/binary"
	"time"
)

// Key prefixes for different data types
const (
	indexRecordPrefix = "idxrec:"
	equipmentPrefix   = "equip:"
	eventPrefix       = "event:"
)

// makeIndexKey generates a key for an index record by ID.
// Record IDs sort lexicographically under the prefix, which ScanRecords relies on.
func makeIndexKey(id string) []byte {
	return []byte(indexRecordPrefix + id)
}

// indexIDFromKey strips the prefix from an index record key.
func indexIDFromKey(key []byte) string {
	return string(key[len(indexRecordPrefix):])
}

// makeEquipmentKey generates a key for an equipment entry by ID.
func makeEquipmentKey(id string) []byte {
	return []byte(equipmentPrefix + id)
}

// makeEventKey orders events by creation time: the prefix, the big-endian
// Unix nanoseconds, then the event ID to keep same-instant keys distinct.
func makeEventKey(at time.Time, id string) []byte {
	key := make([]byte, 0, len(eventPrefix)+8+len(id))
	key = append(key, eventPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(at.UnixNano()))
	return append(key, id...)
}

// eventSeekLast is a key after every event key, for reverse iteration.
func eventSeekLast() []byte {
	return append([]byte(eventPrefix), 0xFF)
}
