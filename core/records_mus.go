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


package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the values kept in the local store. Fields are written
// in declaration order; appending a field at the end is the only change that
// keeps old values readable.
var (
	MetadataMUS       = metadataMUS{}
	IndexRecordMUS    = indexRecordMUS{}
	EquipmentMUS      = equipmentMUS{}
	EquipmentEventMUS = equipmentEventMUS{}
)

// ErrCorruptValue is returned when a length prefix points past the data.
var ErrCorruptValue = errors.New("corrupt stored value")

// vectorMUS writes a length prefix then each element as a fixed 4 bytes.
type vectorMUS struct{}

func (vectorMUS) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func (vectorMUS) Unmarshal(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if length < 0 || length > (len(bs)-n)/4 {
		return nil, n, fmt.Errorf("%w: vector length %d", ErrCorruptValue, length)
	}
	v = make([]float32, length)
	var m int
	for i := range v {
		v[i], m, err = raw.Float32.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return
		}
	}
	return
}

func (vectorMUS) Size(v []float32) int {
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

// timeMUS keeps full nanosecond precision as Unix seconds plus nanoseconds.
// Values decode in UTC.
type timeMUS struct{}

func (timeMUS) Marshal(t time.Time, bs []byte) (n int) {
	n = varint.Int64.Marshal(t.Unix(), bs)
	n += varint.Int.Marshal(t.Nanosecond(), bs[n:])
	return
}

func (timeMUS) Unmarshal(bs []byte) (t time.Time, n int, err error) {
	sec, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	nsec, m, err := varint.Int.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	return time.Unix(sec, int64(nsec)).UTC(), n, nil
}

func (timeMUS) Size(t time.Time) int {
	return varint.Int64.Size(t.Unix()) + varint.Int.Size(t.Nanosecond())
}

type metadataMUS struct{}

func (metadataMUS) Marshal(v Metadata, bs []byte) (n int) {
	n = ord.String.Marshal(v.Text, bs)
	n += ord.String.Marshal(v.Source, bs[n:])
	n += ord.String.Marshal(v.EquipmentID, bs[n:])
	return
}

func (metadataMUS) Unmarshal(bs []byte) (v Metadata, n int, err error) {
	v.Text, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var m int
	v.Source, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.EquipmentID, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	return
}

func (metadataMUS) Size(v Metadata) int {
	return ord.String.Size(v.Text) + ord.String.Size(v.Source) + ord.String.Size(v.EquipmentID)
}

type indexRecordMUS struct{}

func (indexRecordMUS) Marshal(v IndexRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += vectorMUS{}.Marshal(v.Vector, bs[n:])
	n += MetadataMUS.Marshal(v.Metadata, bs[n:])
	return
}

func (indexRecordMUS) Unmarshal(bs []byte) (v IndexRecord, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var m int
	v.Vector, m, err = vectorMUS{}.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return
	}
	v.Metadata, m, err = MetadataMUS.Unmarshal(bs[n:])
	n += m
	return
}

func (indexRecordMUS) Size(v IndexRecord) int {
	return ord.String.Size(v.ID) + vectorMUS{}.Size(v.Vector) + MetadataMUS.Size(v.Metadata)
}

type equipmentMUS struct{}

func (equipmentMUS) Marshal(v Equipment, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += raw.Float64.Marshal(v.PosX, bs[n:])
	n += raw.Float64.Marshal(v.PosZ, bs[n:])
	n += timeMUS{}.Marshal(v.CreatedAt, bs[n:])
	n += timeMUS{}.Marshal(v.UpdatedAt, bs[n:])
	return
}

func (equipmentMUS) Unmarshal(bs []byte) (v Equipment, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var m int
	if v.Name, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.PosX, m, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.PosZ, m, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	if v.CreatedAt, m, err = (timeMUS{}).Unmarshal(bs[n:]); err != nil {
		return v, n + m, err
	}
	n += m
	v.UpdatedAt, m, err = timeMUS{}.Unmarshal(bs[n:])
	n += m
	return
}

func (equipmentMUS) Size(v Equipment) int {
	return ord.String.Size(v.ID) + ord.String.Size(v.Name) +
		raw.Float64.Size(v.PosX) + raw.Float64.Size(v.PosZ) +
		timeMUS{}.Size(v.CreatedAt) + timeMUS{}.Size(v.UpdatedAt)
}

type equipmentEventMUS struct{}

func (equipmentEventMUS) Marshal(v EquipmentEvent, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.EquipmentID, bs[n:])
	n += ord.String.Marshal(v.Event, bs[n:])
	n += ord.String.Marshal(v.Details, bs[n:])
	n += timeMUS{}.Marshal(v.CreatedAt, bs[n:])
	return
}

func (equipmentEventMUS) Unmarshal(bs []byte) (v EquipmentEvent, n int, err error) {
	v.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var m int
	for _, field := range []*string{&v.EquipmentID, &v.Event, &v.Details} {
		*field, m, err = ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return
		}
	}
	v.CreatedAt, m, err = timeMUS{}.Unmarshal(bs[n:])
	n += m
	return
}

func (equipmentEventMUS) Size(v EquipmentEvent) int {
	return ord.String.Size(v.ID) + ord.String.Size(v.EquipmentID) +
		ord.String.Size(v.Event) + ord.String.Size(v.Details) +
		timeMUS{}.Size(v.CreatedAt)
}
