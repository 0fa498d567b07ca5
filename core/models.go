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
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Hex renders the ID as 16 lowercase hex digits.
func (id ID) Hex() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// DocumentIDFromContent derives a stable document id from a file name and
// its contents so re-ingesting identical content overwrites prior records.
func DocumentIDFromContent(name string, content []byte) string {
	return name + "-" + IDFromContent(string(content)).Hex()
}

// Document is a unit of source text submitted for indexing.
type Document struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	EquipmentID string `json:"equipmentId,omitempty"`
}

// Chunk is a bounded window of a Document's text.
type Chunk struct {
	ParentID string
	Index    int
	Text     string
}

// ID returns the index record id for the chunk, "<parent>#<index>".
func (c Chunk) ID() string {
	return c.ParentID + "#" + strconv.Itoa(c.Index)
}

// Metadata is the payload stored alongside each vector.
type Metadata struct {
	Text        string `json:"text"`
	Source      string `json:"source,omitempty"`
	EquipmentID string `json:"equipmentId,omitempty"`
}

// IndexRecord is a vector plus metadata as held by a vector store.
// Re-upserting the same ID replaces the previous record.
type IndexRecord struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	Metadata Metadata  `json:"metadata"`
}

// Match is a single vector store hit.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Filter narrows a vector query. Zero value means no filtering.
type Filter struct {
	EquipmentID string
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message of recent history supplied by the caller.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is a technician question.
type QueryRequest struct {
	Query         string
	TopK          int
	EquipmentName string
	EquipmentID   string
	History       []ConversationTurn
}

// Answer is the buffered result of a query.
type Answer struct {
	Answer   string   `json:"answer"`
	Contexts []string `json:"contexts"`
}

// Equipment is a registered machine that documentation and questions can refer to.
type Equipment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PosX      float64   `json:"posX"`
	PosZ      float64   `json:"posZ"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EquipmentEvent is an entry in the equipment event log, such as a reported
// fault or a completed repair.
type EquipmentEvent struct {
	ID          string    `json:"id"`
	EquipmentID string    `json:"equipmentId"`
	Event       string    `json:"event"`
	Details     string    `json:"details,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
