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


// Package chunk splits document text into overlapping windows small enough
// to fit embedding model input limits.
package chunk

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/poiesic/wrench/core"
)

const (
	// DefaultSize is the default window length in bytes.
	DefaultSize = 6000
	// DefaultOverlap is the default number of bytes shared by adjacent windows.
	DefaultOverlap = 400
)

// ErrInvalidWindow is returned when size and overlap cannot produce forward progress.
var ErrInvalidWindow = errors.New("invalid chunk window")

// Split slices text into windows of at most size bytes. Consecutive windows
// share overlap bytes. Text no longer than size is returned as a single chunk.
//
// Window edges are moved back to the nearest rune boundary, so multi-byte
// characters are never split. For ASCII text every non-final chunk is exactly
// size bytes long and the next chunk starts size-overlap bytes later.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	if len(text) <= size {
		return []string{text}, nil
	}

	stride := size - overlap
	chunks := make([]string, 0, len(text)/stride+1)
	for start := 0; start < len(text); {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		end = runeFloor(text, start, end)
		chunks = append(chunks, text[start:end])

		next := runeFloor(text, start, start+stride)
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks, nil
}

func validateWindow(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size %d must be positive", ErrInvalidWindow, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidWindow, overlap, size)
	}
	return nil
}

// runeFloor returns the largest rune boundary in (lo, i], or i when lo..i holds no boundary.
func runeFloor(text string, lo, i int) int {
	for j := i; j > lo; j-- {
		if utf8.RuneStart(text[j]) {
			return j
		}
	}
	return i
}

// Chunker assigns chunk identities to documents.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. It rejects overlap >= size rather than clamping it.
func New(size, overlap int) (*Chunker, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits a document into chunks indexed from zero.
func (c *Chunker) Chunk(doc *core.Document) ([]core.Chunk, error) {
	texts, err := Split(doc.Text, c.size, c.overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = core.Chunk{ParentID: doc.ID, Index: i, Text: text}
	}
	return chunks, nil
}
