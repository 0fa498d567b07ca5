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


// Package sanitize strips model output down to plain speakable text.
//
// Text removes emoji and pictographs, markdown and formatting symbols, then
// collapses whitespace runs and trims. Stream applies the same rules to a
// sequence of fragments so that the concatenated output equals Text of the
// concatenated input.
package sanitize

import (
	"strings"
	"unicode"
)

const symbols = "•*#>_`~|$%^<>[]{}@+="

// dropped reports whether r is removed outright.
func dropped(r rune) bool {
	switch {
	case r > 0xFFFF:
		// Supplementary planes: everything UTF-16 encodes as a surrogate pair, including most emoji.
		return true
	case r >= 0x2600 && r <= 0x26FF:
		return true
	case r >= 0xD800 && r <= 0xDFFF:
		return true
	}
	return strings.ContainsRune(symbols, r)
}

// Text returns s with emoji, pictographs and markup symbols removed, runs of
// two or more whitespace characters collapsed to one space, and surrounding
// whitespace trimmed. Text is idempotent.
func Text(s string) string {
	var st Stream
	return st.Write(s)
}

// Stream sanitizes a completion token by token. The zero value is ready to use.
// Whitespace is held back until the next visible character so runs spanning
// fragments collapse correctly and trailing whitespace is never emitted.
type Stream struct {
	pending []rune
	started bool
}

// Write sanitizes one fragment and returns the text that can be emitted now.
// The result may be empty.
func (s *Stream) Write(fragment string) string {
	var b strings.Builder
	for _, r := range fragment {
		if dropped(r) {
			continue
		}
		if unicode.IsSpace(r) {
			s.pending = append(s.pending, r)
			continue
		}
		if s.started {
			switch len(s.pending) {
			case 0:
			case 1:
				b.WriteRune(s.pending[0])
			default:
				b.WriteByte(' ')
			}
		}
		s.pending = s.pending[:0]
		s.started = true
		b.WriteRune(r)
	}
	return b.String()
}
