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
	"fmt"
	"strings"
)

const (
	// MinTopK is the smallest number of contexts a query may request.
	MinTopK = 1
	// MaxTopK is the largest number of contexts a query may request.
	MaxTopK = 8
	// DefaultTopK is used when a query does not specify TopK.
	DefaultTopK = 4
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Text must not be empty
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyID)
	}
	if doc.Text == "" {
		return fmt.Errorf("%w %q: %w", ErrInvalidDocument, doc.ID, ErrEmptyContent)
	}
	return nil
}

// ValidateQueryRequest validates a QueryRequest according to domain rules.
//
// Validation rules:
//   - Query must contain non-whitespace text
//   - TopK must be within [MinTopK, MaxTopK]
//   - History turns must have a valid role and content
//
// Callers apply DefaultTopK before validating.
func ValidateQueryRequest(req *QueryRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidQuery)
	}
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrEmptyContent)
	}
	if req.TopK < MinTopK || req.TopK > MaxTopK {
		return fmt.Errorf("%w: %w: %d not in [%d, %d]", ErrInvalidQuery, ErrTopKOutOfRange, req.TopK, MinTopK, MaxTopK)
	}
	for i, turn := range req.History {
		if err := ValidateRole(turn.Role); err != nil {
			return fmt.Errorf("%w: history[%d]: %w", ErrInvalidQuery, i, err)
		}
		if turn.Content == "" {
			return fmt.Errorf("%w: history[%d]: %w", ErrInvalidQuery, i, ErrEmptyContent)
		}
	}
	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}

// ValidateEquipment validates an Equipment according to domain rules.
// ID may be empty; repositories assign one on create.
func ValidateEquipment(eq *Equipment) error {
	if eq == nil {
		return fmt.Errorf("%w: equipment is nil", ErrInvalidEquipment)
	}
	if strings.TrimSpace(eq.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEquipment, ErrEmptyName)
	}
	return nil
}

// ValidateEquipmentEvent requires an equipment id and an event name.
// Details are free text and may be empty.
func ValidateEquipmentEvent(ev *EquipmentEvent) error {
	if ev == nil {
		return fmt.Errorf("%w: event is nil", ErrInvalidEvent)
	}
	if strings.TrimSpace(ev.EquipmentID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, ErrEmptyID)
	}
	if strings.TrimSpace(ev.Event) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, ErrEmptyContent)
	}
	return nil
}
