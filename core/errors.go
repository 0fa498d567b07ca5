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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidQuery indicates a QueryRequest failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidEquipment indicates an Equipment failed validation.
	ErrInvalidEquipment = errors.New("invalid equipment")

	// ErrInvalidEvent indicates an EquipmentEvent failed validation.
	ErrInvalidEvent = errors.New("invalid equipment event")

	// ErrEmptyID indicates a required identifier is empty.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrEmptyContent indicates a required text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyName indicates the Name field is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrTopKOutOfRange indicates TopK is outside [MinTopK, MaxTopK].
	ErrTopKOutOfRange = errors.New("topK out of range")

	// ErrInvalidRole indicates a conversation turn has an unknown role.
	ErrInvalidRole = errors.New("invalid role")
)

// IsValidationError reports whether err came from one of the Validate functions.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidDocument) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrInvalidEquipment) ||
		errors.Is(err, ErrInvalidEvent)
}
