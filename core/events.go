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
	"encoding/json"
	"fmt"
)

// EventKind discriminates StreamEvent variants.
type EventKind int

const (
	// EventContexts carries the retrieved contexts. Always first, exactly once.
	EventContexts EventKind = iota + 1
	// EventDelta carries a non-empty sanitized completion fragment.
	EventDelta
	// EventError terminates a stream whose completion failed mid-flight.
	EventError
)

// StreamEvent is one line of a streamed answer.
type StreamEvent struct {
	Kind     EventKind
	Contexts []string
	Delta    string
	Err      string
}

// ContextsEvent builds the leading event of a stream.
func ContextsEvent(contexts []string) StreamEvent {
	return StreamEvent{Kind: EventContexts, Contexts: contexts}
}

// DeltaEvent builds a completion fragment event.
func DeltaEvent(delta string) StreamEvent {
	return StreamEvent{Kind: EventDelta, Delta: delta}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Kind: EventError, Err: msg}
}

// MarshalJSON renders exactly one of {"contexts":[...]}, {"delta":"..."} or {"error":"..."}.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventContexts:
		contexts := e.Contexts
		if contexts == nil {
			contexts = []string{}
		}
		return json.Marshal(struct {
			Contexts []string `json:"contexts"`
		}{contexts})
	case EventDelta:
		return json.Marshal(struct {
			Delta string `json:"delta"`
		}{e.Delta})
	case EventError:
		return json.Marshal(struct {
			Error string `json:"error"`
		}{e.Err})
	default:
		return nil, fmt.Errorf("unknown stream event kind %d", e.Kind)
	}
}

// UnmarshalJSON decodes any of the three wire shapes.
func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Contexts *[]string `json:"contexts"`
		Delta    *string   `json:"delta"`
		Error    *string   `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Contexts != nil:
		*e = ContextsEvent(*raw.Contexts)
	case raw.Delta != nil:
		*e = DeltaEvent(*raw.Delta)
	case raw.Error != nil:
		*e = ErrorEvent(*raw.Error)
	default:
		return fmt.Errorf("unrecognized stream event %s", data)
	}
	return nil
}
