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


// Package answer turns a technician question into a sanitized answer.
//
// An Engine retrieves contexts, narrows them to the selected equipment,
// builds the prompt, and runs the completion either buffered (Answer) or
// token by token (Stream). Both paths sanitize identically.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/wrench/ai"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/prompt"
	"github.com/poiesic/wrench/sanitize"
	"github.com/poiesic/wrench/search"
)

var (
	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrCompleterRequired is returned when a completer is not provided.
	ErrCompleterRequired = errors.New("completer required")

	// ErrCompletionFailed wraps provider failures of the completion call.
	ErrCompletionFailed = errors.New("completion failed")
)

// Retriever fetches context strings for a question. It never fails.
// *search.Retriever satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, equipmentID string) []string
}

// EquipmentLookup resolves an equipment id to its registry entry.
// storage.EquipmentRepository satisfies it.
type EquipmentLookup interface {
	GetEquipment(ctx context.Context, id string) (*core.Equipment, error)
}

// Emitter receives stream events in order. An error stops the stream.
type Emitter func(event core.StreamEvent) error

// Engine answers questions. It is safe for concurrent use.
type Engine struct {
	retriever Retriever
	completer ai.Completer
	equipment EquipmentLookup
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithEquipment enables resolving EquipmentID to a name when the request
// carries no EquipmentName.
func WithEquipment(lookup EquipmentLookup) Option {
	return func(e *Engine) error {
		e.equipment = lookup
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a new engine.
func NewEngine(retriever Retriever, completer ai.Completer, opts ...Option) (*Engine, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if completer == nil {
		return nil, ErrCompleterRequired
	}

	e := &Engine{
		retriever: retriever,
		completer: completer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "answer-engine")

	return e, nil
}

// Answer runs one buffered completion and returns the sanitized text with
// the contexts it was grounded on.
func (e *Engine) Answer(ctx context.Context, req *core.QueryRequest) (*core.Answer, error) {
	contexts, text, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	raw, err := e.completer.Complete(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Error("completion failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	return &core.Answer{
		Answer:   sanitize.Text(raw),
		Contexts: contexts,
	}, nil
}

// Stream emits the contexts event, then one delta event per non-empty
// sanitized fragment of the completion. Validation errors are returned
// before anything is emitted. A completion failure after the contexts event
// is returned wrapped in ErrCompletionFailed; the caller decides how to
// report it in-band. If ctx is cancelled the context error is returned.
func (e *Engine) Stream(ctx context.Context, req *core.QueryRequest, emit Emitter) error {
	contexts, text, err := e.prepare(ctx, req)
	if err != nil {
		return err
	}

	if err := emit(core.ContextsEvent(contexts)); err != nil {
		return err
	}

	var (
		st      sanitize.Stream
		emitErr error
		deltas  int
	)
	err = e.completer.CompleteStream(ctx, text, func(ctx context.Context, token string) error {
		delta := st.Write(token)
		if delta == "" {
			return nil
		}
		if err := emit(core.DeltaEvent(delta)); err != nil {
			emitErr = err
			return err
		}
		deltas++
		return nil
	})

	switch {
	case emitErr != nil:
		return emitErr
	case err == nil:
		e.logger.Debug("stream complete", "deltas", deltas, "contexts", len(contexts))
		return nil
	case ctx.Err() != nil:
		e.logger.Debug("stream aborted by caller", "deltas", deltas)
		return ctx.Err()
	default:
		e.logger.Error("completion stream failed", "deltas", deltas, "err", err)
		return fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
}

// prepare validates the request, retrieves and selects contexts, and builds
// the prompt. The request is not modified.
func (e *Engine) prepare(ctx context.Context, req *core.QueryRequest) ([]string, string, error) {
	if req == nil {
		return nil, "", core.ValidateQueryRequest(nil)
	}
	r := *req
	if r.TopK == 0 {
		r.TopK = core.DefaultTopK
	}
	if err := core.ValidateQueryRequest(&r); err != nil {
		return nil, "", err
	}

	name := e.equipmentName(ctx, &r)
	contexts := e.retriever.Retrieve(ctx, r.Query, r.TopK, r.EquipmentID)
	contexts = search.SelectContexts(contexts, name)

	e.logger.Debug("prepared prompt",
		"topK", r.TopK,
		"contexts", len(contexts),
		"equipment", name,
		"history", len(r.History))

	return contexts, prompt.Build(r.Query, r.History, contexts, name), nil
}

func (e *Engine) equipmentName(ctx context.Context, req *core.QueryRequest) string {
	if name := strings.TrimSpace(req.EquipmentName); name != "" {
		return name
	}
	if req.EquipmentID == "" || e.equipment == nil {
		return ""
	}
	equipment, err := e.equipment.GetEquipment(ctx, req.EquipmentID)
	if err != nil {
		e.logger.Warn("equipment lookup failed", "equipmentId", req.EquipmentID, "err", err)
		return ""
	}
	return equipment.Name
}
