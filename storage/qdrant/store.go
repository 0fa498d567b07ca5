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


// Package qdrant implements storage.VectorStore against a remote Qdrant
// collection over its REST API.
//
// Qdrant point ids must be unsigned integers or UUIDs, so record ids such as
// "manual-a#0" are mapped to a deterministic UUIDv5 and the original id is
// kept in the payload under "record_id". Re-upserting a record id therefore
// overwrites the same point.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/storage"
)

// Payload keys stored with every point.
const (
	payloadRecordID    = "record_id"
	payloadText        = "text"
	payloadSource      = "source"
	payloadEquipmentID = "equipment_id"
)

const defaultTimeout = 20 * time.Second

var (
	// ErrURLRequired is returned when no Qdrant URL is configured.
	ErrURLRequired = errors.New("qdrant url required")

	// ErrCollectionRequired is returned when no collection name is configured.
	ErrCollectionRequired = errors.New("qdrant collection required")

	// ErrUnexpectedStatus wraps non-2xx responses.
	ErrUnexpectedStatus = errors.New("qdrant unexpected status")
)

// Store is a storage.VectorStore backed by one Qdrant collection.
type Store struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	logger     *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithAPIKey sets the api-key header sent with every request.
func WithAPIKey(key string) Option {
	return func(s *Store) error {
		s.apiKey = key
		return nil
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		s.client = client
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New connects to Qdrant and creates the collection with cosine distance
// if it does not exist yet.
func New(ctx context.Context, url, collection string, dimension int, opts ...Option) (*Store, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrURLRequired
	}
	if strings.TrimSpace(collection) == "" {
		return nil, ErrCollectionRequired
	}
	if dimension < 1 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", storage.ErrInvalidQuery, dimension)
	}

	s := &Store{
		baseURL:    strings.TrimRight(url, "/"),
		collection: collection,
		dimension:  dimension,
		client:     &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "qdrant", "collection", collection)

	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureCollection creates the collection if a GET for it fails.
func (s *Store) EnsureCollection(ctx context.Context) error {
	path := "/collections/" + s.collection
	if _, err := s.doRequest(ctx, http.MethodGet, path, nil); err == nil {
		return nil
	}

	s.logger.Info("creating collection", "dimension", s.dimension)
	req := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	_, err := s.doRequest(ctx, http.MethodPut, path, req)
	return err
}

// Close releases idle connections.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// PointID maps a record id to its deterministic Qdrant point id.
func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

// Upsert writes all records in one request and waits for it to be applied.
func (s *Store) Upsert(ctx context.Context, records ...*core.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record id is empty", storage.ErrInvalidQuery)
		}
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("%w: record %q has %d, collection has %d",
				storage.ErrDimensionMismatch, r.ID, len(r.Vector), s.dimension)
		}
		payload := map[string]any{
			payloadRecordID: r.ID,
			payloadText:     r.Metadata.Text,
		}
		if r.Metadata.Source != "" {
			payload[payloadSource] = r.Metadata.Source
		}
		if r.Metadata.EquipmentID != "" {
			payload[payloadEquipmentID] = r.Metadata.EquipmentID
		}
		points = append(points, map[string]any{
			"id":      PointID(r.ID),
			"vector":  r.Vector,
			"payload": payload,
		})
	}

	req := map[string]any{"points": points}
	_, err := s.doRequest(ctx, http.MethodPut, "/collections/"+s.collection+"/points?wait=true", req)
	if err != nil {
		return err
	}
	s.logger.Debug("upserted points", "count", len(points))
	return nil
}

type searchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float32        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Query runs a similarity search, pushing the equipment filter down to Qdrant.
// Matches are returned in Qdrant's order.
func (s *Store) Query(ctx context.Context, vector []float32, topK int, filter *core.Filter) ([]*core.Match, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", storage.ErrInvalidQuery, topK)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if filter != nil && filter.EquipmentID != "" {
		req["filter"] = mustFilter(matchFilter(payloadEquipmentID, filter.EquipmentID))
	}

	data, err := s.doRequest(ctx, http.MethodPost, "/collections/"+s.collection+"/points/search", req)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}

	matches := make([]*core.Match, 0, len(parsed.Result))
	for _, item := range parsed.Result {
		id := payloadString(item.Payload, payloadRecordID)
		if id == "" {
			id = fmt.Sprintf("%v", item.ID)
		}
		matches = append(matches, &core.Match{
			ID:    id,
			Score: item.Score,
			Metadata: core.Metadata{
				Text:        payloadString(item.Payload, payloadText),
				Source:      payloadString(item.Payload, payloadSource),
				EquipmentID: payloadString(item.Payload, payloadEquipmentID),
			},
		})
		if len(matches) == topK {
			break
		}
	}
	return matches, nil
}

func (s *Store) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func matchFilter(key string, value any) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"value": value,
		},
	}
}

func mustFilter(conditions ...map[string]any) map[string]any {
	return map[string]any{
		"must": conditions,
	}
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
