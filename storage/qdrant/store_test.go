package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// fakeQdrant serves the handful of REST routes the store uses.
type fakeQdrant struct {
	mu         sync.Mutex
	created    bool
	dimension  int
	points     []fakePoint
	lastFilter map[string]any
	apiKeys    []string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections/manuals":
		if !f.created {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"result":{}}`))

	case r.Method == http.MethodPut && r.URL.Path == "/collections/manuals":
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.created = true
		f.dimension = body.Vectors.Size
		w.Write([]byte(`{"result":true}`))

	case r.Method == http.MethodPut && r.URL.Path == "/collections/manuals/points":
		var body struct {
			Points []fakePoint `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, p := range body.Points {
			replaced := false
			for i := range f.points {
				if f.points[i].ID == p.ID {
					f.points[i] = p
					replaced = true
				}
			}
			if !replaced {
				f.points = append(f.points, p)
			}
		}
		w.Write([]byte(`{"result":{"status":"completed"}}`))

	case r.Method == http.MethodPost && r.URL.Path == "/collections/manuals/points/search":
		var body struct {
			Limit  int            `json:"limit"`
			Filter map[string]any `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.lastFilter = body.Filter
		want := equipmentFromFilter(body.Filter)

		type hit struct {
			ID      string         `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		hits := []hit{}
		for i, p := range f.points {
			if want != "" && p.Payload[payloadEquipmentID] != want {
				continue
			}
			if len(hits) == body.Limit {
				break
			}
			hits = append(hits, hit{ID: p.ID, Score: 1 - float32(i)*0.1, Payload: p.Payload})
		}
		json.NewEncoder(w).Encode(map[string]any{"result": hits})

	default:
		http.NotFound(w, r)
	}
}

func equipmentFromFilter(filter map[string]any) string {
	must, ok := filter["must"].([]any)
	if !ok || len(must) == 0 {
		return ""
	}
	cond, _ := must[0].(map[string]any)
	match, _ := cond["match"].(map[string]any)
	v, _ := match["value"].(string)
	return v
}

func newTestStore(t *testing.T) (*Store, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := New(context.Background(), server.URL+"/", "manuals", 3, WithAPIKey("secret"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, fake
}

func TestNew_CreatesCollection(t *testing.T) {
	_, fake := newTestStore(t)

	assert.True(t, fake.created)
	assert.Equal(t, 3, fake.dimension)
	for _, key := range fake.apiKeys {
		assert.Equal(t, "secret", key)
	}
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, "", "c", 3)
	assert.ErrorIs(t, err, ErrURLRequired)

	_, err = New(ctx, "http://localhost:6333", " ", 3)
	assert.ErrorIs(t, err, ErrCollectionRequired)

	_, err = New(ctx, "http://localhost:6333", "c", 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestPointID_Deterministic(t *testing.T) {
	assert.Equal(t, PointID("d1#0"), PointID("d1#0"))
	assert.NotEqual(t, PointID("d1#0"), PointID("d1#1"))
}

func TestStore_UpsertAndQuery(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx,
		&core.IndexRecord{ID: "a#0", Vector: []float32{1, 0, 0}, Metadata: core.Metadata{Text: "Printer A tray", Source: "upload", EquipmentID: "eq-a"}},
		&core.IndexRecord{ID: "b#0", Vector: []float32{0, 1, 0}, Metadata: core.Metadata{Text: "Copier B toner", EquipmentID: "eq-b"}},
	)
	require.NoError(t, err)

	// Same record id maps to the same point.
	err = store.Upsert(ctx, &core.IndexRecord{ID: "a#0", Vector: []float32{1, 0, 0}, Metadata: core.Metadata{Text: "Printer A tray v2", EquipmentID: "eq-a"}})
	require.NoError(t, err)
	assert.Len(t, fake.points, 2)

	matches, err := store.Query(ctx, []float32{1, 0, 0}, 4, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a#0", matches[0].ID)
	assert.Equal(t, "Printer A tray v2", matches[0].Metadata.Text)
	assert.Nil(t, fake.lastFilter)

	matches, err = store.Query(ctx, []float32{1, 0, 0}, 4, &core.Filter{EquipmentID: "eq-b"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b#0", matches[0].ID)
	assert.Equal(t, "eq-b", matches[0].Metadata.EquipmentID)
	assert.NotNil(t, fake.lastFilter)
}

func TestStore_UpsertDimensionMismatch(t *testing.T) {
	store, fake := newTestStore(t)

	err := store.Upsert(context.Background(), &core.IndexRecord{ID: "x#0", Vector: []float32{1}})
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	assert.Empty(t, fake.points)
}

func TestStore_UnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"result":{}}`))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	store, err := New(context.Background(), server.URL, "manuals", 3)
	require.NoError(t, err)

	_, err = store.Query(context.Background(), []float32{1, 0, 0}, 2, nil)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}
