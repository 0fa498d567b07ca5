package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/wrench/answer"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu       sync.Mutex
	requests []*core.QueryRequest

	answerFunc func(ctx context.Context, req *core.QueryRequest) (*core.Answer, error)
	streamFunc func(ctx context.Context, req *core.QueryRequest, emit answer.Emitter) error
}

func (f *fakeEngine) Answer(ctx context.Context, req *core.QueryRequest) (*core.Answer, error) {
	f.record(req)
	if f.answerFunc != nil {
		return f.answerFunc(ctx, req)
	}
	return &core.Answer{Answer: "Check the power cable.", Contexts: []string{}}, nil
}

func (f *fakeEngine) Stream(ctx context.Context, req *core.QueryRequest, emit answer.Emitter) error {
	f.record(req)
	if f.streamFunc != nil {
		return f.streamFunc(ctx, req, emit)
	}
	if err := emit(core.ContextsEvent([]string{"ctx one"})); err != nil {
		return err
	}
	for _, d := range []string{"Check ", "the cable."} {
		if err := emit(core.DeltaEvent(d)); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeEngine) record(req *core.QueryRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeEngine) lastRequest() *core.QueryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

type fakeIngester struct {
	mu    sync.Mutex
	docs  []*core.Document
	opts  *ingestion.IngestOptions
	err   error
	calls int
}

func (f *fakeIngester) Ingest(ctx context.Context, docs []*core.Document, opts *ingestion.IngestOptions) (*ingestion.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.docs = docs
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	for _, d := range docs {
		if err := core.ValidateDocument(d); err != nil {
			return nil, err
		}
	}
	return &ingestion.Result{Documents: len(docs), Records: len(docs) * 2}, nil
}

func newTestServer(t *testing.T, engine QueryEngine, ing Ingester, opts ...Option) *Server {
	t.Helper()
	s, err := New(Dependencies{Engine: engine, Ingester: ing}, opts...)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func ndjsonLines(t *testing.T, body []byte) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		lines = append(lines, m)
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Dependencies{Ingester: &fakeIngester{}})
	assert.ErrorIs(t, err, ErrEngineRequired)

	_, err = New(Dependencies{Engine: &fakeEngine{}})
	assert.ErrorIs(t, err, ErrIngesterRequired)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeEngine{}, &fakeIngester{})

	w := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, &fakeEngine{}, &fakeIngester{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, &fakeEngine{}, &fakeIngester{}, WithCORSOrigins("https://app.example"))

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestQuery(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine, &fakeIngester{})

	w := do(t, s.Handler(), http.MethodPost, "/query",
		`{"query":"paper jam","topK":3,"machine":"Printer A","machineId":"p-a","history":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"answer":"Check the power cable.","contexts":[]}`, w.Body.String())

	req := engine.lastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "paper jam", req.Query)
	assert.Equal(t, 3, req.TopK)
	assert.Equal(t, "Printer A", req.EquipmentName)
	assert.Equal(t, "p-a", req.EquipmentID)
	assert.Len(t, req.History, 1)
}

func TestQuery_EquipmentFieldsWinOverAliases(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine, &fakeIngester{})

	w := do(t, s.Handler(), http.MethodPost, "/query",
		`{"query":"q","equipmentName":"Scanner C","machine":"Printer A","equipmentId":"s-c","machineId":"p-a"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Scanner C", engine.lastRequest().EquipmentName)
	assert.Equal(t, "s-c", engine.lastRequest().EquipmentID)
}

func TestQuery_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed json", `{"query":`, nil, http.StatusBadRequest},
		{"validation", `{"query":""}`, fmt.Errorf("%w: %w", core.ErrInvalidQuery, core.ErrEmptyContent), http.StatusBadRequest},
		{"completion", `{"query":"q"}`, fmt.Errorf("%w: boom", answer.ErrCompletionFailed), http.StatusBadGateway},
		{"unexpected", `{"query":"q"}`, errors.New("weird"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{
				answerFunc: func(ctx context.Context, req *core.QueryRequest) (*core.Answer, error) {
					return nil, tt.err
				},
			}
			s := newTestServer(t, engine, &fakeIngester{})

			w := do(t, s.Handler(), http.MethodPost, "/query", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestQueryStream(t *testing.T) {
	s := newTestServer(t, &fakeEngine{}, &fakeIngester{})

	w := do(t, s.Handler(), http.MethodPost, "/query/stream", `{"query":"paper jam"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	lines := ndjsonLines(t, w.Body.Bytes())
	require.Len(t, lines, 3)
	assert.Equal(t, map[string]any{"contexts": []any{"ctx one"}}, lines[0])
	assert.Equal(t, map[string]any{"delta": "Check "}, lines[1])
	assert.Equal(t, map[string]any{"delta": "the cable."}, lines[2])
}

func TestQueryStream_ValidationBeforeFirstLine(t *testing.T) {
	engine := &fakeEngine{
		streamFunc: func(ctx context.Context, req *core.QueryRequest, emit answer.Emitter) error {
			return fmt.Errorf("%w: %w", core.ErrInvalidQuery, core.ErrTopKOutOfRange)
		},
	}
	s := newTestServer(t, engine, &fakeIngester{})

	w := do(t, s.Handler(), http.MethodPost, "/query/stream", `{"query":"q","topK":9}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "topK")
}

func TestQueryStream_MidStreamFailureEndsWithErrorLine(t *testing.T) {
	engine := &fakeEngine{
		streamFunc: func(ctx context.Context, req *core.QueryRequest, emit answer.Emitter) error {
			if err := emit(core.ContextsEvent(nil)); err != nil {
				return err
			}
			if err := emit(core.DeltaEvent("Try ")); err != nil {
				return err
			}
			return fmt.Errorf("%w: connection reset", answer.ErrCompletionFailed)
		},
	}
	s := newTestServer(t, engine, &fakeIngester{})

	w := do(t, s.Handler(), http.MethodPost, "/query/stream", `{"query":"q"}`)
	require.Equal(t, http.StatusOK, w.Code)

	lines := ndjsonLines(t, w.Body.Bytes())
	require.Len(t, lines, 3)
	assert.Equal(t, []any{}, lines[0]["contexts"])
	assert.Equal(t, "Try ", lines[1]["delta"])
	assert.Contains(t, lines[2]["error"], "connection reset")
}

func TestIngest(t *testing.T) {
	ing := &fakeIngester{}
	s := newTestServer(t, &fakeEngine{}, ing)

	w := do(t, s.Handler(), http.MethodPost, "/ingest",
		`{"documents":[{"id":"d1","text":"short","equipmentId":"p-a"},{"id":"d2","text":"more"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ok":true,"upserted":4,"documents":2}`, w.Body.String())

	require.Len(t, ing.docs, 2)
	assert.Equal(t, "p-a", ing.docs[0].EquipmentID)
	assert.Equal(t, ingestion.SourceAPI, ing.opts.Source)
}

func TestIngest_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed", `not json`, nil, http.StatusBadRequest},
		{"invalid document", `{"documents":[{"id":"","text":"x"}]}`, nil, http.StatusBadRequest},
		{"embedding down", `{"documents":[{"id":"d","text":"x"}]}`, fmt.Errorf("%w: 503", ingestion.ErrEmbeddingFailed), http.StatusBadGateway},
		{"store down", `{"documents":[{"id":"d","text":"x"}]}`, fmt.Errorf("%w: 500", ingestion.ErrUpsertFailed), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeEngine{}, &fakeIngester{err: tt.err})
			w := do(t, s.Handler(), http.MethodPost, "/ingest", tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

type uploadFile struct {
	name        string
	contentType string
	data        string
}

func uploadRequest(t *testing.T, path string, files ...uploadFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	ing := &fakeIngester{}
	s := newTestServer(t, &fakeEngine{}, ing)

	req := uploadRequest(t, "/ingest/upload?machineId=printer-a",
		uploadFile{"manual.txt", "text/plain", "Printer A: open tray 2 to clear jams."},
		uploadFile{"notes.md", "application/octet-stream", "# Notes\nCheck rollers."},
		uploadFile{"photo.png", "image/png", "\x89PNG"},
		uploadFile{"blank.txt", "text/plain", "   "},
	)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ok":true,"upserted":4,"documents":2}`, w.Body.String())

	require.Len(t, ing.docs, 2)
	assert.Equal(t, core.DocumentIDFromContent("manual.txt", []byte("Printer A: open tray 2 to clear jams.")), ing.docs[0].ID)
	assert.Equal(t, "printer-a", ing.docs[0].EquipmentID)
	assert.Equal(t, ingestion.SourceUpload, ing.opts.Source)
	assert.Equal(t, "printer-a", ing.opts.EquipmentID)
}

func TestUpload_Rejections(t *testing.T) {
	t.Run("no files", func(t *testing.T) {
		s := newTestServer(t, &fakeEngine{}, &fakeIngester{})
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, uploadRequest(t, "/ingest/upload"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "No files uploaded", decode(t, w)["error"])
	})

	t.Run("not multipart", func(t *testing.T) {
		s := newTestServer(t, &fakeEngine{}, &fakeIngester{})
		w := do(t, s.Handler(), http.MethodPost, "/ingest/upload", `{"documents":[]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("only unsupported", func(t *testing.T) {
		ing := &fakeIngester{}
		s := newTestServer(t, &fakeEngine{}, ing)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, uploadRequest(t, "/ingest/upload",
			uploadFile{"photo.png", "image/png", "\x89PNG"}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Unsupported or empty files", decode(t, w)["error"])
		assert.Zero(t, ing.calls)
	})

	t.Run("too many files", func(t *testing.T) {
		s := newTestServer(t, &fakeEngine{}, &fakeIngester{}, WithMaxUploadFiles(1))
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, uploadRequest(t, "/ingest/upload",
			uploadFile{"a.txt", "text/plain", "a"},
			uploadFile{"b.txt", "text/plain", "b"}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("file too large", func(t *testing.T) {
		s := newTestServer(t, &fakeEngine{}, &fakeIngester{}, WithMaxUploadBytes(8))
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, uploadRequest(t, "/ingest/upload",
			uploadFile{"a.txt", "text/plain", strings.Repeat("a", 64)}))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	m := NewMetrics("wrench_test")
	s := newTestServer(t, &fakeEngine{}, &fakeIngester{}, WithMetrics(m))

	do(t, s.Handler(), http.MethodPost, "/ingest", `{"documents":[{"id":"d1","text":"short"}]}`)
	m.RetrievalHit(2, 0)
	m.RetrievalTimeout(0)

	w := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `wrench_test_http_requests_total{method="POST",path="/ingest",status="2xx"} 1`)
	assert.Contains(t, body, `wrench_test_ingest_documents_total{source="api"} 1`)
	assert.Contains(t, body, `wrench_test_ingest_records_total{source="api"} 2`)
	assert.Contains(t, body, `wrench_test_retrieval_total{outcome="hit"} 1`)
	assert.Contains(t, body, `wrench_test_retrieval_total{outcome="timeout"} 1`)
}

func TestMetricsEndpointAbsentWithoutMetrics(t *testing.T) {
	s := newTestServer(t, &fakeEngine{}, &fakeIngester{})
	w := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(200))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(502))
	assert.Equal(t, "0", statusClass(0))
}
