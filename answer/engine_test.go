package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/wrench/ai"
	"github.com/poiesic/wrench/ai/mock"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/sanitize"
	"github.com/poiesic/wrench/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct {
	contexts    []string
	calls       int
	topK        int
	equipmentID string
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, topK int, equipmentID string) []string {
	s.calls++
	s.topK = topK
	s.equipmentID = equipmentID
	return s.contexts
}

var testContexts = []string{
	"Printer A: open tray 2 and remove the jammed sheet.",
	"Copier B: replace the toner cartridge.",
}

func collect(t *testing.T, e *Engine, req *core.QueryRequest) ([]core.StreamEvent, error) {
	t.Helper()
	var events []core.StreamEvent
	err := e.Stream(context.Background(), req, func(ev core.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, mock.NewMockCompleter())
	assert.ErrorIs(t, err, ErrRetrieverRequired)

	_, err = NewEngine(&stubRetriever{}, nil)
	assert.ErrorIs(t, err, ErrCompleterRequired)
}

func TestEngine_AnswerGrounded(t *testing.T) {
	retriever := &stubRetriever{contexts: testContexts}
	completer := mock.NewMockCompleter("**Open** tray 2 ", " 🙂 and pull the sheet.")

	e, err := NewEngine(retriever, completer)
	require.NoError(t, err)

	ans, err := e.Answer(context.Background(), &core.QueryRequest{Query: "paper jam", EquipmentName: "Printer A"})
	require.NoError(t, err)

	assert.Equal(t, "Open tray 2 and pull the sheet.", ans.Answer)
	assert.Equal(t, []string{testContexts[0]}, ans.Contexts)
	assert.Equal(t, core.DefaultTopK, retriever.topK)
	assert.Contains(t, completer.LastPrompt(), testContexts[0])
	assert.NotContains(t, completer.LastPrompt(), testContexts[1])
}

func TestEngine_AnswerUngroundedWhenNothingSelected(t *testing.T) {
	retriever := &stubRetriever{contexts: testContexts}
	completer := mock.NewMockCompleter("What's going on with it?")

	e, err := NewEngine(retriever, completer)
	require.NoError(t, err)

	ans, err := e.Answer(context.Background(), &core.QueryRequest{Query: "help", TopK: 2, EquipmentName: "Scanner C"})
	require.NoError(t, err)
	assert.Empty(t, ans.Contexts)
	assert.NotNil(t, ans.Contexts)
	assert.Contains(t, completer.LastPrompt(), "don't have specific documentation")
}

func TestEngine_ValidationNeverRetrieves(t *testing.T) {
	retriever := &stubRetriever{contexts: testContexts}
	completer := mock.NewMockCompleter("x")

	e, err := NewEngine(retriever, completer)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *core.QueryRequest
	}{
		{"nil request", nil},
		{"blank query", &core.QueryRequest{Query: "   "}},
		{"topK too large", &core.QueryRequest{Query: "q", TopK: 9}},
		{"topK negative", &core.QueryRequest{Query: "q", TopK: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Answer(context.Background(), tt.req)
			assert.True(t, core.IsValidationError(err), "got %v", err)

			events, err := collect(t, e, tt.req)
			assert.True(t, core.IsValidationError(err), "got %v", err)
			assert.Empty(t, events)
		})
	}
	assert.Zero(t, retriever.calls)
	assert.Zero(t, completer.CallCount())
}

func TestEngine_AnswerCompletionFailure(t *testing.T) {
	completer := mock.NewMockCompleter()
	providerErr := errors.New("503 from provider")
	completer.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", providerErr
	}

	e, err := NewEngine(&stubRetriever{}, completer)
	require.NoError(t, err)

	_, err = e.Answer(context.Background(), &core.QueryRequest{Query: "q"})
	assert.ErrorIs(t, err, ErrCompletionFailed)
	assert.ErrorIs(t, err, providerErr)
}

func TestEngine_StreamOrder(t *testing.T) {
	tokens := []string{"  Go", "ahead ", " ", "and", " **", "reseat", "** the ", "tray.  ", "\n"}
	e, err := NewEngine(&stubRetriever{contexts: testContexts}, mock.NewMockCompleter(tokens...))
	require.NoError(t, err)

	events, err := collect(t, e, &core.QueryRequest{Query: "jam"})
	require.NoError(t, err)
	require.NotEmpty(t, events)

	assert.Equal(t, core.EventContexts, events[0].Kind)
	assert.Equal(t, testContexts, events[0].Contexts)

	var streamed strings.Builder
	for _, ev := range events[1:] {
		require.Equal(t, core.EventDelta, ev.Kind)
		assert.NotEmpty(t, ev.Delta)
		streamed.WriteString(ev.Delta)
	}
	assert.Equal(t, sanitize.Text(strings.Join(tokens, "")), streamed.String())
}

func TestEngine_StreamMatchesBuffered(t *testing.T) {
	tokens := []string{"Check ", "the  ", "fuser", " ⚠ ", "first."}
	completer := mock.NewMockCompleter(tokens...)

	e, err := NewEngine(&stubRetriever{}, completer)
	require.NoError(t, err)

	req := &core.QueryRequest{Query: "q"}
	ans, err := e.Answer(context.Background(), req)
	require.NoError(t, err)

	events, err := collect(t, e, req)
	require.NoError(t, err)

	var streamed strings.Builder
	for _, ev := range events[1:] {
		streamed.WriteString(ev.Delta)
	}
	assert.Equal(t, ans.Answer, streamed.String())
}

func TestEngine_StreamFailureAfterContexts(t *testing.T) {
	completer := mock.NewMockCompleter()
	completer.CompleteStreamFunc = func(ctx context.Context, prompt string, onToken ai.TokenFunc) error {
		if err := onToken(ctx, "Try "); err != nil {
			return err
		}
		return errors.New("connection reset")
	}

	e, err := NewEngine(&stubRetriever{contexts: testContexts}, completer)
	require.NoError(t, err)

	events, err := collect(t, e, &core.QueryRequest{Query: "q"})
	assert.ErrorIs(t, err, ErrCompletionFailed)
	require.Len(t, events, 2)
	assert.Equal(t, core.EventContexts, events[0].Kind)
	assert.Equal(t, "Try", events[1].Delta)
}

func TestEngine_StreamEmitErrorStops(t *testing.T) {
	e, err := NewEngine(&stubRetriever{}, mock.NewMockCompleter("a", "b", "c"))
	require.NoError(t, err)

	writeErr := errors.New("client gone")
	calls := 0
	err = e.Stream(context.Background(), &core.QueryRequest{Query: "q"}, func(ev core.StreamEvent) error {
		calls++
		if ev.Kind == core.EventDelta {
			return writeErr
		}
		return nil
	})
	assert.ErrorIs(t, err, writeErr)
	assert.Equal(t, 2, calls)
}

func TestEngine_StreamCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	completer := mock.NewMockCompleter()
	completer.CompleteStreamFunc = func(ctx context.Context, prompt string, onToken ai.TokenFunc) error {
		cancel()
		return ctx.Err()
	}

	e, err := NewEngine(&stubRetriever{}, completer)
	require.NoError(t, err)

	err = e.Stream(ctx, &core.QueryRequest{Query: "q"}, func(core.StreamEvent) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrCompletionFailed)
}

func TestEngine_ResolvesEquipmentName(t *testing.T) {
	_, registry, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer backend.Close()

	printer, err := registry.AddEquipment(context.Background(), &core.Equipment{Name: "Printer A"})
	require.NoError(t, err)

	retriever := &stubRetriever{contexts: testContexts}
	completer := mock.NewMockCompleter("ok")
	e, err := NewEngine(retriever, completer, WithEquipment(registry))
	require.NoError(t, err)

	ans, err := e.Answer(context.Background(), &core.QueryRequest{Query: "jam", EquipmentID: printer.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{testContexts[0]}, ans.Contexts)
	assert.Equal(t, printer.ID, retriever.equipmentID)
	assert.Contains(t, completer.LastPrompt(), `"Printer A"`)

	// Unknown ids degrade to no selection.
	ans, err = e.Answer(context.Background(), &core.QueryRequest{Query: "jam", EquipmentID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, testContexts, ans.Contexts)
}
