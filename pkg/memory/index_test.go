package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder returns canned vectors per text and a zero vector for
// anything unknown
type mockEmbedder struct {
	dim     int
	vectors map[string][]float32
	fail    bool
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.fail {
		return nil, errors.New("embedding backend down")
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, m.dim), nil
}

func (m *mockEmbedder) Dimension() int { return m.dim }

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dim: 4, vectors: make(map[string][]float32)}
}

func nopLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func writeSession(t *testing.T, store *SessionStore, sessionID, question, answer string) {
	t.Helper()
	require.NoError(t, store.Add(Item{
		Timestamp: time.Now(),
		Type:      TypeRunMetadata,
		Text:      "run started",
		SessionID: sessionID,
		UserQuery: question,
	}))
	if answer != "" {
		require.NoError(t, store.Add(Item{
			Timestamp: time.Now(),
			Type:      TypeFinalAnswer,
			Text:      answer,
			SessionID: sessionID,
		}))
	}
}

func newTestIndex(t *testing.T, embedder *mockEmbedder) (*Index, *SessionStore, string) {
	t.Helper()
	root := t.TempDir()
	sessions := NewSessionStore(filepath.Join(root, "memory"), nopLogger())
	idx, err := NewIndex(IndexConfig{
		IndexDir: filepath.Join(root, "index"),
		Sessions: sessions,
		Embedder: embedder,
		Logger:   nopLogger(),
	})
	require.NoError(t, err)
	return idx, sessions, root
}

func TestNewSessionID(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	id := NewSessionID(now)
	assert.Regexp(t, `^2026/08/25/session-\d+-.{6}$`, id)
	assert.NotEqual(t, id, NewSessionID(now))
}

func TestSessionStore_AppendOrderPreserved(t *testing.T) {
	store := NewSessionStore(t.TempDir(), nopLogger())
	id := NewSessionID(time.Now())

	ok := true
	items := []Item{
		{Timestamp: time.Now(), Type: TypeRunMetadata, Text: "start", SessionID: id, UserQuery: "q"},
		{Timestamp: time.Now(), Type: TypeToolOutput, Text: "out", SessionID: id, ToolName: "add", Success: &ok},
		{Timestamp: time.Now(), Type: TypeFinalAnswer, Text: "42", SessionID: id},
	}
	for _, item := range items {
		require.NoError(t, store.Add(item))
	}

	got, err := store.Items(id)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range items {
		assert.Equal(t, items[i].Type, got[i].Type)
		assert.Equal(t, items[i].Text, got[i].Text)
	}
	require.NotNil(t, got[1].Success)
	assert.True(t, *got[1].Success)
	assert.Equal(t, "add", got[1].ToolName)
}

func TestEnsureFresh_IndexesCompletedSessionsOnly(t *testing.T) {
	embedder := newMockEmbedder()
	idx, sessions, _ := newTestIndex(t, embedder)

	writeSession(t, sessions, "2026/08/25/session-1-aaaaaa", "what is 5!", "120")
	writeSession(t, sessions, "2026/08/25/session-2-bbbbbb", "still running", "")

	require.NoError(t, idx.EnsureFresh(context.Background()))
	assert.Equal(t, 1, idx.store.size())
	assert.Equal(t, "what is 5!", idx.store.entries[0].Question)
	assert.Equal(t, "120", idx.store.entries[0].Answer)

	// A second refresh with nothing new must not re-embed
	idx.MarkDirty()
	before := embedder.calls
	require.NoError(t, idx.EnsureFresh(context.Background()))
	assert.Equal(t, before, embedder.calls)
	assert.Equal(t, 1, idx.store.size())
}

func TestEnsureFresh_PersistsAcrossReopen(t *testing.T) {
	embedder := newMockEmbedder()
	idx, sessions, root := newTestIndex(t, embedder)

	writeSession(t, sessions, "2026/08/25/session-1-aaaaaa", "q1", "a1")
	require.NoError(t, idx.EnsureFresh(context.Background()))

	reopened, err := NewIndex(IndexConfig{
		IndexDir: filepath.Join(root, "index"),
		Sessions: sessions,
		Embedder: embedder,
		Logger:   nopLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.store.size())
	assert.Equal(t, "q1", reopened.store.entries[0].Question)
}

func TestNewIndex_RebuildsOnCorruptMetadata(t *testing.T) {
	embedder := newMockEmbedder()
	idx, sessions, root := newTestIndex(t, embedder)

	writeSession(t, sessions, "2026/08/25/session-1-aaaaaa", "q1", "a1")
	require.NoError(t, idx.EnsureFresh(context.Background()))

	indexDir := filepath.Join(root, "index")
	require.NoError(t, os.WriteFile(filepath.Join(indexDir, metadataFileName), []byte("{broken"), 0o644))

	reopened, err := NewIndex(IndexConfig{
		IndexDir: filepath.Join(root, "index"),
		Sessions: sessions,
		Embedder: embedder,
		Logger:   nopLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.store.size(), "corrupt sidecar wipes the index")

	// The refresh rebuilds from session history
	require.NoError(t, reopened.EnsureFresh(context.Background()))
	assert.Equal(t, 1, reopened.store.size())
}

func TestSearch_RanksBySquaredL2(t *testing.T) {
	embedder := newMockEmbedder()
	embedder.vectors["User Question: near\nFinal Answer: a-near"] = []float32{1, 0, 0, 0}
	embedder.vectors["User Question: far\nFinal Answer: a-far"] = []float32{9, 0, 0, 0}
	embedder.vectors["query"] = []float32{2, 0, 0, 0}

	idx, sessions, _ := newTestIndex(t, embedder)
	writeSession(t, sessions, "2026/08/25/session-1-aaaaaa", "near", "a-near")
	writeSession(t, sessions, "2026/08/25/session-2-bbbbbb", "far", "a-far")
	require.NoError(t, idx.EnsureFresh(context.Background()))

	matches, err := idx.Search(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].Entry.Question)
	assert.InDelta(t, 1.0, matches[0].Distance, 1e-6)
	assert.Equal(t, "far", matches[1].Entry.Question)
	assert.InDelta(t, 49.0, matches[1].Distance, 1e-6)
}

func TestSelectForInjection_ThresholdBoundary(t *testing.T) {
	embedder := newMockEmbedder()
	// Distance to the query is exactly the threshold: excluded
	embedder.vectors["User Question: boundary\nFinal Answer: a"] = []float32{0, 0, 0, 0}
	embedder.vectors["query"] = []float32{2, 0, 0, 0}

	idx, sessions, _ := newTestIndex(t, embedder)
	idx.threshold = 4.0
	writeSession(t, sessions, "2026/08/25/session-1-aaaaaa", "boundary", "a")
	require.NoError(t, idx.EnsureFresh(context.Background()))

	assert.Equal(t, "query", idx.SelectForInjection(context.Background(), "query"))

	// Just inside the threshold: injected
	idx.threshold = 4.1
	out := idx.SelectForInjection(context.Background(), "query")
	assert.Contains(t, out, "Related past work:")
	assert.Contains(t, out, "Q: boundary")
	assert.Contains(t, out, "Current task: query")
}

func TestSelectForInjection_BackendFailureKeepsQuery(t *testing.T) {
	embedder := newMockEmbedder()
	idx, _, _ := newTestIndex(t, embedder)

	embedder.fail = true
	assert.Equal(t, "the query", idx.SelectForInjection(context.Background(), "the query"))
}
