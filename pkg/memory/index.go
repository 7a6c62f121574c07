package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Default retrieval settings
const (
	DefaultTopK              = 2
	DefaultDistanceThreshold = 300.0
)

// Match is one retrieval hit with its squared L2 distance to the query
type Match struct {
	Entry    Entry
	Distance float64
}

// Index is an append-only vector index over completed sessions. Each
// session contributes at most one vector: the embedded question/answer
// pair of its final run.
type Index struct {
	store    *vectorStore
	sessions *SessionStore
	embedder EmbeddingProvider
	logger   zerolog.Logger

	topK      int
	threshold float64

	mu    sync.Mutex
	dirty bool
}

// IndexConfig holds index construction parameters
type IndexConfig struct {
	IndexDir          string
	Sessions          *SessionStore
	Embedder          EmbeddingProvider
	TopK              int
	DistanceThreshold float64
	Logger            zerolog.Logger
}

// NewIndex creates the index and loads any persisted state
func NewIndex(cfg IndexConfig) (*Index, error) {
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	threshold := cfg.DistanceThreshold
	if threshold <= 0 {
		threshold = DefaultDistanceThreshold
	}

	idx := &Index{
		store:     newVectorStore(cfg.IndexDir, cfg.Embedder.Dimension(), cfg.Logger),
		sessions:  cfg.Sessions,
		embedder:  cfg.Embedder,
		logger:    cfg.Logger,
		topK:      topK,
		threshold: threshold,
		dirty:     true,
	}
	if err := idx.store.load(); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return idx, nil
}

// MarkDirty flags the index for a refresh on the next EnsureFresh
func (idx *Index) MarkDirty() {
	idx.mu.Lock()
	idx.dirty = true
	idx.mu.Unlock()
}

// EnsureFresh scans session history and appends vectors for any
// completed session not yet indexed. Sessions without a final answer
// are skipped; they are picked up once they complete.
func (idx *Index) EnsureFresh(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.dirty {
		return nil
	}

	files, err := idx.sessions.SessionFiles()
	if err != nil {
		return fmt.Errorf("scan session history: %w", err)
	}

	indexed := idx.store.indexedSources()
	added := 0
	for _, file := range files {
		if indexed[file] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		items, err := ReadSessionFile(file)
		if err != nil {
			idx.logger.Warn().Err(err).Str("file", file).Msg("Skipping unreadable session file")
			continue
		}

		pair, ok := extractPair(items)
		if !ok {
			continue
		}

		vector, err := idx.embedder.Embed(ctx, pair.embeddingText())
		if err != nil {
			return fmt.Errorf("embed session %s: %w", pair.sessionID, err)
		}
		entry := Entry{
			SessionID: pair.sessionID,
			Source:    file,
			Question:  pair.question,
			Answer:    pair.answer,
			IndexedAt: time.Now().Unix(),
		}
		if err := idx.store.append(vector, entry); err != nil {
			return fmt.Errorf("index session %s: %w", pair.sessionID, err)
		}
		added++
	}

	if added > 0 {
		idx.logger.Info().Int("added", added).Int("total", idx.store.size()).Msg("Memory index refreshed")
	}
	idx.dirty = false
	return nil
}

type sessionPair struct {
	sessionID string
	question  string
	answer    string
}

func (p sessionPair) embeddingText() string {
	return fmt.Sprintf("User Question: %s\nFinal Answer: %s", p.question, p.answer)
}

// extractPair pulls the question and final answer out of a session's
// history. Both must be present for the session to be indexable.
func extractPair(items []Item) (sessionPair, bool) {
	var pair sessionPair
	for _, item := range items {
		switch item.Type {
		case TypeRunMetadata:
			if pair.question == "" && item.UserQuery != "" {
				pair.question = item.UserQuery
				pair.sessionID = item.SessionID
			}
		case TypeFinalAnswer:
			pair.answer = item.Text
			if pair.sessionID == "" {
				pair.sessionID = item.SessionID
			}
		}
	}
	return pair, pair.question != "" && pair.answer != ""
}

// Search returns the k nearest indexed entries by squared L2 distance
func (idx *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	vector, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	matches := make([]Match, 0, idx.store.size())
	for i := 0; i < idx.store.size(); i++ {
		matches = append(matches, Match{
			Entry:    idx.store.entries[i],
			Distance: squaredL2(vector, idx.store.vectorAt(i)),
		})
	}
	sort.Slice(matches, func(a, b int) bool { return matches[a].Distance < matches[b].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// SelectForInjection retrieves past sessions related to the query and
// prepends them as a labeled transcript. Entries at or past the
// distance threshold are excluded. Retrieval trouble or an empty
// survivor set returns the query unchanged.
func (idx *Index) SelectForInjection(ctx context.Context, query string) string {
	matches, err := idx.Search(ctx, query, idx.topK)
	if err != nil {
		idx.logger.Warn().Err(err).Msg("Memory retrieval unavailable, continuing without it")
		return query
	}

	var kept []Match
	for _, m := range matches {
		if m.Distance >= idx.threshold {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		return query
	}

	var b strings.Builder
	b.WriteString("Related past work:\n")
	for _, m := range kept {
		fmt.Fprintf(&b, "- Q: %s\n  A: %s\n", m.Entry.Question, m.Entry.Answer)
	}
	b.WriteString("\nCurrent task: ")
	b.WriteString(query)
	return b.String()
}

func squaredL2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
