// Package memory persists per-session run history and maintains an
// append-only vector index over completed question/answer pairs, used
// to enrich new tasks with related past work.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Item types stored in session history
const (
	TypeRunMetadata = "run_metadata"
	TypeToolOutput  = "tool_output"
	TypeFinalAnswer = "final_answer"
)

// Item is one record in a session's history file
type Item struct {
	Timestamp  time.Time              `json:"timestamp"`
	Type       string                 `json:"type"`
	Text       string                 `json:"text"`
	SessionID  string                 `json:"session_id"`
	Tags       []string               `json:"tags,omitempty"`
	ToolName   string                 `json:"tool_name,omitempty"`
	ToolArgs   map[string]interface{} `json:"tool_args,omitempty"`
	ToolResult string                 `json:"tool_result,omitempty"`
	Success    *bool                  `json:"success,omitempty"`
	UserQuery  string                 `json:"user_query,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewSessionID mints a date-partitioned session identifier
func NewSessionID(now time.Time) string {
	suffix, err := gonanoid.New(6)
	if err != nil {
		suffix = fmt.Sprintf("%06d", now.Nanosecond()%1000000)
	}
	return fmt.Sprintf("%s/session-%d-%s", now.Format("2006/01/02"), now.Unix(), suffix)
}

// SessionStore appends items to per-session JSON files under a
// date-partitioned directory tree.
type SessionStore struct {
	baseDir string
	logger  zerolog.Logger
	mu      sync.Mutex
}

// NewSessionStore creates a session store rooted at baseDir
func NewSessionStore(baseDir string, logger zerolog.Logger) *SessionStore {
	return &SessionStore{baseDir: baseDir, logger: logger}
}

// path maps a session id to its history file
func (s *SessionStore) path(sessionID string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(sessionID)+".json")
}

// Add appends an item to the session's history file. The full item
// list is rewritten so the file is always a valid JSON array.
func (s *SessionStore) Add(item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(item.SessionID)
	if err != nil {
		return err
	}
	items = append(items, item)

	path := s.path(item.SessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session history: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write session history: %w", err)
	}
	return nil
}

// AddToolOutput records one tool invocation in the session history
func (s *SessionStore) AddToolOutput(sessionID, tool string, args map[string]interface{}, result string, success bool) error {
	return s.Add(Item{
		Timestamp:  time.Now(),
		Type:       TypeToolOutput,
		Text:       result,
		SessionID:  sessionID,
		ToolName:   tool,
		ToolArgs:   args,
		ToolResult: result,
		Success:    &success,
	})
}

// Items returns the session's history in append order
func (s *SessionStore) Items(sessionID string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(sessionID)
}

func (s *SessionStore) load(sessionID string) ([]Item, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session history: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode session history: %w", err)
	}
	return items, nil
}

// SessionFiles lists every session history file under the store,
// sorted by path so date partitions come out in chronological order.
func (s *SessionStore) SessionFiles() ([]string, error) {
	var files []string
	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadSessionFile decodes a session history file by path
func ReadSessionFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return items, nil
}
