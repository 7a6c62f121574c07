// Package agent drives the perceive, plan, execute, evaluate cycle
// that turns a user task into a final answer.
package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cortexr/agent/pkg/memory"
)

// SessionContext tracks one task run: its identity, subtask progress
// and the write-once final answer.
type SessionContext struct {
	SessionID string
	RunID     string
	Query     string
	StartedAt time.Time

	store  *memory.SessionStore
	logger zerolog.Logger

	mu          sync.Mutex
	subtasks    []Subtask
	finalAnswer string
	answered    bool
}

// Subtask is one tracked unit of work inside a run
type Subtask struct {
	ID          int
	Description string
	Status      string // pending, done, failed
}

// NewSessionContext opens a session and records the run start in the
// session history.
func NewSessionContext(store *memory.SessionStore, query string, logger zerolog.Logger) (*SessionContext, error) {
	now := time.Now()
	sc := &SessionContext{
		SessionID: memory.NewSessionID(now),
		RunID:     uuid.NewString(),
		Query:     query,
		StartedAt: now,
		store:     store,
		logger:    logger,
	}

	err := store.Add(memory.Item{
		Timestamp: now,
		Type:      memory.TypeRunMetadata,
		Text:      "run started",
		SessionID: sc.SessionID,
		UserQuery: query,
		Metadata:  map[string]interface{}{"run_id": sc.RunID},
	})
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	logger.Info().Str("session", sc.SessionID).Str("run", sc.RunID).Msg("Session opened")
	return sc, nil
}

// LogSubtask registers a new subtask and returns its id
func (sc *SessionContext) LogSubtask(description string) int {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	id := len(sc.subtasks) + 1
	sc.subtasks = append(sc.subtasks, Subtask{ID: id, Description: description, Status: "pending"})
	return id
}

// UpdateSubtask moves a subtask to a new status
func (sc *SessionContext) UpdateSubtask(id int, status string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	for i := range sc.subtasks {
		if sc.subtasks[i].ID == id {
			sc.subtasks[i].Status = status
			return
		}
	}
}

// Subtasks returns a snapshot of tracked subtasks
func (sc *SessionContext) Subtasks() []Subtask {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	out := make([]Subtask, len(sc.subtasks))
	copy(out, sc.subtasks)
	return out
}

// RecordToolOutput appends one tool invocation to the session history
func (sc *SessionContext) RecordToolOutput(tool string, args map[string]interface{}, result string, success bool) {
	if err := sc.store.AddToolOutput(sc.SessionID, tool, args, result, success); err != nil {
		sc.logger.Warn().Err(err).Msg("Could not record tool output")
	}
}

// SetFinalAnswer stores the final answer. The first write wins; later
// writes are ignored.
func (sc *SessionContext) SetFinalAnswer(answer string) {
	sc.mu.Lock()
	if sc.answered {
		sc.mu.Unlock()
		return
	}
	sc.answered = true
	sc.finalAnswer = answer
	sc.mu.Unlock()

	err := sc.store.Add(memory.Item{
		Timestamp: time.Now(),
		Type:      memory.TypeFinalAnswer,
		Text:      answer,
		SessionID: sc.SessionID,
	})
	if err != nil {
		sc.logger.Warn().Err(err).Msg("Could not record final answer")
	}
}

// FinalAnswer returns the stored answer, if any
func (sc *SessionContext) FinalAnswer() (string, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.finalAnswer, sc.answered
}

// History returns the session's recorded items
func (sc *SessionContext) History() ([]memory.Item, error) {
	return sc.store.Items(sc.SessionID)
}
