// Package planner turns a user task into structured perception and an
// executable solve plan by prompting a configured language model.
package planner

import (
	"context"
	"fmt"

	"github.com/cortexr/agent/pkg/dispatch"
)

// Perception is the model's structured reading of a task
type Perception struct {
	Intent          string   `json:"intent"`
	Entities        []string `json:"entities"`
	ToolHint        string   `json:"tool_hint"`
	SelectedServers []string `json:"selected_servers"`
}

// PerceiveRequest asks for a perception of a task against the known
// server catalogue
type PerceiveRequest struct {
	Query   string
	Servers []dispatch.ServerInfo
}

// PlanRequest asks for a solve plan over a tool subset
type PlanRequest struct {
	Query           string
	Tools           []dispatch.ToolDescriptor
	PlanningMode    string
	ExplorationMode string // sequential or parallel, exploratory mode only
	MaxToolCalls    int
}

// Planner produces perceptions and plans
type Planner interface {
	Perceive(ctx context.Context, req PerceiveRequest) (Perception, error)
	GeneratePlan(ctx context.Context, req PlanRequest) (string, error)
}

// ParseError reports model output that could not be decoded
type ParseError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s output unparseable: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
