package sandbox

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Program is the executable form of a plan. The single entry point is
// the ordered solve step list; steps run strictly in program order.
type Program struct {
	Solve []Step `json:"solve"`
}

// Step is one operation inside a solve program
type Step struct {
	Op string `json:"op"` // call, parse, match, return

	// call
	Tool string                 `json:"tool,omitempty"`
	Args map[string]interface{} `json:"args,omitempty"`
	Save string                 `json:"save,omitempty"`

	// parse and match read a previously saved value
	From    string `json:"from,omitempty"`
	Pattern string `json:"pattern,omitempty"`

	// return
	Value interface{} `json:"value,omitempty"`
}

// StripFences removes a surrounding Markdown code fence, if present.
// Planner models routinely wrap emitted plans in ```json blocks.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// Drop the language tag line (e.g. "json")
		first := strings.TrimSpace(trimmed[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// ParseProgram decodes plan text into a Program
func ParseProgram(text string) (*Program, error) {
	var prog Program
	if err := json.Unmarshal([]byte(text), &prog); err != nil {
		return nil, fmt.Errorf("invalid plan program: %w", err)
	}
	if len(prog.Solve) == 0 {
		return nil, ErrNoEntryPoint
	}

	for i, step := range prog.Solve {
		switch step.Op {
		case "call":
			if step.Tool == "" {
				return nil, fmt.Errorf("step %d: call without a tool name", i+1)
			}
		case "parse":
			if step.From == "" || step.Save == "" {
				return nil, fmt.Errorf("step %d: parse requires from and save", i+1)
			}
		case "match":
			if step.From == "" || step.Pattern == "" || step.Save == "" {
				return nil, fmt.Errorf("step %d: match requires from, pattern and save", i+1)
			}
		case "return":
			if step.Value == nil {
				return nil, fmt.Errorf("step %d: return without a value", i+1)
			}
		default:
			return nil, fmt.Errorf("step %d: unknown op %q", i+1, step.Op)
		}
	}

	return &prog, nil
}
