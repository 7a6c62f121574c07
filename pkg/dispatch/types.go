package dispatch

import "encoding/json"

// ServerDescriptor describes one configured tool server.
// Descriptors are loaded once at startup and never mutated.
type ServerDescriptor struct {
	ID          string
	Command     string
	Args        []string
	WorkingDir  string
	Description string
}

// ToolDescriptor describes one discovered tool and its owning server.
// Descriptors are created during discovery and read-only afterward.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	ServerID    string
}

// Result is the raw payload of one tool invocation
type Result struct {
	Content []string `json:"content"`
	Success bool     `json:"success"`
}

// Text joins the result's content items
func (r Result) Text() string {
	out := ""
	for _, c := range r.Content {
		if c == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += c
	}
	return out
}

// ServerInfo is the short server summary handed to the planner
type ServerInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}
