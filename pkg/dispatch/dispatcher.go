// Package dispatch discovers tools across configured external server
// processes and routes named tool calls to their owning server. Every
// call runs on a fresh connection that is torn down before returning,
// so a crashing tool cannot corrupt dispatcher state for later calls.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cortexr/agent/pkg/mcp"
)

// connection is the subset of the MCP client the dispatcher uses
type connection interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallResult, error)
	Close() error
}

// dialFunc opens a connection to one server. Swappable in tests.
type dialFunc func(ctx context.Context, spec mcp.ServerSpec) (connection, error)

func dialMCP(ctx context.Context, spec mcp.ServerSpec) (connection, error) {
	return mcp.Dial(ctx, spec)
}

// Dispatcher owns the process-wide tool map. The map is built once
// during Initialize and treated as read-only afterward; sessions share
// a single Dispatcher without further synchronization.
type Dispatcher struct {
	servers []ServerDescriptor
	byID    map[string]ServerDescriptor

	tools    map[string]ToolDescriptor
	order    []string            // tool names in registration order
	byServer map[string][]string // server id -> tool names

	dial   dialFunc
	logger zerolog.Logger
}

// New creates a dispatcher over the given server descriptors.
// At least one server must be configured.
func New(servers []ServerDescriptor, logger zerolog.Logger) (*Dispatcher, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("no tool servers configured")
	}

	byID := make(map[string]ServerDescriptor, len(servers))
	for _, srv := range servers {
		byID[srv.ID] = srv
	}

	return &Dispatcher{
		servers:  servers,
		byID:     byID,
		tools:    make(map[string]ToolDescriptor),
		byServer: make(map[string][]string),
		dial:     dialMCP,
		logger:   logger,
	}, nil
}

// Initialize discovers tools from every configured server. A discovery
// failure for one server is logged and skipped; the others still start.
func (d *Dispatcher) Initialize(ctx context.Context) error {
	for _, srv := range d.servers {
		tools, err := d.discover(ctx, srv)
		if err != nil {
			d.logger.Warn().
				Err(err).
				Str("server", srv.ID).
				Msg("Tool discovery failed, skipping server")
			continue
		}

		for _, tool := range tools {
			d.register(srv, tool)
		}

		d.logger.Info().
			Str("server", srv.ID).
			Int("tools", len(tools)).
			Msg("Registered tool server")
	}

	if len(d.tools) == 0 {
		d.logger.Warn().Msg("No tools discovered from any server")
	}
	return nil
}

func (d *Dispatcher) discover(ctx context.Context, srv ServerDescriptor) ([]mcp.Tool, error) {
	conn, err := d.dial(ctx, specFor(srv))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return conn.ListTools(ctx)
}

func (d *Dispatcher) register(srv ServerDescriptor, tool mcp.Tool) {
	if prev, exists := d.tools[tool.Name]; exists {
		// Last registered wins
		d.logger.Warn().
			Str("tool", tool.Name).
			Str("previous_server", prev.ServerID).
			Str("server", srv.ID).
			Msg("Duplicate tool name, later registration wins")
	} else {
		d.order = append(d.order, tool.Name)
	}

	d.tools[tool.Name] = ToolDescriptor{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: tool.InputSchema,
		ServerID:    srv.ID,
	}
	d.byServer[srv.ID] = append(d.byServer[srv.ID], tool.Name)
}

// CallTool routes a call to the tool's owning server over a fresh,
// call-scoped connection. No retries; retry policy belongs to callers.
func (d *Dispatcher) CallTool(ctx context.Context, name string, args map[string]interface{}) (Result, error) {
	desc, ok := d.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	srv, ok := d.byID[desc.ServerID]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	conn, err := d.dial(ctx, specFor(srv))
	if err != nil {
		return Result{}, &InvocationError{Tool: name, ServerID: srv.ID, Err: err}
	}
	defer conn.Close()

	raw, err := conn.CallTool(ctx, name, args)
	if err != nil {
		return Result{}, &InvocationError{Tool: name, ServerID: srv.ID, Err: err}
	}

	result := Result{Success: !raw.IsError}
	for _, c := range raw.Content {
		result.Content = append(result.Content, c.Text)
	}
	return result, nil
}

// Tool returns the descriptor for one tool name
func (d *Dispatcher) Tool(name string) (ToolDescriptor, bool) {
	desc, ok := d.tools[name]
	return desc, ok
}

// Tools returns all discovered tools in registration order
func (d *Dispatcher) Tools() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.tools[name])
	}
	return out
}

// ToolsForServers returns the tools owned by the given server ids.
// Unknown ids are ignored; an empty selection returns nil.
func (d *Dispatcher) ToolsForServers(ids []string) []ToolDescriptor {
	var out []ToolDescriptor
	for _, id := range ids {
		for _, name := range d.byServer[id] {
			desc := d.tools[name]
			if desc.ServerID != id {
				continue // name was taken over by a later server
			}
			out = append(out, desc)
		}
	}
	return out
}

// Servers returns planner-facing summaries of the configured servers
func (d *Dispatcher) Servers() []ServerInfo {
	out := make([]ServerInfo, 0, len(d.servers))
	for _, srv := range d.servers {
		out = append(out, ServerInfo{ID: srv.ID, Description: srv.Description})
	}
	return out
}

// FilterByHint keeps tools whose name occurs in the hint string.
// An empty hint keeps everything.
func FilterByHint(tools []ToolDescriptor, hint string) []ToolDescriptor {
	if hint == "" {
		return tools
	}
	var out []ToolDescriptor
	for _, tool := range tools {
		if strings.Contains(hint, tool.Name) {
			out = append(out, tool)
		}
	}
	return out
}

// Summarize renders a tool list for inclusion in a planner prompt
func Summarize(tools []ToolDescriptor) string {
	if len(tools) == 0 {
		return "No tools available."
	}
	var b strings.Builder
	for i, tool := range tools {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", tool.Name, tool.Description)
	}
	return b.String()
}

func specFor(srv ServerDescriptor) mcp.ServerSpec {
	return mcp.ServerSpec{
		Command:    srv.Command,
		Args:       srv.Args,
		WorkingDir: srv.WorkingDir,
	}
}
