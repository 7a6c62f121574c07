package agent

import (
	"context"

	"github.com/cortexr/agent/pkg/dispatch"
)

// recordingBackend wraps the tool catalogue so every call a plan makes
// lands in the session log. The recorded history is what seeds a
// memory-fallback replan.
type recordingBackend struct {
	catalogue ToolCatalogue
	session   *SessionContext
}

func (b *recordingBackend) Tool(name string) (dispatch.ToolDescriptor, bool) {
	return b.catalogue.Tool(name)
}

func (b *recordingBackend) CallTool(ctx context.Context, name string, args map[string]interface{}) (dispatch.Result, error) {
	result, err := b.catalogue.CallTool(ctx, name, args)
	if err != nil {
		b.session.RecordToolOutput(name, args, err.Error(), false)
		return result, err
	}
	b.session.RecordToolOutput(name, args, result.Text(), result.Success)
	return result, nil
}
