package sandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/cortexr/agent/pkg/dispatch"
)

// ToolBackend is the tool-call surface exposed to running plans.
// *dispatch.Dispatcher satisfies it.
type ToolBackend interface {
	CallTool(ctx context.Context, name string, args map[string]interface{}) (dispatch.Result, error)
	Tool(name string) (dispatch.ToolDescriptor, bool)
}

// toolProxy is the only capability a plan has. It counts calls against
// the plan budget and validates arguments against the tool's schema.
type toolProxy struct {
	backend ToolBackend
	max     int
	count   int
	logger  zerolog.Logger
}

func (p *toolProxy) call(ctx context.Context, name string, args map[string]interface{}) (dispatch.Result, error) {
	p.count++
	if p.count > p.max {
		return dispatch.Result{}, fmt.Errorf("%w (%d) in solve plan", ErrCallBudget, p.max)
	}

	if desc, ok := p.backend.Tool(name); ok && len(desc.InputSchema) > 0 {
		if err := validateArgs(desc, args); err != nil {
			return dispatch.Result{}, err
		}
	}

	result, err := p.backend.CallTool(ctx, name, args)
	if err != nil {
		return dispatch.Result{}, err
	}

	preview := result.Text()
	if len(preview) > 120 {
		preview = preview[:120]
	}
	p.logger.Debug().
		Str("tool", name).
		Str("preview", preview).
		Msg("Tool returned")

	return result, nil
}

func validateArgs(desc dispatch.ToolDescriptor, args map[string]interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}

	schemaLoader := gojsonschema.NewBytesLoader(desc.InputSchema)
	docLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema check for %s: %w", desc.Name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid arguments for %s: %s", desc.Name, strings.Join(msgs, "; "))
	}
	return nil
}
