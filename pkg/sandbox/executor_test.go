package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexr/agent/pkg/dispatch"
)

// stubBackend answers tool calls from a canned handler map
type stubBackend struct {
	tools    map[string]dispatch.ToolDescriptor
	handlers map[string]func(args map[string]interface{}) (string, error)
	calls    []string
}

func (s *stubBackend) CallTool(ctx context.Context, name string, args map[string]interface{}) (dispatch.Result, error) {
	s.calls = append(s.calls, name)
	h, ok := s.handlers[name]
	if !ok {
		return dispatch.Result{}, fmt.Errorf("call %s: %w", name, dispatch.ErrToolNotFound)
	}
	text, err := h(args)
	if err != nil {
		return dispatch.Result{}, err
	}
	return dispatch.Result{Content: []string{text}, Success: true}, nil
}

func (s *stubBackend) Tool(name string) (dispatch.ToolDescriptor, bool) {
	desc, ok := s.tools[name]
	return desc, ok
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		tools:    make(map[string]dispatch.ToolDescriptor),
		handlers: make(map[string]func(args map[string]interface{}) (string, error)),
	}
}

func (s *stubBackend) register(name string, schema string, h func(args map[string]interface{}) (string, error)) {
	s.tools[name] = dispatch.ToolDescriptor{
		Name:        name,
		InputSchema: json.RawMessage(schema),
		ServerID:    "test",
	}
	s.handlers[name] = h
}

func testExecutor(maxCalls int) *Executor {
	return New(Config{
		MaxToolCalls: maxCalls,
		Logger:       zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
}

func TestRun_PassesMarkerTextThrough(t *testing.T) {
	e := testExecutor(0)

	for _, text := range []string{
		"FINAL_ANSWER: 42",
		"FURTHER_PROCESSING_REQUIRED: look at the document again",
		"```\nFINAL_ANSWER: fenced answer\n```",
	} {
		out := e.Run(context.Background(), text, newStubBackend())
		assert.Equal(t, StripFences(text), out)
		assert.False(t, IsSentinel(out))
	}
}

func TestRun_InvalidProgramYieldsSentinel(t *testing.T) {
	e := testExecutor(0)

	out := e.Run(context.Background(), `{"solve": [{"op": "fly"}]}`, newStubBackend())
	require.True(t, IsSentinel(out))
	assert.Contains(t, out, "unknown op")

	out = e.Run(context.Background(), `{"steps": []}`, newStubBackend())
	require.True(t, IsSentinel(out))
	assert.Contains(t, out, ErrNoEntryPoint.Error())

	out = e.Run(context.Background(), `{not json`, newStubBackend())
	assert.True(t, IsSentinel(out))
}

func TestRun_FactorialSingleCall(t *testing.T) {
	backend := newStubBackend()
	backend.register("factorial",
		`{"type":"object","properties":{"n":{"type":"integer"}},"required":["n"]}`,
		func(args map[string]interface{}) (string, error) {
			n := int(args["n"].(float64))
			acc := 1
			for i := 2; i <= n; i++ {
				acc *= i
			}
			return `{"result": ` + strconv.Itoa(acc) + `}`, nil
		})

	plan := `{"solve": [
		{"op": "call", "tool": "factorial", "args": {"n": 5}, "save": "raw"},
		{"op": "parse", "from": "raw", "save": "data"},
		{"op": "return", "value": "{data.result}"}
	]}`

	out := testExecutor(5).Run(context.Background(), plan, backend)
	assert.Equal(t, "120", out)
	assert.Equal(t, []string{"factorial"}, backend.calls)
}

func TestRun_BudgetAllowsCeilingRejectsNext(t *testing.T) {
	backend := newStubBackend()
	backend.register("ping", `{"type":"object"}`, func(map[string]interface{}) (string, error) {
		return "pong", nil
	})

	// Exactly the ceiling: succeeds
	atCeiling := `{"solve": [
		{"op": "call", "tool": "ping"},
		{"op": "call", "tool": "ping"},
		{"op": "call", "tool": "ping", "save": "last"},
		{"op": "return", "value": "{last}"}
	]}`
	out := testExecutor(3).Run(context.Background(), atCeiling, backend)
	assert.Equal(t, "pong", out)
	assert.Len(t, backend.calls, 3)

	// One past the ceiling: the fourth call is refused, not executed
	backend.calls = nil
	overCeiling := `{"solve": [
		{"op": "call", "tool": "ping"},
		{"op": "call", "tool": "ping"},
		{"op": "call", "tool": "ping"},
		{"op": "call", "tool": "ping", "save": "last"},
		{"op": "return", "value": "{last}"}
	]}`
	out = testExecutor(3).Run(context.Background(), overCeiling, backend)
	require.True(t, IsSentinel(out))
	assert.Contains(t, out, ErrCallBudget.Error())
	assert.Len(t, backend.calls, 3)
}

func TestRun_DefaultBudget(t *testing.T) {
	e := New(Config{Logger: zerolog.Nop()})
	assert.Equal(t, DefaultMaxToolCalls, e.maxToolCalls)
}

func TestRun_SchemaRejectsBadArguments(t *testing.T) {
	backend := newStubBackend()
	backend.register("factorial",
		`{"type":"object","properties":{"n":{"type":"integer"}},"required":["n"]}`,
		func(map[string]interface{}) (string, error) {
			return "never reached", nil
		})

	plan := `{"solve": [
		{"op": "call", "tool": "factorial", "args": {"count": 5}, "save": "x"},
		{"op": "return", "value": "{x}"}
	]}`

	out := testExecutor(5).Run(context.Background(), plan, backend)
	require.True(t, IsSentinel(out))
	assert.Contains(t, out, "invalid arguments")
}

func TestRun_ToolFailureYieldsSentinel(t *testing.T) {
	backend := newStubBackend()
	backend.register("flaky", `{"type":"object"}`, func(map[string]interface{}) (string, error) {
		return "", errors.New("connection reset")
	})

	plan := `{"solve": [
		{"op": "call", "tool": "flaky", "save": "x"},
		{"op": "return", "value": "{x}"}
	]}`

	out := testExecutor(5).Run(context.Background(), plan, backend)
	require.True(t, IsSentinel(out))
	assert.Contains(t, out, "connection reset")
}

func TestRun_MatchExtractsGroup(t *testing.T) {
	backend := newStubBackend()
	backend.register("fetch", `{"type":"object"}`, func(map[string]interface{}) (string, error) {
		return "temperature is 23 degrees", nil
	})

	plan := `{"solve": [
		{"op": "call", "tool": "fetch", "save": "body"},
		{"op": "match", "from": "body", "pattern": "is (\\d+) degrees", "save": "temp"},
		{"op": "return", "value": "It is {temp} degrees."}
	]}`

	out := testExecutor(5).Run(context.Background(), plan, backend)
	assert.Equal(t, "It is 23 degrees.", out)
}

func TestRun_MissingReturnYieldsSentinel(t *testing.T) {
	backend := newStubBackend()
	backend.register("ping", `{"type":"object"}`, func(map[string]interface{}) (string, error) {
		return "pong", nil
	})

	out := testExecutor(5).Run(context.Background(),
		`{"solve": [{"op": "call", "tool": "ping"}]}`, backend)
	require.True(t, IsSentinel(out))
	assert.Contains(t, out, "without returning")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"result key wins", map[string]interface{}{"result": "42", "status": "ok"}, "42"},
		{"numeric result", map[string]interface{}{"result": float64(120)}, "120"},
		{"plain map to json", map[string]interface{}{"status": "ok"}, `{"status":"ok"}`},
		{"slice joined by spaces", []interface{}{"a", float64(2), "c"}, "a 2 c"},
		{"string verbatim", "hello", "hello"},
		{"float", 3.5, "3.5"},
		{"nil empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize(tt.in))
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"solve": []}`, StripFences("```json\n{\"solve\": []}\n```"))
	assert.Equal(t, `{"solve": []}`, StripFences("```\n{\"solve\": []}\n```"))
	assert.Equal(t, `{"solve": []}`, StripFences(`{"solve": []}`))
	assert.Equal(t, "FINAL_ANSWER: done", StripFences("  FINAL_ANSWER: done\n"))
}

func TestLookup_DottedPaths(t *testing.T) {
	vars := map[string]interface{}{
		"data": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"name": "first"},
				map[string]interface{}{"name": "second"},
			},
		},
	}

	v, err := lookup("data.items.1.name", vars)
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	_, err = lookup("data.missing", vars)
	assert.Error(t, err)

	_, err = lookup("nope", vars)
	assert.Error(t, err)
}
