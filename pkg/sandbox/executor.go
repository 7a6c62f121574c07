// Package sandbox runs planner-emitted solve programs under a bounded
// capability surface: a single tool-call proxy with a fixed call budget
// plus structured-data decoding and pattern matching. A failing plan
// degrades to a textual error sentinel; it never crashes the caller.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultMaxToolCalls is the per-plan tool call ceiling
const DefaultMaxToolCalls = 5

// Executor runs solve programs against a tool backend
type Executor struct {
	maxToolCalls int
	logger       zerolog.Logger
}

// Config holds executor configuration
type Config struct {
	MaxToolCalls int
	Logger       zerolog.Logger
}

// New creates a new executor
func New(cfg Config) *Executor {
	maxCalls := cfg.MaxToolCalls
	if maxCalls <= 0 {
		maxCalls = DefaultMaxToolCalls
	}
	return &Executor{
		maxToolCalls: maxCalls,
		logger:       cfg.Logger,
	}
}

// Run executes plan text and returns the normalized result text.
// Plan text that is not a JSON program (a marker line or plain prose)
// passes through verbatim for the evaluation stage to interpret.
func (e *Executor) Run(ctx context.Context, planText string, backend ToolBackend) (out string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("Plan execution panicked")
			out = sentinel(fmt.Errorf("plan panicked: %v", r))
		}
	}()

	text := StripFences(planText)
	if !strings.HasPrefix(text, "{") {
		// Planner bailed out with a marker or plain text
		return text
	}

	prog, err := ParseProgram(text)
	if err != nil {
		return sentinel(err)
	}

	proxy := &toolProxy{
		backend: backend,
		max:     e.maxToolCalls,
		logger:  e.logger,
	}

	result, err := e.execute(ctx, prog, proxy)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Plan execution failed")
		return sentinel(err)
	}
	return result
}

func (e *Executor) execute(ctx context.Context, prog *Program, proxy *toolProxy) (string, error) {
	vars := make(map[string]interface{})

	for i, step := range prog.Solve {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		switch step.Op {
		case "call":
			args, err := resolveValue(step.Args, vars)
			if err != nil {
				return "", fmt.Errorf("step %d: %w", i+1, err)
			}
			argMap, _ := args.(map[string]interface{})

			result, err := proxy.call(ctx, step.Tool, argMap)
			if err != nil {
				return "", fmt.Errorf("step %d: %w", i+1, err)
			}
			text := result.Text()
			if !result.Success {
				return "", fmt.Errorf("step %d: tool %s reported failure: %s", i+1, step.Tool, text)
			}
			if step.Save != "" {
				vars[step.Save] = text
			}

		case "parse":
			src, err := lookup(step.From, vars)
			if err != nil {
				return "", fmt.Errorf("step %d: %w", i+1, err)
			}
			var decoded interface{}
			if err := json.Unmarshal([]byte(stringify(src)), &decoded); err != nil {
				return "", fmt.Errorf("step %d: parse %s: %w", i+1, step.From, err)
			}
			vars[step.Save] = decoded

		case "match":
			src, err := lookup(step.From, vars)
			if err != nil {
				return "", fmt.Errorf("step %d: %w", i+1, err)
			}
			re, err := regexp.Compile(step.Pattern)
			if err != nil {
				return "", fmt.Errorf("step %d: bad pattern: %w", i+1, err)
			}
			groups := re.FindStringSubmatch(stringify(src))
			if groups == nil {
				return "", fmt.Errorf("step %d: pattern %q did not match", i+1, step.Pattern)
			}
			if len(groups) > 1 {
				vars[step.Save] = groups[1]
			} else {
				vars[step.Save] = groups[0]
			}

		case "return":
			value, err := resolveValue(step.Value, vars)
			if err != nil {
				return "", fmt.Errorf("step %d: %w", i+1, err)
			}
			return normalize(value), nil
		}
	}

	return "", fmt.Errorf("plan completed without returning a value")
}

var placeholderRE = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_.]*)\}`)

// resolveValue substitutes {var} and {var.path} placeholders throughout
// a step's argument or return value. A string that is exactly one
// placeholder resolves to the referenced value with its type intact.
func resolveValue(v interface{}, vars map[string]interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return resolveString(t, vars)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			resolved, err := resolveValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			resolved, err := resolveValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string, vars map[string]interface{}) (interface{}, error) {
	matches := placeholderRE.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	// Whole-string placeholder keeps the referenced type
	if len(matches) == 1 && s == matches[0][0] {
		return lookup(matches[0][1], vars)
	}

	var resolveErr error
	out := placeholderRE.ReplaceAllStringFunc(s, func(m string) string {
		path := strings.Trim(m, "{}")
		value, err := lookup(path, vars)
		if err != nil {
			resolveErr = err
			return m
		}
		return stringify(value)
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return out, nil
}

// lookup walks a dotted path through saved values: map keys by name,
// slice elements by index.
func lookup(path string, vars map[string]interface{}) (interface{}, error) {
	segments := strings.Split(path, ".")

	current, ok := vars[segments[0]]
	if !ok {
		return nil, fmt.Errorf("unknown variable %q", segments[0])
	}

	for _, seg := range segments[1:] {
		switch t := current.(type) {
		case map[string]interface{}:
			next, exists := t[seg]
			if !exists {
				return nil, fmt.Errorf("no field %q under %q", seg, path)
			}
			current = next
		case []interface{}:
			var idx int
			if _, err := fmt.Sscanf(seg, "%d", &idx); err != nil || idx < 0 || idx >= len(t) {
				return nil, fmt.Errorf("bad index %q under %q", seg, path)
			}
			current = t[idx]
		default:
			return nil, fmt.Errorf("cannot descend into %q at %q", path, seg)
		}
	}
	return current, nil
}

// normalize turns a solve result into its textual form: a map with a
// "result" key yields that value verbatim, any other map serializes to
// JSON, a sequence joins its elements with single spaces, and anything
// else stringifies.
func normalize(v interface{}) string {
	switch t := v.(type) {
	case map[string]interface{}:
		if inner, ok := t["result"]; ok {
			return stringify(inner)
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	case []interface{}:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, " ")
	default:
		return stringify(v)
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	case float64:
		// JSON numbers decode as float64; render integers without a dot
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}
