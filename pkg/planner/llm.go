package planner

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cortexr/agent/pkg/sandbox"
)

// PlanFallback is returned when the model produces no usable plan text
const PlanFallback = "FINAL_ANSWER: [planner did not produce a runnable plan]"

// LLMPlanner implements Planner on top of a text-completion provider
type LLMPlanner struct {
	provider Provider
	logger   zerolog.Logger
}

// NewLLMPlanner creates a planner backed by the given provider
func NewLLMPlanner(provider Provider, logger zerolog.Logger) *LLMPlanner {
	return &LLMPlanner{provider: provider, logger: logger}
}

// Perceive asks the model for a structured reading of the task
func (p *LLMPlanner) Perceive(ctx context.Context, req PerceiveRequest) (Perception, error) {
	raw, err := p.provider.Generate(ctx, perceiveSystemPrompt, buildPerceivePrompt(req))
	if err != nil {
		return Perception{}, err
	}

	text := sandbox.StripFences(raw)
	var perception Perception
	if err := json.Unmarshal([]byte(text), &perception); err != nil {
		return Perception{}, &ParseError{Stage: "perception", Raw: raw, Err: err}
	}

	p.logger.Debug().
		Str("intent", perception.Intent).
		Strs("servers", perception.SelectedServers).
		Msg("Task perceived")
	return perception, nil
}

// GeneratePlan asks the model for a solve program or a marker line.
// The raw plan text is returned; decoding is the executor's job.
func (p *LLMPlanner) GeneratePlan(ctx context.Context, req PlanRequest) (string, error) {
	raw, err := p.provider.Generate(ctx, planSystemPrompt, buildPlanPrompt(req))
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		p.logger.Warn().Msg("Model returned an empty plan")
		return PlanFallback, nil
	}
	return text, nil
}
