package agent

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cortexr/agent/pkg/dispatch"
	"github.com/cortexr/agent/pkg/planner"
	"github.com/cortexr/agent/pkg/sandbox"
)

// ToolCatalogue is the tool surface the loop plans and executes
// against. *dispatch.Dispatcher satisfies it.
type ToolCatalogue interface {
	sandbox.ToolBackend
	Tools() []dispatch.ToolDescriptor
	ToolsForServers(ids []string) []dispatch.ToolDescriptor
	Servers() []dispatch.ServerInfo
}

// Config holds loop limits and strategy switches
type Config struct {
	MaxSteps        int
	MaxLifelines    int // plan re-execution attempts per step, beyond the first
	MaxToolCalls    int
	PlanningMode    string
	ExplorationMode string // sequential or parallel
	MemoryFallback  bool
}

// Outcome is the result of a loop run
type Outcome struct {
	Final bool
	Text  string
	Steps int
}

// Loop runs the perceive, plan, execute, evaluate cycle
type Loop struct {
	planner   planner.Planner
	executor  *sandbox.Executor
	catalogue ToolCatalogue
	cfg       Config
	logger    zerolog.Logger
}

// NewLoop creates a loop over the given planner, executor and tools
func NewLoop(p planner.Planner, executor *sandbox.Executor, catalogue ToolCatalogue, cfg Config, logger zerolog.Logger) *Loop {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 3
	}
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = sandbox.DefaultMaxToolCalls
	}
	return &Loop{
		planner:   p,
		executor:  executor,
		catalogue: catalogue,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run drives the session until a final answer, a forced-replan dead
// end, or the step ceiling. Every plan/execute attempt consumes one
// step, lifeline retries inside a step do not.
func (l *Loop) Run(ctx context.Context, sc *SessionContext, input string) (Outcome, error) {
	backend := &recordingBackend{catalogue: l.catalogue, session: sc}
	forced := false
	lastResult := ""

	for step := 1; step <= l.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Text: lastResult, Steps: step - 1}, err
		}

		tools := l.selectTools(ctx, sc, input, forced)

		planText, err := l.planner.GeneratePlan(ctx, planner.PlanRequest{
			Query:           input,
			Tools:           tools,
			PlanningMode:    l.planningMode(),
			ExplorationMode: l.cfg.ExplorationMode,
			MaxToolCalls:    l.cfg.MaxToolCalls,
		})
		if err != nil {
			l.logger.Warn().Err(err).Int("step", step).Msg("Plan generation failed")
			planText = planner.PlanFallback
		}

		subtask := sc.LogSubtask(input)
		result, ok := l.executeWithLifelines(ctx, step, planText, backend)
		lastResult = result
		if !ok {
			sc.UpdateSubtask(subtask, "failed")
			if !forced {
				l.logger.Info().Int("step", step).Msg("Step exhausted, forcing a replan")
				forced = true
				continue
			}
			// The forced replan failed too: stop with what we have
			l.logger.Warn().Int("step", step).Msg("Forced replan exhausted, giving up")
			return Outcome{Final: false, Text: result, Steps: step}, nil
		}
		forced = false
		sc.UpdateSubtask(subtask, "done")

		decision := Evaluate(result)
		if decision.Final {
			sc.SetFinalAnswer(decision.Text)
			return Outcome{Final: true, Text: decision.Text, Steps: step}, nil
		}

		// The payload becomes the next step's task
		l.logger.Debug().Int("step", step).Msg("Further processing required")
		input = decision.Text
	}

	l.logger.Info().Int("max_steps", l.cfg.MaxSteps).Msg("Step ceiling reached without a final answer")
	return Outcome{Final: false, Text: lastResult, Steps: l.cfg.MaxSteps}, nil
}

// selectTools picks the tool subset for one planning attempt. Normal
// steps narrow by perception; a forced replan gets the full catalogue,
// or the remembered-tool subset when memory fallback is on.
func (l *Loop) selectTools(ctx context.Context, sc *SessionContext, input string, forced bool) []dispatch.ToolDescriptor {
	if forced {
		tools := l.catalogue.Tools()
		if l.cfg.MemoryFallback {
			if subset := l.rememberedTools(sc, tools); len(subset) > 0 {
				l.logger.Debug().Int("tools", len(subset)).Msg("Replanning with remembered tools")
				return subset
			}
		}
		return tools
	}

	perception, err := l.planner.Perceive(ctx, planner.PerceiveRequest{
		Query:   input,
		Servers: l.catalogue.Servers(),
	})
	if err != nil {
		l.logger.Warn().Err(err).Msg("Perception unavailable, planning over the full catalogue")
		return l.catalogue.Tools()
	}

	var tools []dispatch.ToolDescriptor
	if len(perception.SelectedServers) > 0 {
		tools = l.catalogue.ToolsForServers(perception.SelectedServers)
	}
	if len(tools) == 0 {
		tools = l.catalogue.Tools()
	}
	if perception.ToolHint != "" {
		if narrowed := dispatch.FilterByHint(tools, perception.ToolHint); len(narrowed) > 0 {
			tools = narrowed
		}
	}
	return tools
}

// rememberedTools maps recently successful tool names back onto the
// catalogue
func (l *Loop) rememberedTools(sc *SessionContext, catalogue []dispatch.ToolDescriptor) []dispatch.ToolDescriptor {
	items, err := sc.History()
	if err != nil {
		l.logger.Warn().Err(err).Msg("Could not read session history for fallback")
		return nil
	}
	names := RecentSuccessfulTools(items, DefaultFallbackToolLimit)
	if len(names) == 0 {
		return nil
	}

	byName := make(map[string]dispatch.ToolDescriptor, len(catalogue))
	for _, tool := range catalogue {
		byName[tool.Name] = tool
	}
	var subset []dispatch.ToolDescriptor
	for _, name := range names {
		if tool, ok := byName[name]; ok {
			subset = append(subset, tool)
		}
	}
	return subset
}

// executeWithLifelines runs a plan, retrying on sandbox failure until
// the lifeline budget is spent. The same plan text is re-executed;
// transient tool failures are the case lifelines exist for.
func (l *Loop) executeWithLifelines(ctx context.Context, step int, planText string, backend sandbox.ToolBackend) (string, bool) {
	attempts := 1 + l.cfg.MaxLifelines
	result := ""
	for attempt := 1; attempt <= attempts; attempt++ {
		result = l.executor.Run(ctx, planText, backend)
		if !sandbox.IsSentinel(result) {
			return result, true
		}
		l.logger.Warn().
			Int("step", step).
			Int("attempt", attempt).
			Str("result", result).
			Msg("Plan execution failed")
	}
	return result, false
}

func (l *Loop) planningMode() string {
	if l.cfg.PlanningMode != "" {
		return l.cfg.PlanningMode
	}
	return "conservative"
}
