package config

import (
	"fmt"
)

// Validate checks the configuration for fatal problems.
// A config that fails validation must abort startup.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if len(cfg.Servers) == 0 {
		return fmt.Errorf("no tool servers configured")
	}

	seen := make(map[string]bool, len(cfg.Servers))
	for i, srv := range cfg.Servers {
		if srv.ID == "" {
			return fmt.Errorf("server #%d has no id", i+1)
		}
		if srv.Command == "" {
			return fmt.Errorf("server %q has no command", srv.ID)
		}
		if seen[srv.ID] {
			return fmt.Errorf("duplicate server id: %s", srv.ID)
		}
		seen[srv.ID] = true
	}

	if cfg.Strategy.MaxSteps <= 0 {
		return fmt.Errorf("strategy.max_steps must be positive, got %d", cfg.Strategy.MaxSteps)
	}
	if cfg.Strategy.MaxLifelinesPerStep < 0 {
		return fmt.Errorf("strategy.max_lifelines_per_step must not be negative, got %d", cfg.Strategy.MaxLifelinesPerStep)
	}
	if cfg.Strategy.MaxToolCallsPerPlan <= 0 {
		return fmt.Errorf("strategy.max_tool_calls_per_plan must be positive, got %d", cfg.Strategy.MaxToolCallsPerPlan)
	}

	switch cfg.Strategy.PlanningMode {
	case "conservative", "exploratory":
	default:
		return fmt.Errorf("unknown planning mode: %s", cfg.Strategy.PlanningMode)
	}
	switch cfg.Strategy.ExplorationMode {
	case "", "sequential", "parallel":
	default:
		return fmt.Errorf("unknown exploration mode: %s", cfg.Strategy.ExplorationMode)
	}

	if cfg.Memory.TopK <= 0 {
		return fmt.Errorf("memory.top_k must be positive, got %d", cfg.Memory.TopK)
	}
	if cfg.Memory.DistanceThreshold <= 0 {
		return fmt.Errorf("memory.distance_threshold must be positive, got %f", cfg.Memory.DistanceThreshold)
	}

	if cfg.LLM.DefaultProfile != "" {
		found := false
		for _, p := range cfg.LLM.Profiles {
			if p.ID == cfg.LLM.DefaultProfile {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("default llm profile %q not found", cfg.LLM.DefaultProfile)
		}
	}
	for _, p := range cfg.LLM.Profiles {
		switch p.Provider {
		case "openai", "anthropic":
		default:
			return fmt.Errorf("llm profile %q has unsupported provider: %s", p.ID, p.Provider)
		}
	}

	return nil
}
