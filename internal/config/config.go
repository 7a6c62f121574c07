package config

// Config represents the main agent configuration
type Config struct {
	// Agent identity
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Tool servers available to the dispatcher
	Servers []ServerConfig `json:"servers" mapstructure:"servers"`

	// Strategy controls the control loop budgets
	Strategy StrategyConfig `json:"strategy" mapstructure:"strategy"`

	// Memory holds session log and similarity index settings
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`

	// LLM holds planner and embedding provider settings
	LLM LLMConfig `json:"llm" mapstructure:"llm"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Moderation holds input heuristics settings
	Moderation ModerationConfig `json:"moderation" mapstructure:"moderation"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// AgentConfig identifies the agent instance
type AgentConfig struct {
	ID          string `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`
}

// ServerConfig describes one external tool server process
type ServerConfig struct {
	ID          string   `json:"id" mapstructure:"id"`
	Command     string   `json:"command" mapstructure:"command"`
	Args        []string `json:"args" mapstructure:"args"`
	WorkingDir  string   `json:"working_dir" mapstructure:"working_dir"`
	Description string   `json:"description" mapstructure:"description"`
}

// StrategyConfig controls planning behavior and loop budgets
type StrategyConfig struct {
	PlanningMode        string `json:"planning_mode" mapstructure:"planning_mode"`       // conservative, exploratory
	ExplorationMode     string `json:"exploration_mode" mapstructure:"exploration_mode"` // sequential, parallel
	MemoryFallback      bool   `json:"memory_fallback" mapstructure:"memory_fallback"`
	MaxSteps            int    `json:"max_steps" mapstructure:"max_steps"`
	MaxLifelinesPerStep int    `json:"max_lifelines_per_step" mapstructure:"max_lifelines_per_step"`
	MaxToolCallsPerPlan int    `json:"max_tool_calls_per_plan" mapstructure:"max_tool_calls_per_plan"`
}

// MemoryConfig holds memory storage and retrieval settings
type MemoryConfig struct {
	SessionDir        string  `json:"session_dir" mapstructure:"session_dir"`
	IndexDir          string  `json:"index_dir" mapstructure:"index_dir"`
	TopK              int     `json:"top_k" mapstructure:"top_k"`
	DistanceThreshold float64 `json:"distance_threshold" mapstructure:"distance_threshold"`
	RefreshSchedule   string  `json:"refresh_schedule" mapstructure:"refresh_schedule"` // cron spec
}

// LLMConfig holds model provider configuration
type LLMConfig struct {
	Profiles       []LLMProfile `json:"profiles" mapstructure:"profiles"`
	DefaultProfile string       `json:"default_profile" mapstructure:"default_profile"`
	EmbeddingModel string       `json:"embedding_model" mapstructure:"embedding_model"`
}

// LLMProfile represents one provider credential set
type LLMProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Model    string `json:"model" mapstructure:"model"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// ModerationConfig holds input heuristics configuration
type ModerationConfig struct {
	Enabled         bool     `json:"enabled" mapstructure:"enabled"`
	BlockedSubjects []string `json:"blocked_subjects" mapstructure:"blocked_subjects"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			ID:          "cortex-r",
			Name:        "Cortex-R",
			Description: "Tool-using task-solving agent",
		},
		Strategy: StrategyConfig{
			PlanningMode:        "conservative",
			ExplorationMode:     "sequential",
			MemoryFallback:      true,
			MaxSteps:            3,
			MaxLifelinesPerStep: 2,
			MaxToolCallsPerPlan: 5,
		},
		Memory: MemoryConfig{
			TopK:              2,
			DistanceThreshold: 300.0,
			RefreshSchedule:   "@every 30s",
		},
		LLM: LLMConfig{
			EmbeddingModel: "text-embedding-3-small",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		Moderation: ModerationConfig{
			Enabled: true,
		},
	}
}
