package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Servers = []ServerConfig{
		{ID: "math", Command: "python", Args: []string{"math_server.py"}},
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.Strategy.MaxSteps)
	assert.Equal(t, 2, cfg.Strategy.MaxLifelinesPerStep)
	assert.Equal(t, 5, cfg.Strategy.MaxToolCallsPerPlan)
	assert.Equal(t, "conservative", cfg.Strategy.PlanningMode)
	assert.True(t, cfg.Strategy.MemoryFallback)

	assert.Equal(t, 2, cfg.Memory.TopK)
	assert.InDelta(t, 300.0, cfg.Memory.DistanceThreshold, 1e-9)

	assert.True(t, cfg.Moderation.Enabled)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(validConfig()))

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no servers", func(c *Config) { c.Servers = nil }, "no tool servers"},
		{"missing command", func(c *Config) { c.Servers[0].Command = "" }, "no command"},
		{"duplicate ids", func(c *Config) {
			c.Servers = append(c.Servers, ServerConfig{ID: "math", Command: "x"})
		}, "duplicate server id"},
		{"zero steps", func(c *Config) { c.Strategy.MaxSteps = 0 }, "max_steps"},
		{"negative lifelines", func(c *Config) { c.Strategy.MaxLifelinesPerStep = -1 }, "max_lifelines"},
		{"zero call budget", func(c *Config) { c.Strategy.MaxToolCallsPerPlan = 0 }, "max_tool_calls"},
		{"bad planning mode", func(c *Config) { c.Strategy.PlanningMode = "yolo" }, "planning mode"},
		{"bad exploration mode", func(c *Config) { c.Strategy.ExplorationMode = "chaotic" }, "exploration mode"},
		{"zero top_k", func(c *Config) { c.Memory.TopK = 0 }, "top_k"},
		{"missing default profile", func(c *Config) { c.LLM.DefaultProfile = "ghost" }, "not found"},
		{"bad provider", func(c *Config) {
			c.LLM.Profiles = []LLMProfile{{ID: "p", Provider: "gemini"}}
		}, "unsupported provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoader_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.json")).Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Strategy.MaxSteps)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "memory"), cfg.Memory.SessionDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "index"), cfg.Memory.IndexDir)
}

func TestLoader_ReadsFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cortexr.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"servers": [{"id": "math", "command": "python"}],
		"strategy": {"max_steps": 7},
		"memory": {"top_k": 4}
	}`), 0o644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Strategy.MaxSteps)
	assert.Equal(t, 4, cfg.Memory.TopK)
	// Untouched fields keep their defaults
	assert.Equal(t, 5, cfg.Strategy.MaxToolCallsPerPlan)
	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "math", cfg.Servers[0].ID)
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cortexr.json")
	loader := NewLoader(path)

	cfg := validConfig()
	cfg.Strategy.MaxSteps = 9
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Strategy.MaxSteps)
	require.Len(t, loaded.Servers, 1)
	assert.Equal(t, "math", loaded.Servers[0].ID)
}
