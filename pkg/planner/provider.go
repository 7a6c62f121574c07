package planner

import (
	"context"
	"fmt"

	"github.com/cortexr/agent/internal/config"
)

// Provider is a text-completion backend for perception and planning
type Provider interface {
	// Generate returns the model's reply to a system/user prompt pair
	Generate(ctx context.Context, system, user string) (string, error)
	// Name returns the provider name
	Name() string
}

// NewProvider builds a provider from an LLM profile
func NewProvider(profile config.LLMProfile) (Provider, error) {
	switch profile.Provider {
	case "openai":
		return NewOpenAIProvider(profile.APIKey, profile.Model), nil
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey, profile.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}
