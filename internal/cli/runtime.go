package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/cortexr/agent/internal/config"
	"github.com/cortexr/agent/internal/logger"
	"github.com/cortexr/agent/pkg/agent"
	"github.com/cortexr/agent/pkg/dispatch"
	"github.com/cortexr/agent/pkg/memory"
	"github.com/cortexr/agent/pkg/moderation"
	"github.com/cortexr/agent/pkg/planner"
	"github.com/cortexr/agent/pkg/sandbox"
)

// runtime wires the agent stack from configuration
type runtime struct {
	cfg        *config.Config
	log        *logger.Logger
	zl         zerolog.Logger
	dispatcher *dispatch.Dispatcher
	sessions   *memory.SessionStore
	index      *memory.Index
	watcher    *memory.FileWatcher
	scheduler  *cron.Cron
	filter     *moderation.ContentFilter
	loop       *agent.Loop
}

// newRuntime loads configuration, connects the tool servers and builds
// the control loop
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, err
	}
	zl := lg.GetZerolog()

	r := &runtime{cfg: cfg, log: lg, zl: zl}

	servers := make([]dispatch.ServerDescriptor, 0, len(cfg.Servers))
	for _, srv := range cfg.Servers {
		servers = append(servers, dispatch.ServerDescriptor{
			ID:          srv.ID,
			Command:     srv.Command,
			Args:        srv.Args,
			WorkingDir:  srv.WorkingDir,
			Description: srv.Description,
		})
	}
	r.dispatcher, err = dispatch.New(servers, zl)
	if err != nil {
		r.close()
		return nil, err
	}
	if err := r.dispatcher.Initialize(ctx); err != nil {
		r.close()
		return nil, fmt.Errorf("tool discovery: %w", err)
	}

	profile, err := defaultProfile(cfg)
	if err != nil {
		r.close()
		return nil, err
	}
	provider, err := planner.NewProvider(profile)
	if err != nil {
		r.close()
		return nil, err
	}

	r.sessions = memory.NewSessionStore(cfg.Memory.SessionDir, zl)
	r.setupIndex(cfg, zl)

	r.filter = moderation.New(cfg.Moderation)
	r.loop = agent.NewLoop(
		planner.NewLLMPlanner(provider, zl),
		sandbox.New(sandbox.Config{MaxToolCalls: cfg.Strategy.MaxToolCallsPerPlan, Logger: zl}),
		r.dispatcher,
		agent.Config{
			MaxSteps:        cfg.Strategy.MaxSteps,
			MaxLifelines:    cfg.Strategy.MaxLifelinesPerStep,
			MaxToolCalls:    cfg.Strategy.MaxToolCallsPerPlan,
			PlanningMode:    cfg.Strategy.PlanningMode,
			ExplorationMode: cfg.Strategy.ExplorationMode,
			MemoryFallback:  cfg.Strategy.MemoryFallback,
		},
		zl,
	)
	return r, nil
}

// setupIndex builds the similarity index when an OpenAI key is
// available for embeddings. Without one the agent runs fine, it just
// skips memory injection.
func (r *runtime) setupIndex(cfg *config.Config, zl zerolog.Logger) {
	key := embeddingKey(cfg)
	if key == "" {
		zl.Info().Msg("No OpenAI profile configured, memory retrieval disabled")
		return
	}

	index, err := memory.NewIndex(memory.IndexConfig{
		IndexDir:          cfg.Memory.IndexDir,
		Sessions:          r.sessions,
		Embedder:          memory.NewOpenAIEmbedder(key, cfg.LLM.EmbeddingModel),
		TopK:              cfg.Memory.TopK,
		DistanceThreshold: cfg.Memory.DistanceThreshold,
		Logger:            zl,
	})
	if err != nil {
		zl.Warn().Err(err).Msg("Memory index unavailable")
		return
	}
	r.index = index

	if err := os.MkdirAll(cfg.Memory.SessionDir, 0o755); err == nil {
		watcher, werr := memory.NewFileWatcher(zl, index.MarkDirty)
		if werr == nil && watcher.Watch(cfg.Memory.SessionDir) == nil {
			r.watcher = watcher
		} else if werr != nil {
			zl.Warn().Err(werr).Msg("Session watcher unavailable")
		}
	}

	if cfg.Memory.RefreshSchedule != "" {
		scheduler := cron.New()
		_, err := scheduler.AddFunc(cfg.Memory.RefreshSchedule, func() {
			if err := index.EnsureFresh(context.Background()); err != nil {
				zl.Warn().Err(err).Msg("Scheduled index refresh failed")
			}
		})
		if err != nil {
			zl.Warn().Err(err).Str("schedule", cfg.Memory.RefreshSchedule).Msg("Bad refresh schedule")
		} else {
			scheduler.Start()
			r.scheduler = scheduler
		}
	}
}

func (r *runtime) close() {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
	if r.watcher != nil {
		if err := r.watcher.Stop(); err != nil {
			r.zl.Debug().Err(err).Msg("Watcher shutdown")
		}
	}
	if r.log != nil {
		_ = r.log.Close()
	}
}

// solve runs one task end to end and returns the displayable answer
func (r *runtime) solve(ctx context.Context, query string) (string, error) {
	sanitized, err := r.filter.Sanitize(query)
	if err != nil {
		return "", err
	}

	input := sanitized
	if r.index != nil {
		if err := r.index.EnsureFresh(ctx); err != nil {
			r.zl.Warn().Err(err).Msg("Index refresh failed, continuing without it")
		}
		input = r.index.SelectForInjection(ctx, sanitized)
	}

	sc, err := agent.NewSessionContext(r.sessions, sanitized, r.zl)
	if err != nil {
		return "", err
	}

	outcome, err := r.loop.Run(ctx, sc, input)
	if err != nil {
		return "", err
	}
	if !outcome.Final {
		return fmt.Sprintf("No final answer after %d steps. Last result: %s",
			outcome.Steps, agent.StripMarker(outcome.Text)), nil
	}

	// A fresh answer is indexable right away
	if r.index != nil {
		r.index.MarkDirty()
	}
	return agent.StripMarker(outcome.Text), nil
}

// defaultProfile resolves the configured default LLM profile
func defaultProfile(cfg *config.Config) (config.LLMProfile, error) {
	if len(cfg.LLM.Profiles) == 0 {
		return config.LLMProfile{}, fmt.Errorf("no LLM profiles configured")
	}
	if cfg.LLM.DefaultProfile == "" {
		return cfg.LLM.Profiles[0], nil
	}
	for _, p := range cfg.LLM.Profiles {
		if p.ID == cfg.LLM.DefaultProfile {
			return p, nil
		}
	}
	return config.LLMProfile{}, fmt.Errorf("default profile %s not found", cfg.LLM.DefaultProfile)
}

// embeddingKey finds an OpenAI API key for the embedding backend
func embeddingKey(cfg *config.Config) string {
	for _, p := range cfg.LLM.Profiles {
		if p.Provider == "openai" && p.APIKey != "" {
			return p.APIKey
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}
