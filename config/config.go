// Package config loads the engine configuration from defaults, an optional
// YAML file and environment overrides for secrets, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scribeworks/quill/internal/cache"
	"github.com/scribeworks/quill/llm"
	"github.com/scribeworks/quill/rag"
	"github.com/scribeworks/quill/stages"
	"github.com/scribeworks/quill/workflow"
)

// Config is the complete engine configuration. It is constructed once at
// startup and passed explicitly into the components that need it; nothing
// reads it ambiently.
type Config struct {
	// Revision bounds the review loop.
	Revision workflow.RevisionPolicy `yaml:"revision"`
	// Retry is the per-stage retry policy.
	Retry workflow.RetryPolicy `yaml:"retry"`
	// Retrieval tunes the hybrid retriever and fused-set cache.
	Retrieval rag.HybridConfig `yaml:"retrieval"`
	// Generation tunes provider calls issued by the stages.
	Generation stages.GenerationConfig `yaml:"generation"`
	// Provider configures the OpenAI-compatible backend.
	Provider llm.HTTPProviderConfig `yaml:"provider"`
	// ProviderRPS throttles provider calls client-side; 0 disables.
	ProviderRPS   float64 `yaml:"provider_rps"`
	ProviderBurst int     `yaml:"provider_burst"`
	// Redis configures the shared cache / run store backend. An empty addr
	// keeps the engine on its in-memory cache and run store.
	Redis cache.Config `yaml:"redis"`
	// Workers sizes the run execution pool.
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
	// Log controls the zap logger.
	Log LogConfig `yaml:"log"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Default returns the engine defaults. Redis is off until an addr is
// configured.
func Default() *Config {
	redisCfg := cache.DefaultConfig()
	redisCfg.Addr = ""
	return &Config{
		Revision: workflow.RevisionPolicy{
			MaxRevisions:     2,
			QualityThreshold: 0.8,
			LoopBackTarget:   stages.StageWrite,
		},
		Retry:      workflow.DefaultRetryPolicy(),
		Retrieval:  rag.DefaultHybridConfig(),
		Generation: stages.DefaultGenerationConfig(),
		Provider: llm.HTTPProviderConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		ProviderRPS:   5,
		ProviderBurst: 10,
		Redis:         redisCfg,
		Workers:       4,
		QueueSize:     64,
		Log:           LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path over the defaults. An empty path returns defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays secret-bearing settings from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("QUILL_PROVIDER_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("QUILL_PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("QUILL_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("QUILL_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Revision.MaxRevisions < 0 {
		return fmt.Errorf("revision.max_revisions must be >= 0")
	}
	if c.Revision.QualityThreshold < 0 || c.Revision.QualityThreshold > 1 {
		return fmt.Errorf("revision.quality_threshold must be in [0,1]")
	}
	// A zero budget never loops back, so the target only matters when the
	// gate can actually use it.
	if c.Revision.MaxRevisions > 0 &&
		c.Revision.LoopBackTarget != stages.StageWrite && c.Revision.LoopBackTarget != stages.StageResearch {
		return fmt.Errorf("revision.loop_back_target must be %q or %q", stages.StageWrite, stages.StageResearch)
	}
	if c.Retrieval.Cap < 1 {
		return fmt.Errorf("retrieval.cap must be >= 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}
