// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StoreConfig struct {
	// TTL bounds how long a finished job and its idempotency binding stay
	// resolvable. Refreshed on every write.
	TTL time.Duration `yaml:"ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type PipelineConfig struct {
	// MaxConcurrent bounds simultaneous pipeline runs per instance; excess
	// submissions queue instead of spawning unbounded goroutines.
	MaxConcurrent int `yaml:"max_concurrent"`

	// StageTimeout bounds each external collaborator call.
	StageTimeout time.Duration `yaml:"stage_timeout"`

	// DrainTimeout bounds how long shutdown waits for running pipelines.
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	// Classifier inspection window. Tuned empirically, kept as policy.
	ClassifierMinInspect int `yaml:"classifier_min_inspect"`
	ClassifierMaxInspect int `yaml:"classifier_max_inspect"`
}

type GenerationConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	Model           string `yaml:"model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent provider calls
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
}

type SynthesisConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Voice   string        `yaml:"voice"`
	Timeout time.Duration `yaml:"timeout"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Redis      RedisConfig      `yaml:"redis"`
	Store      StoreConfig      `yaml:"store"`
	Database   DatabaseConfig   `yaml:"database"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Generation GenerationConfig `yaml:"generation"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Generation.APIKey == "" && !dev {
		return nil, errors.New("generation.api_key is required outside dev mode")
	}
	if cfg.Redis.URL == "" && !dev {
		return nil, errors.New("redis.url is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Store.TTL <= 0 {
		cfg.Store.TTL = time.Hour
	}
	if cfg.Pipeline.MaxConcurrent <= 0 {
		cfg.Pipeline.MaxConcurrent = 8
	}
	if cfg.Pipeline.StageTimeout <= 0 {
		cfg.Pipeline.StageTimeout = 90 * time.Second
	}
	if cfg.Pipeline.DrainTimeout <= 0 {
		cfg.Pipeline.DrainTimeout = 30 * time.Second
	}
	if cfg.Pipeline.ClassifierMinInspect <= 0 {
		cfg.Pipeline.ClassifierMinInspect = 5
	}
	if cfg.Pipeline.ClassifierMaxInspect < cfg.Pipeline.ClassifierMinInspect {
		cfg.Pipeline.ClassifierMaxInspect = 15
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o-mini"
	}
	if cfg.Generation.ConcurrentLimit <= 0 {
		cfg.Generation.ConcurrentLimit = 16
	}
	if cfg.Generation.MaxPromptTokens <= 0 {
		cfg.Generation.MaxPromptTokens = 4096
	}
	if cfg.Synthesis.Voice == "" {
		cfg.Synthesis.Voice = "alloy"
	}
	if cfg.Synthesis.Timeout <= 0 {
		cfg.Synthesis.Timeout = 30 * time.Second
	}
}
