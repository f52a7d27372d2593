package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CALLKPI_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CALLKPI_CONFIG is set
//  3. env (prefix CALLKPI_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// CALLKPI_WORKER_COUNT -> worker_count. Underscores are kept to match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker_count must be >= 1", ErrInvalidConfig)
	}
	if c.MaxObjects < 0 {
		return fmt.Errorf("%w: max_objects must be >= 0", ErrInvalidConfig)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%w: call_timeout must be positive", ErrInvalidConfig)
	}
	if c.KPIMaxAttempts < 1 {
		return fmt.Errorf("%w: kpi_max_attempts must be >= 1", ErrInvalidConfig)
	}
	switch c.Sink {
	case "sqlite", "excel", "memory":
	default:
		return fmt.Errorf("%w: unknown sink %q", ErrInvalidConfig, c.Sink)
	}
	switch c.SentimentBackend {
	case "lexicon":
	case "http":
		if c.SentimentURL == "" {
			return fmt.Errorf("%w: sentiment_url required for http backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown sentiment_backend %q", ErrInvalidConfig, c.SentimentBackend)
	}
	switch c.RedactorBackend {
	case "pattern":
	case "http", "chain":
		if c.RedactorURL == "" {
			return fmt.Errorf("%w: redactor_url required for %s backend", ErrInvalidConfig, c.RedactorBackend)
		}
	default:
		return fmt.Errorf("%w: unknown redactor_backend %q", ErrInvalidConfig, c.RedactorBackend)
	}
	switch c.KPIProvider {
	case "mock":
	case "gateway":
		if c.KPIGatewayURL == "" || c.KPIAPIKey == "" {
			return fmt.Errorf("%w: kpi_gateway_url and kpi_api_key required for gateway", ErrInvalidConfig)
		}
	case "anthropic":
		if c.KPIAPIKey == "" {
			return fmt.Errorf("%w: kpi_api_key required for anthropic", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown kpi_provider %q", ErrInvalidConfig, c.KPIProvider)
	}
	return nil
}
