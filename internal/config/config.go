// Package config defines the batch configuration and how it is loaded.
//
// Values are layered: defaults from New, then an optional YAML file, then
// CALLKPI_* environment variables. The resulting Config is passed explicitly
// into the pipeline; nothing reads the environment after Load.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// Environment selects the log formatter: local = text, anything else = JSON.
	Environment string `koanf:"environment"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the listen address for `callkpi serve`.
	Addr string `koanf:"addr"`

	// SourceDir is the root of the local transcript tree.
	SourceDir string `koanf:"source_dir"`

	// SourcePrefix restricts listing to keys under this prefix.
	SourcePrefix string `koanf:"source_prefix"`

	// ManifestPath optionally points at an .xlsx sheet mapping keys to contact ids.
	ManifestPath string `koanf:"manifest_path"`

	// MaxObjects caps the number of transcripts per run (0 = no cap).
	MaxObjects int `koanf:"max_objects"`

	// ModifiedWithin only lists objects modified in this window (0 = all).
	ModifiedWithin time.Duration `koanf:"modified_within"`

	// WorkerCount sets the number of concurrent call pipelines.
	WorkerCount int `koanf:"worker_count"`

	// CallTimeout bounds one call's pipeline, including both network stages.
	CallTimeout time.Duration `koanf:"call_timeout"`

	// HTTPTimeout bounds a single request to a hosted model.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// Sink selects persistence: sqlite, excel or memory.
	Sink string `koanf:"sink"`

	// SinkPath is the database or workbook path.
	SinkPath string `koanf:"sink_path"`

	// SentimentBackend selects the classifier: lexicon or http.
	SentimentBackend string `koanf:"sentiment_backend"`
	SentimentURL     string `koanf:"sentiment_url"`

	// RedactorBackend selects the PII detector: pattern, http or chain (both).
	RedactorBackend string `koanf:"redactor_backend"`
	RedactorURL     string `koanf:"redactor_url"`

	// RedactFailOpen keeps unredacted text when the detector is down. Off by default.
	RedactFailOpen bool `koanf:"redact_fail_open"`

	// KPIProvider selects the generative model: mock, gateway or anthropic.
	KPIProvider       string        `koanf:"kpi_provider"`
	KPIModel          string        `koanf:"kpi_model"`
	KPIGatewayURL     string        `koanf:"kpi_gateway_url"`
	KPIAPIKey         string        `koanf:"kpi_api_key"`
	KPICatalogPath    string        `koanf:"kpi_catalog_path"`
	KPIMaxAttempts    int           `koanf:"kpi_max_attempts"`
	KPIInitialBackoff time.Duration `koanf:"kpi_initial_backoff"`
	KPIMaxBackoff     time.Duration `koanf:"kpi_max_backoff"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		Environment:       "local",
		LogLevel:          "info",
		Addr:              ":8080",
		SourceDir:         "transcripts",
		MaxObjects:        100,
		WorkerCount:       runtime.NumCPU(),
		CallTimeout:       2 * time.Minute,
		HTTPTimeout:       25 * time.Second,
		Sink:              "sqlite",
		SinkPath:          "call_analytics.db",
		SentimentBackend:  "lexicon",
		RedactorBackend:   "pattern",
		KPIProvider:       "mock",
		KPIMaxAttempts:    4,
		KPIInitialBackoff: 500 * time.Millisecond,
		KPIMaxBackoff:     10 * time.Second,
	}
}
