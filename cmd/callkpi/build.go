package main

import (
	"fmt"

	"call-analytics-go/internal/clients"
	"call-analytics-go/internal/config"
	"call-analytics-go/internal/dataset"
	"call-analytics-go/internal/extractor"
	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/pipeline"
	"call-analytics-go/internal/processor"
	"call-analytics-go/internal/redact"
	"call-analytics-go/internal/sentiment"
	"call-analytics-go/internal/sink"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultGatewayModel   = "gpt-4o-mini"
)

// components is everything one process needs, built once from config.
type components struct {
	source *dataset.DirSource
	sink   pipeline.Sink
	runner *pipeline.Runner
}

func build(cfg *config.Config, log *logger.Logger) (*components, error) {
	catalog := extractor.DefaultCatalog()
	if cfg.KPICatalogPath != "" {
		c, err := extractor.LoadCatalog(cfg.KPICatalogPath)
		if err != nil {
			return nil, err
		}
		catalog = c
	}

	gen, err := buildGenerator(cfg)
	if err != nil {
		return nil, err
	}
	proc := processor.New(
		sentiment.New(buildClassifier(cfg, log), sentiment.WithLogger(log)),
		redact.New(buildDetector(cfg, log), redact.WithFailOpen(cfg.RedactFailOpen), redact.WithLogger(log)),
		extractor.New(gen,
			extractor.WithCatalog(catalog),
			extractor.WithRetry(cfg.KPIMaxAttempts, cfg.KPIInitialBackoff, cfg.KPIMaxBackoff),
			extractor.WithLogger(log),
		),
		processor.WithTimeout(cfg.CallTimeout),
		processor.WithLogger(log),
	)

	srcOpts := []dataset.Option{dataset.WithModifiedWithin(cfg.ModifiedWithin)}
	if cfg.ManifestPath != "" {
		entries, err := dataset.LoadManifest(cfg.ManifestPath)
		if err != nil {
			return nil, err
		}
		log.WithField("entries", len(entries)).Info("manifest loaded")
		srcOpts = append(srcOpts, dataset.WithManifest(entries))
	}
	src := dataset.NewDirSource(cfg.SourceDir, srcOpts...)

	snk, err := buildSink(cfg, catalog)
	if err != nil {
		return nil, err
	}

	runner := pipeline.New(src, proc, snk,
		pipeline.WithWorkers(cfg.WorkerCount),
		pipeline.WithPrefix(cfg.SourcePrefix),
		pipeline.WithMaxObjects(cfg.MaxObjects),
		pipeline.WithLogger(log),
	)
	return &components{source: src, sink: snk, runner: runner}, nil
}

func buildClassifier(cfg *config.Config, log *logger.Logger) sentiment.Classifier {
	if cfg.SentimentBackend == "http" {
		return sentiment.NewHTTPClassifier(cfg.SentimentURL,
			sentiment.WithTimeout(cfg.HTTPTimeout),
			sentiment.WithRetry(clients.DefaultRetry),
			sentiment.WithClassifierLogger(log),
		)
	}
	return sentiment.NewLexiconClassifier()
}

func buildDetector(cfg *config.Config, log *logger.Logger) redact.Detector {
	newHTTP := func() *redact.HTTPDetector {
		return redact.NewHTTPDetector(cfg.RedactorURL,
			redact.WithTimeout(cfg.HTTPTimeout),
			redact.WithRetry(clients.DefaultRetry),
			redact.WithDetectorLogger(log),
		)
	}
	switch cfg.RedactorBackend {
	case "http":
		return newHTTP()
	case "chain":
		return redact.ChainDetector{redact.NewPatternDetector(), newHTTP()}
	default:
		return redact.NewPatternDetector()
	}
}

func buildGenerator(cfg *config.Config) (extractor.Generator, error) {
	switch cfg.KPIProvider {
	case "mock":
		return extractor.NewMockGenerator(), nil
	case "gateway":
		model := cfg.KPIModel
		if model == "" {
			model = defaultGatewayModel
		}
		return extractor.NewGatewayGenerator(cfg.KPIGatewayURL, cfg.KPIAPIKey, model, cfg.HTTPTimeout), nil
	case "anthropic":
		model := cfg.KPIModel
		if model == "" {
			model = defaultAnthropicModel
		}
		return extractor.NewAnthropicGenerator(cfg.KPIAPIKey, model, extractor.WithRequestTimeout(cfg.HTTPTimeout)), nil
	default:
		return nil, fmt.Errorf("%w: unknown kpi_provider %q", config.ErrInvalidConfig, cfg.KPIProvider)
	}
}

func buildSink(cfg *config.Config, catalog extractor.Catalog) (pipeline.Sink, error) {
	switch cfg.Sink {
	case "sqlite":
		db, err := sink.OpenSQLite(cfg.SinkPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "excel":
		return sink.NewExcel(cfg.SinkPath, catalog.Names()), nil
	case "memory":
		return sink.NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: unknown sink %q", config.ErrInvalidConfig, cfg.Sink)
	}
}
