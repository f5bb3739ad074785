package config

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/timzifer/geoconfig/spec"
	"github.com/timzifer/geoconfig/telemetry"
)

const (
	// DefaultModelTypeKey locates the model type of a configuration.
	DefaultModelTypeKey = "model_config.model_type"
	// DefaultHierarchyKey is the prefix of the hierarchy level references.
	DefaultHierarchyKey = "input_hierarchy.models"
	// InputSourcesSection holds the declared input data sources.
	InputSourcesSection = "input_sources"
	// InputCacheSection holds entries meant to be referenced with "$:".
	InputCacheSection = "input_cache"
)

// Keys names the reserved key paths the loader reads.
type Keys struct {
	ModelType string
	Hierarchy string
}

// DefaultKeys returns the standard reserved key paths.
func DefaultKeys() Keys {
	return Keys{ModelType: DefaultModelTypeKey, Hierarchy: DefaultHierarchyKey}
}

// Option customises how a configuration is loaded.
type Option func(*settings) error

type settings struct {
	logger    zerolog.Logger
	collector telemetry.Collector
	registry  *spec.Registry
	keys      Keys
	relative  bool
	schema    *Schema
	eager     bool
}

func newSettings(opts []Option) (*settings, error) {
	cfg := &settings{
		logger:    zerolog.Nop(),
		collector: telemetry.Noop(),
		keys:      DefaultKeys(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// WithLogger provides a custom logger instance for the loader.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.logger = logger.With().Str("component", "config").Logger()
		return nil
	}
}

// WithCollector reports load metrics to the provided collector.
func WithCollector(collector telemetry.Collector) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		if collector == nil {
			collector = telemetry.Noop()
		}
		cfg.collector = collector
		return nil
	}
}

// WithRegistry replaces the default classification rules.
func WithRegistry(reg *spec.Registry) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		if reg == nil {
			return errors.New("registry must not be nil")
		}
		cfg.registry = reg
		return nil
	}
}

// WithKeys overrides the reserved key paths.
func WithKeys(keys Keys) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		keys.ModelType = strings.TrimSpace(keys.ModelType)
		keys.Hierarchy = strings.TrimSpace(keys.Hierarchy)
		if keys.ModelType == "" || keys.Hierarchy == "" {
			return errors.New("model type and hierarchy keys must not be empty")
		}
		cfg.keys = keys
		return nil
	}
}

// WithRelativeToConfig resolves relative file paths against the directory of
// the configuration file instead of the working directory.
func WithRelativeToConfig() Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.relative = true
		return nil
	}
}

// WithSchema validates every loaded document, hierarchy levels included,
// before classification.
func WithSchema(schema *Schema) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.schema = schema
		return nil
	}
}

// WithEagerHierarchy composes the hierarchy during Load instead of on the
// first Upstream call.
func WithEagerHierarchy() Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.eager = true
		return nil
	}
}
