package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/timzifer/geoconfig/config"
	"github.com/timzifer/geoconfig/internal/logging"
	"github.com/timzifer/geoconfig/internal/reload"
	"github.com/timzifer/geoconfig/telemetry"
)

// modelSchemas collects repeated -model-schema type=path flags.
type modelSchemas map[string]string

func (m modelSchemas) String() string {
	pairs := make([]string, 0, len(m))
	for modelType, path := range m {
		pairs = append(pairs, modelType+"="+path)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (m modelSchemas) Set(value string) error {
	modelType, path, ok := strings.Cut(value, "=")
	modelType = strings.TrimSpace(modelType)
	path = strings.TrimSpace(path)
	if !ok || modelType == "" || path == "" {
		return fmt.Errorf("expected type=path, got %q", value)
	}
	if _, exists := m[modelType]; exists {
		return fmt.Errorf("schema for model type %s given twice", modelType)
	}
	m[modelType] = path
	return nil
}

type options struct {
	configPath    string
	schemaPath    string
	modelSchemas  modelSchemas
	logLevel      string
	logFormat     string
	lokiURL       string
	watch         bool
	watchInterval time.Duration
	metricsListen string
	relative      bool
}

func parseFlags(args []string) (options, error) {
	opts := options{modelSchemas: modelSchemas{}}
	fs := flag.NewFlagSet("geoconfig", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.schemaPath, "schema", "", "CUE schema every loaded file must satisfy")
	fs.Var(opts.modelSchemas, "model-schema", "CUE schema for one model type as type=path (repeatable)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level")
	fs.StringVar(&opts.logFormat, "log-format", "text", "Log format (json or text)")
	fs.StringVar(&opts.lokiURL, "loki-url", "", "Push logs to this Loki endpoint")
	fs.BoolVar(&opts.watch, "watch", false, "Reload and report whenever a source file changes")
	fs.DurationVar(&opts.watchInterval, "watch-interval", time.Second, "Polling interval for -watch")
	fs.StringVar(&opts.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address")
	fs.BoolVar(&opts.relative, "relative", false, "Resolve relative file paths against the configuration directory")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.watchInterval <= 0 {
		return options{}, fmt.Errorf("watch interval must be positive, got %s", opts.watchInterval)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:  opts.logLevel,
		Format: opts.logFormat,
		Loki:   logging.LokiConfig{Enabled: opts.lokiURL != "", URL: opts.lokiURL},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logger")
	}
	defer cleanup()
	log.Logger = logger

	collector, err := newCollector(opts.metricsListen, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("metrics disabled")
		collector = telemetry.Noop()
	}

	loadOpts, schemas, err := buildLoadOptions(opts, logger, collector)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid schema")
	}

	cfg, code := check(opts.configPath, loadOpts, schemas, os.Stdout, os.Stderr)
	if !opts.watch {
		cleanup()
		os.Exit(code)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := watch(ctx, opts, cfg, loadOpts, schemas, collector, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("watch stopped")
	}
}

func buildLoadOptions(opts options, logger zerolog.Logger, collector telemetry.Collector) ([]config.Option, *config.SchemaSet, error) {
	loadOpts := []config.Option{
		config.WithLogger(logger),
		config.WithCollector(collector),
		config.WithEagerHierarchy(),
	}
	if opts.relative {
		loadOpts = append(loadOpts, config.WithRelativeToConfig())
	}
	if opts.schemaPath != "" {
		schema, err := config.LoadSchema(opts.schemaPath)
		if err != nil {
			return nil, nil, err
		}
		loadOpts = append(loadOpts, config.WithSchema(schema))
	}
	schemas := config.NewSchemaSet()
	for modelType, path := range opts.modelSchemas {
		schema, err := config.LoadSchema(path)
		if err != nil {
			return nil, nil, err
		}
		if err := schemas.Register(modelType, schema); err != nil {
			return nil, nil, err
		}
	}
	return loadOpts, schemas, nil
}

// check loads and reports a configuration and returns the process exit code.
func check(path string, loadOpts []config.Option, schemas *config.SchemaSet, out, errOut io.Writer) (*config.Config, int) {
	cfg, err := config.Load(path, loadOpts...)
	if err != nil {
		fmt.Fprintf(errOut, "configuration invalid: %v\n", err)
		return nil, 1
	}
	if err := cfg.ValidateModel(schemas); err != nil && !errors.Is(err, config.ErrMissingKey) {
		fmt.Fprintf(errOut, "configuration invalid: %v\n", err)
		return cfg, 1
	}
	return cfg, writeReport(out, cfg)
}

func watch(ctx context.Context, opts options, cfg *config.Config, loadOpts []config.Option, schemas *config.SchemaSet, collector telemetry.Collector, logger zerolog.Logger) error {
	watcher, err := reload.NewWatcher(opts.configPath, cfg, collector)
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	logger.Info().Strs("files", watcher.Files()).Msg("watching configuration")

	ticker := time.NewTicker(opts.watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			changes, err := watcher.Check()
			if err != nil {
				logger.Error().Err(err).Msg("failed to check configuration changes")
				continue
			}
			if len(changes) == 0 {
				continue
			}
			logger.Info().Strs("files", changes).Msg("configuration changed")
			next, _ := check(opts.configPath, loadOpts, schemas, os.Stdout, os.Stderr)
			if next == nil {
				next = cfg
			}
			if err := watcher.Update(opts.configPath, next); err != nil {
				logger.Error().Err(err).Msg("failed to update watcher state")
			}
			cfg = next
		}
	}
}

func newCollector(listen string, logger zerolog.Logger) (telemetry.Collector, error) {
	if strings.TrimSpace(listen) == "" {
		return telemetry.Noop(), nil
	}
	collector, err := telemetry.NewPrometheusCollector(nil)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("listen", listen).Msg("metrics server stopped")
		}
	}()
	return collector, nil
}
