package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/timzifer/geoconfig/spec"
)

var (
	// ErrMissingKey reports a reserved key that the configuration does not declare.
	ErrMissingKey = errors.New("missing key")
	// ErrStateTransition reports a lifecycle step taken out of order.
	ErrStateTransition = errors.New("invalid state transition")
)

// State is the lifecycle position of a configuration. Transitions are
// one-way and follow the declaration order of the constants.
type State int

const (
	StateUnloaded State = iota
	StateClassified
	StateResolved
	StateCachedResolved
	StateHierarchyComposed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateClassified:
		return "classified"
	case StateResolved:
		return "resolved"
	case StateCachedResolved:
		return "cached_resolved"
	case StateHierarchyComposed:
		return "hierarchy_composed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const rootLevel = -1

// Config is one loaded configuration file: its flat spec map, the nested
// tree built from it and, for a root configuration, the hierarchy levels it
// references.
type Config struct {
	path     string
	level    int
	state    State
	flat     *FlatMap
	tree     Tree
	document any
	settings *settings

	composed    bool
	upstream    []*Config
	upstreamErr error
}

// Load reads, classifies and resolves the configuration file at path.
// Hierarchy levels are loaded on the first call to Upstream unless
// WithEagerHierarchy is given.
func Load(path string, opts ...Option) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path must not be empty")
	}
	s, err := newSettings(opts)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := loadFile(abs, s, rootLevel)
	if err != nil {
		return nil, err
	}
	if s.eager {
		if _, err := cfg.Upstream(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Parse loads a configuration from memory. Name is used in messages and, with
// WithRelativeToConfig, as the anchor for relative file paths.
func Parse(name string, data []byte, opts ...Option) (*Config, error) {
	s, err := newSettings(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := loadBytes(name, data, s, rootLevel)
	if err != nil {
		s.collector.IncLoadFailure(ErrorKind(err))
		return nil, err
	}
	if s.eager {
		if _, err := cfg.Upstream(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func loadFile(path string, s *settings, level int) (*Config, error) {
	cfg, err := readFile(path, s, level)
	if err != nil {
		s.collector.IncLoadFailure(ErrorKind(err))
		s.logger.Debug().Err(err).Str("file", path).Msg("config load failed")
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, s *settings, level int) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", spec.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return loadBytes(path, raw, s, level)
}

func loadBytes(path string, raw []byte, s *settings, level int) (*Config, error) {
	root, err := parseDocument(path, raw)
	if err != nil {
		return nil, err
	}
	document, err := typedValue(root)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if s.schema != nil {
		if err := s.schema.Validate(document); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	cfg := &Config{path: path, level: level, document: document, settings: s}
	resolver := spec.NewResolver(cfg.registry())
	logger := s.logger.With().Str("file", path).Logger()

	flat := newFlatMap()
	if err := flattenNode(flat, "", root, resolver.Registry().Classify); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.flat = flat
	if err := cfg.advance(StateClassified); err != nil {
		return nil, err
	}
	logger.Debug().Int("specs", flat.Len()).Msg("config classified")

	for _, key := range flat.Keys() {
		current, _ := flat.Get(key)
		if _, err := resolver.Resolve(current); err != nil {
			return nil, fmt.Errorf("%s: %w", path, spec.WithKey(key, describeRaw(current), err))
		}
	}
	if err := cfg.advance(StateResolved); err != nil {
		return nil, err
	}

	if err := ResolveCached(flat); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.advance(StateCachedResolved); err != nil {
		return nil, err
	}
	logger.Debug().Msg("cached references resolved")

	tree, err := Unflatten(flat)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.tree = tree

	for kind, count := range flat.Kinds() {
		s.collector.AddSpecs(string(kind), count)
	}
	s.collector.IncLoad(path)
	return cfg, nil
}

func (c *Config) registry() *spec.Registry {
	if c.settings.registry != nil {
		return c.settings.registry
	}
	if c.settings.relative {
		return spec.DefaultRegistry(spec.WithBaseDir(filepath.Dir(c.path)))
	}
	return spec.DefaultRegistry()
}

func (c *Config) advance(next State) error {
	if next != c.state+1 {
		return fmt.Errorf("%w: %s -> %s", ErrStateTransition, c.state, next)
	}
	c.state = next
	return nil
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Level returns the hierarchy level of a child configuration. The second
// result is false for a root configuration.
func (c *Config) Level() (int, bool) {
	if c.level == rootLevel {
		return 0, false
	}
	return c.level, true
}

// State returns the current lifecycle state.
func (c *Config) State() State {
	return c.state
}

// Flat returns the flat spec map. Callers must not modify the specs.
func (c *Config) Flat() *FlatMap {
	return c.flat
}

// Tree returns the nested spec tree.
func (c *Config) Tree() Tree {
	return c.tree
}

// Spec returns the spec stored under a dotted key.
func (c *Config) Spec(key string) (spec.Spec, bool) {
	return c.flat.Get(key)
}

// Section returns the subtree stored under name, or nil.
func (c *Config) Section(name string) Tree {
	node, ok := c.tree.Lookup(name)
	if !ok {
		return nil
	}
	section, _ := node.(Tree)
	return section
}

// ModelType returns the value stored under the model type key.
func (c *Config) ModelType() (string, error) {
	key := c.settings.keys.ModelType
	s, ok := c.flat.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	value, ok := s.(*spec.Value)
	if !ok {
		return "", spec.WithKey(key, describeRaw(s), fmt.Errorf("model type must be a plain value, got %s", s.Kind()))
	}
	return value.String(), nil
}

// Upstream returns the hierarchy level configurations in level order. They
// are loaded on the first call; the result and any error are remembered.
func (c *Config) Upstream() ([]*Config, error) {
	if c.level != rootLevel {
		return nil, nil
	}
	if c.composed {
		return c.upstream, c.upstreamErr
	}
	c.composed = true
	children, err := c.composeHierarchy()
	if err != nil {
		c.upstreamErr = fmt.Errorf("%s: %w", c.path, err)
		return nil, c.upstreamErr
	}
	c.upstream = children
	if err := c.advance(StateHierarchyComposed); err != nil {
		c.upstreamErr = err
		return nil, err
	}
	c.settings.logger.Debug().
		Str("file", c.path).
		Int("levels", len(children)).
		Msg("hierarchy composed")
	return c.upstream, nil
}

// Validate checks the raw document against schema.
func (c *Config) Validate(schema *Schema) error {
	if schema == nil {
		return nil
	}
	if err := schema.Validate(c.document); err != nil {
		return fmt.Errorf("%s: %w", c.path, err)
	}
	return nil
}

// ValidateModel checks the raw document against the schema registered for
// its model type. A model type without a registered schema passes.
func (c *Config) ValidateModel(set *SchemaSet) error {
	if set == nil {
		return nil
	}
	modelType, err := c.ModelType()
	if err != nil {
		return err
	}
	schema, ok := set.Lookup(modelType)
	if !ok {
		c.settings.logger.Debug().Str("model_type", modelType).Msg("no schema registered for model type")
		return nil
	}
	return c.Validate(schema)
}

var errorKinds = []struct {
	err  error
	kind string
}{
	{spec.ErrFileNotFound, "file_not_found"},
	{spec.ErrUnknownSpecKind, "unknown_spec_kind"},
	{spec.ErrInvalidModuleCallSyntax, "invalid_module_call_syntax"},
	{spec.ErrInvalidExpressionSyntax, "invalid_expression_syntax"},
	{spec.ErrInvalidCachedSyntax, "invalid_cached_syntax"},
	{spec.ErrUnresolvedCachedSource, "unresolved_cached_source"},
	{spec.ErrInvalidFieldSelector, "invalid_field_selector"},
	{spec.ErrCyclicReference, "cyclic_reference"},
	{spec.ErrInvalidHierarchySequence, "invalid_hierarchy_sequence"},
	{spec.ErrInvalidHierarchyLevelType, "invalid_hierarchy_level_type"},
	{ErrDuplicateKey, "duplicate_key"},
	{ErrInvalidKey, "invalid_key"},
	{ErrKeyConflict, "key_conflict"},
	{ErrMissingKey, "missing_key"},
	{ErrSchemaViolation, "schema_violation"},
}

// ErrorKind returns a stable label for the failure class of err.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, candidate := range errorKinds {
		if errors.Is(err, candidate.err) {
			return candidate.kind
		}
	}
	return "other"
}
