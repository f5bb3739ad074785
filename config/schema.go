package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// ErrSchemaViolation reports a document that does not satisfy its schema.
var ErrSchemaViolation = errors.New("schema violation")

const configDefinition = "#Config"

const baseSchemaSource = `#Config: {
    model_config?: {
        model_type?: string
        ...
    }
    input_hierarchy?: {
        models?: [=~"^[0-9]+$"]: string
        ...
    }
    input_sources?: {...}
    input_cache?: {...}
    ...
}
`

// Schema is a compiled CUE constraint applied to raw configuration
// documents. When the source declares #Config, only that definition is used.
type Schema struct {
	name  string
	ctx   *cue.Context
	value cue.Value
}

// CompileSchema compiles CUE source into a schema.
func CompileSchema(name string, src []byte) (*Schema, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(name))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile schema %s: %s", name, cueerrors.Details(err, nil))
	}
	if def := value.LookupPath(cue.ParsePath(configDefinition)); def.Exists() {
		value = def
	}
	return &Schema{name: name, ctx: ctx, value: value}, nil
}

// LoadSchema compiles the CUE file at path.
func LoadSchema(path string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return CompileSchema(path, src)
}

// BaseSchema returns the schema for the reserved sections every
// configuration shares.
func BaseSchema() *Schema {
	schema, err := CompileSchema("base.cue", []byte(baseSchemaSource))
	if err != nil {
		panic(err)
	}
	return schema
}

// Name returns the file name the schema was compiled from.
func (s *Schema) Name() string {
	return s.name
}

// Validate unifies doc with the schema and requires a concrete result.
func (s *Schema) Validate(doc any) error {
	if s == nil {
		return nil
	}
	data := s.ctx.Encode(doc)
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode document for %s: %w", s.name, err)
	}
	unified := s.value.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w (%s): %s", ErrSchemaViolation, s.name, strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// SchemaSet maps model types to the schema their configurations must satisfy.
type SchemaSet struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewSchemaSet returns an empty set.
func NewSchemaSet() *SchemaSet {
	return &SchemaSet{schemas: make(map[string]*Schema)}
}

// Register adds the schema for a model type.
func (s *SchemaSet) Register(modelType string, schema *Schema) error {
	modelType = strings.TrimSpace(modelType)
	if modelType == "" {
		return errors.New("model type must not be empty")
	}
	if schema == nil {
		return errors.New("schema must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.schemas[modelType]; exists {
		return fmt.Errorf("schema for model type %s already registered", modelType)
	}
	s.schemas[modelType] = schema
	return nil
}

// Lookup returns the schema registered for a model type.
func (s *SchemaSet) Lookup(modelType string) (*Schema, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.schemas[modelType]
	return schema, ok
}

// ModelTypes lists the registered model types, sorted.
func (s *SchemaSet) ModelTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.schemas))
	for modelType := range s.schemas {
		types = append(types, modelType)
	}
	sort.Strings(types)
	return types
}
