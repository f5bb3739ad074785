package spec

import (
	"fmt"
)

// Predicate reports whether a rule accepts a raw value.
type Predicate func(raw any) bool

// Constructor builds an unresolved spec from a raw value its predicate accepted.
type Constructor func(raw any) (Spec, error)

// Rule pairs a predicate with the constructor of one spec kind.
type Rule struct {
	Kind  Kind
	Match Predicate
	Build Constructor
}

// Registry is an ordered, immutable list of classification rules plus a
// fallback constructor. Rules are consulted in order; the first match wins.
type Registry struct {
	rules    []Rule
	fallback Rule
}

// NewRegistry builds a registry from a fallback rule and the ordered rules.
// The fallback's Match is ignored. A fallback without a Build function turns
// unmatched values into ErrUnknownSpecKind.
func NewRegistry(fallback Rule, rules ...Rule) *Registry {
	ordered := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.Match == nil || rule.Build == nil {
			continue
		}
		ordered = append(ordered, rule)
	}
	return &Registry{rules: ordered, fallback: fallback}
}

// RegistryOption tweaks the default rule set.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	baseDir string
}

// WithBaseDir resolves relative file paths against dir instead of the
// process working directory.
func WithBaseDir(dir string) RegistryOption {
	return func(o *registryOptions) {
		o.baseDir = dir
	}
}

// DefaultRegistry returns the standard rule order: filepath, expression,
// cached, module call, multi, falling back to value.
//
// A string naming an existing file is a Filepath even when it also looks
// like an expression.
func DefaultRegistry(opts ...RegistryOption) *Registry {
	var o registryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return NewRegistry(ValueRule(),
		FilepathRule(o.baseDir),
		ExpressionRule(),
		CachedRule(),
		ModuleCallRule(),
		MultiRule(),
	)
}

// Kinds lists the rule kinds in priority order, fallback last.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.rules)+1)
	for _, rule := range r.rules {
		kinds = append(kinds, rule.Kind)
	}
	if r.fallback.Build != nil {
		kinds = append(kinds, r.fallback.Kind)
	}
	return kinds
}

// Classify turns a raw value into an unresolved spec.
func (r *Registry) Classify(raw any) (Spec, error) {
	for _, rule := range r.rules {
		if !rule.Match(raw) {
			continue
		}
		s, err := rule.Build(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Kind, err)
		}
		return s, nil
	}
	if r.fallback.Build == nil {
		return nil, fmt.Errorf("%w: no rule accepts %T", ErrUnknownSpecKind, raw)
	}
	return r.fallback.Build(raw)
}
