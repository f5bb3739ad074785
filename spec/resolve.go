package spec

import (
	"fmt"
)

// Resolver expands the raw slots of composite specs by classifying each slot
// with its registry and recursing into the result.
type Resolver struct {
	registry *Registry
}

// NewResolver returns a resolver backed by reg, or by DefaultRegistry when reg is nil.
func NewResolver(reg *Registry) *Resolver {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Resolver{registry: reg}
}

// Registry returns the registry used for classification.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Classify classifies raw and resolves the result.
func (r *Resolver) Classify(raw any) (Spec, error) {
	s, err := r.registry.Classify(raw)
	if err != nil {
		return nil, err
	}
	return r.Resolve(s)
}

// Resolve fills every raw slot of s in place and returns s. Value, Filepath
// and Cached specs are returned unchanged.
func (r *Resolver) Resolve(s Spec) (Spec, error) {
	switch typed := s.(type) {
	case *ModuleCall:
		args, err := r.resolveSlots(toRaw(typed.RawArgs), "argument")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", typed.QualifiedName(), err)
		}
		typed.Args = args
	case *Expression:
		operands, err := r.resolveSlots(toRaw(typed.RawOperands), "operand")
		if err != nil {
			return nil, fmt.Errorf("expression %s: %w", typed.Raw, err)
		}
		typed.Operands = operands
	case *Multi:
		items, err := r.resolveSlots(typed.RawItems, "item")
		if err != nil {
			return nil, err
		}
		typed.Items = items
	case nil:
		return nil, fmt.Errorf("%w: nil spec", ErrUnknownSpecKind)
	}
	return s, nil
}

func (r *Resolver) resolveSlots(raws []any, slot string) ([]Spec, error) {
	specs := make([]Spec, 0, len(raws))
	for i, raw := range raws {
		s, err := r.Classify(raw)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", slot, i, err)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

func toRaw(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
