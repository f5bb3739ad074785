package config

import (
	"fmt"
	"strings"

	"github.com/timzifer/geoconfig/spec"
)

// ResolveCached replaces every cached reference in flat, including references
// nested in call arguments, operands and list items, with a copy of the spec
// it points to. References to references are followed; cycles fail with
// spec.ErrCyclicReference. Running it again on a linked map changes nothing.
func ResolveCached(flat *FlatMap) error {
	l := &linker{
		flat:   flat,
		done:   make(map[string]bool, flat.Len()),
		active: make(map[string]bool),
	}
	for _, key := range flat.Keys() {
		if err := l.link(key); err != nil {
			return err
		}
	}
	return nil
}

type linker struct {
	flat   *FlatMap
	done   map[string]bool
	active map[string]bool
	stack  []string
}

func (l *linker) link(key string) error {
	if l.done[key] {
		return nil
	}
	if l.active[key] {
		chain := append(append([]string(nil), l.stack...), key)
		return spec.WithKey(key, nil, fmt.Errorf("%w: %s", spec.ErrCyclicReference, strings.Join(chain, " -> ")))
	}
	l.active[key] = true
	l.stack = append(l.stack, key)
	defer func() {
		delete(l.active, key)
		l.stack = l.stack[:len(l.stack)-1]
	}()

	current, _ := l.flat.Get(key)
	linked, err := l.substitute(key, current)
	if err != nil {
		return err
	}
	l.flat.set(key, linked)
	l.done[key] = true
	return nil
}

func (l *linker) substitute(key string, s spec.Spec) (spec.Spec, error) {
	switch typed := s.(type) {
	case *spec.Cached:
		source, err := l.lookup(key, typed)
		if err != nil {
			return nil, err
		}
		return source.Clone(), nil
	case *spec.ModuleCall:
		return typed, l.substituteAll(key, typed.Args)
	case *spec.Expression:
		return typed, l.substituteAll(key, typed.Operands)
	case *spec.Multi:
		return typed, l.substituteAll(key, typed.Items)
	default:
		return s, nil
	}
}

func (l *linker) substituteAll(key string, specs []spec.Spec) error {
	for i, child := range specs {
		linked, err := l.substitute(key, child)
		if err != nil {
			return err
		}
		specs[i] = linked
	}
	return nil
}

// lookup finds the fully linked spec a reference points to. The longest
// dotted prefix of the target that names a leaf is the source; the rest of
// the target selects into it.
func (l *linker) lookup(key string, ref *spec.Cached) (spec.Spec, error) {
	target := ref.Target()
	segments := strings.Split(target, ".")
	for i := len(segments); i > 0; i-- {
		leaf := strings.Join(segments[:i], ".")
		if _, ok := l.flat.Get(leaf); !ok {
			continue
		}
		if err := l.link(leaf); err != nil {
			return nil, err
		}
		source, _ := l.flat.Get(leaf)
		if i == len(segments) {
			return source, nil
		}
		selected, err := selectField(source, strings.Join(segments[i:], "."))
		if err != nil {
			return nil, spec.WithKey(key, ref.Raw, err)
		}
		return selected, nil
	}

	if len(l.flat.Under(target)) > 0 {
		return nil, spec.WithKey(key, ref.Raw, fmt.Errorf("%w: %s is a mapping, select one of its fields", spec.ErrUnresolvedCachedSource, target))
	}
	if ref.Field != "" && len(l.flat.Under(ref.Source)) > 0 {
		return nil, spec.WithKey(key, ref.Raw, fmt.Errorf("%w: %s has no field %s", spec.ErrInvalidFieldSelector, ref.Source, ref.Field))
	}
	return nil, spec.WithKey(key, ref.Raw, fmt.Errorf("%w: %s", spec.ErrUnresolvedCachedSource, ref.Source))
}

// selectField walks list indexes below a leaf. Mappings never reach here
// because they are flattened into their own leaves, so any other spec kind
// rejects the selector.
func selectField(source spec.Spec, field string) (spec.Spec, error) {
	current := source
	for _, segment := range strings.Split(field, ".") {
		switch typed := current.(type) {
		case *spec.Multi:
			item, ok := typed.Item(segment)
			if !ok {
				return nil, fmt.Errorf("%w: list has no item %q", spec.ErrInvalidFieldSelector, segment)
			}
			current = item
		default:
			return nil, fmt.Errorf("%w: %s does not support field access", spec.ErrInvalidFieldSelector, current.Kind())
		}
	}
	return current, nil
}
