package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/timzifer/geoconfig/spec"
)

// ErrKeyConflict reports a key that is both a leaf and a mapping.
var ErrKeyConflict = errors.New("key conflict")

// FlatMap maps dotted key paths to specs and remembers declaration order.
// It is read-only outside this package.
type FlatMap struct {
	keys  []string
	specs map[string]spec.Spec
}

func newFlatMap() *FlatMap {
	return &FlatMap{specs: make(map[string]spec.Spec)}
}

func (m *FlatMap) set(key string, s spec.Spec) {
	if _, ok := m.specs[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.specs[key] = s
}

// Get returns the spec stored under key.
func (m *FlatMap) Get(key string) (spec.Spec, bool) {
	if m == nil {
		return nil, false
	}
	s, ok := m.specs[key]
	return s, ok
}

// Keys returns the key paths in declaration order.
func (m *FlatMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of leaves.
func (m *FlatMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Under returns the keys nested below prefix, in declaration order.
func (m *FlatMap) Under(prefix string) []string {
	if m == nil {
		return nil
	}
	prefix += "."
	var keys []string
	for _, key := range m.keys {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Clone returns a deep copy.
func (m *FlatMap) Clone() *FlatMap {
	clone := newFlatMap()
	if m == nil {
		return clone
	}
	for _, key := range m.keys {
		clone.set(key, m.specs[key].Clone())
	}
	return clone
}

// Kinds counts leaves per spec kind.
func (m *FlatMap) Kinds() map[spec.Kind]int {
	counts := make(map[spec.Kind]int)
	if m == nil {
		return counts
	}
	for _, key := range m.keys {
		counts[m.specs[key].Kind()]++
	}
	return counts
}

type classifyFunc func(raw any) (spec.Spec, error)

// Flatten walks a YAML mapping depth-first and classifies every non-mapping
// leaf under its dotted key path. Mappings themselves are not recorded.
func Flatten(root *yaml.Node, resolver *spec.Resolver) (*FlatMap, error) {
	flat := newFlatMap()
	if err := flattenNode(flat, "", deref(root), resolver.Classify); err != nil {
		return nil, err
	}
	return flat, nil
}

// FlattenMap is Flatten for an in-memory nested mapping. Sibling keys are
// visited in sorted order.
func FlattenMap(raw map[string]any, resolver *spec.Resolver) (*FlatMap, error) {
	flat := newFlatMap()
	if err := flattenMap(flat, "", raw, resolver.Classify); err != nil {
		return nil, err
	}
	return flat, nil
}

func flattenNode(flat *FlatMap, prefix string, node *yaml.Node, classify classifyFunc) error {
	if node == nil || node.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: expected a mapping", displayKey(prefix))
	}
	return eachPair(node, func(name string, value *yaml.Node) error {
		key, err := joinKey(prefix, name)
		if err != nil {
			return err
		}
		value = deref(value)
		if value != nil && value.Kind == yaml.MappingNode {
			return flattenNode(flat, key, value, classify)
		}
		raw, err := rawValue(value)
		if err != nil {
			return spec.WithKey(key, nil, err)
		}
		return classifyLeaf(flat, key, raw, classify)
	})
}

func flattenMap(flat *FlatMap, prefix string, raw map[string]any, classify classifyFunc) error {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key, err := joinKey(prefix, name)
		if err != nil {
			return err
		}
		if nested, ok := raw[name].(map[string]any); ok {
			if err := flattenMap(flat, key, nested, classify); err != nil {
				return err
			}
			continue
		}
		if err := classifyLeaf(flat, key, raw[name], classify); err != nil {
			return err
		}
	}
	return nil
}

func classifyLeaf(flat *FlatMap, key string, raw any, classify classifyFunc) error {
	if _, exists := flat.specs[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}
	s, err := classify(raw)
	if err != nil {
		return spec.WithKey(key, raw, err)
	}
	flat.set(key, s)
	return nil
}

func joinKey(prefix, name string) (string, error) {
	if strings.TrimSpace(name) == "" || strings.Contains(name, ".") {
		return "", fmt.Errorf("%w: %q under %s must be non-empty and must not contain '.'", ErrInvalidKey, name, displayKey(prefix))
	}
	if prefix == "" {
		return name, nil
	}
	return prefix + "." + name, nil
}

func displayKey(key string) string {
	if key == "" {
		return "<root>"
	}
	return key
}

// Tree is the nested form of a FlatMap: every value is either a spec.Spec or
// a nested Tree.
type Tree map[string]any

// Unflatten rebuilds the nested tree from a flat map.
func Unflatten(flat *FlatMap) (Tree, error) {
	tree := Tree{}
	for _, key := range flat.Keys() {
		s, _ := flat.Get(key)
		segments := strings.Split(key, ".")
		current := tree
		for i, segment := range segments[:len(segments)-1] {
			next, ok := current[segment]
			if !ok {
				child := Tree{}
				current[segment] = child
				current = child
				continue
			}
			child, ok := next.(Tree)
			if !ok {
				return nil, fmt.Errorf("%w: %s is a value and a mapping", ErrKeyConflict, strings.Join(segments[:i+1], "."))
			}
			current = child
		}
		last := segments[len(segments)-1]
		if _, exists := current[last]; exists {
			return nil, fmt.Errorf("%w: %s", ErrKeyConflict, key)
		}
		current[last] = s
	}
	return tree, nil
}

// Lookup follows a dotted path and returns either a spec.Spec or a Tree.
func (t Tree) Lookup(path string) (any, bool) {
	var current any = t
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(Tree)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Spec returns the spec at a dotted path.
func (t Tree) Spec(path string) (spec.Spec, bool) {
	node, ok := t.Lookup(path)
	if !ok {
		return nil, false
	}
	s, ok := node.(spec.Spec)
	return s, ok
}

// Paths enumerates the dotted paths of all leaves, sorted.
func (t Tree) Paths() []string {
	var paths []string
	var walk func(prefix string, node Tree)
	walk = func(prefix string, node Tree) {
		for name, child := range node {
			key := name
			if prefix != "" {
				key = prefix + "." + name
			}
			if nested, ok := child.(Tree); ok {
				walk(key, nested)
				continue
			}
			paths = append(paths, key)
		}
	}
	walk("", t)
	sort.Strings(paths)
	return paths
}
