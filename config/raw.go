package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

func parseDocument(name string, raw []byte) (*yaml.Node, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", name, err)
	}
	if len(document.Content) == 0 || document.Content[0] == nil {
		return nil, fmt.Errorf("config %s is empty", name)
	}
	root := deref(document.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config %s: top-level YAML document must be a mapping", name)
	}
	return root, nil
}

func deref(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

// rawValue converts a node into the loader's raw representation: scalars
// become their literal text, sequences become []any and mappings become
// map[string]any.
func rawValue(node *yaml.Node) (any, error) {
	node = deref(node)
	if node == nil {
		return "", nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return "", nil
		}
		return node.Value, nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := rawValue(child)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	case yaml.MappingNode:
		record := make(map[string]any, len(node.Content)/2)
		err := eachPair(node, func(key string, value *yaml.Node) error {
			item, err := rawValue(value)
			if err != nil {
				return err
			}
			record[key] = item
			return nil
		})
		if err != nil {
			return nil, err
		}
		return record, nil
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %d at line %d", node.Kind, node.Line)
	}
}

// typedValue converts a node using the YAML core schema types. Mapping keys
// are always kept as strings so that "0:" stays addressable.
func typedValue(node *yaml.Node) (any, error) {
	node = deref(node)
	if node == nil {
		return nil, nil
	}
	switch node.Kind {
	case yaml.ScalarNode:
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode scalar at line %d: %w", node.Line, err)
		}
		return value, nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := typedValue(child)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	case yaml.MappingNode:
		record := make(map[string]any, len(node.Content)/2)
		err := eachPair(node, func(key string, value *yaml.Node) error {
			item, err := typedValue(value)
			if err != nil {
				return err
			}
			record[key] = item
			return nil
		})
		if err != nil {
			return nil, err
		}
		return record, nil
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %d at line %d", node.Kind, node.Line)
	}
}

// eachPair walks a mapping node in declaration order and rejects duplicate
// or non-scalar keys.
func eachPair(node *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	seen := make(map[string]struct{}, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := deref(node.Content[i])
		if keyNode == nil || keyNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("%w: mapping key at line %d must be a scalar", ErrInvalidKey, node.Content[i].Line)
		}
		key := keyNode.Value
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q at line %d", ErrDuplicateKey, key, keyNode.Line)
		}
		seen[key] = struct{}{}
		if err := fn(key, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

var (
	// ErrDuplicateKey reports a mapping that declares the same key twice.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidKey reports a key that cannot be part of a dotted key path.
	ErrInvalidKey = errors.New("invalid key")
)
