package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/timzifer/geoconfig/spec"
)

// LevelRef is one entry below the hierarchy key prefix.
type LevelRef struct {
	Key   string
	Level int
	Spec  spec.Spec
}

// SequenceError reports a hierarchy level declared out of sequence.
type SequenceError struct {
	Key      string
	Level    int
	Expected int
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%v: level %d at %s, expected %d", spec.ErrInvalidHierarchySequence, e.Level, e.Key, e.Expected)
}

func (e *SequenceError) Unwrap() error { return spec.ErrInvalidHierarchySequence }

// HierarchyRefs collects the entries directly below prefix in declaration
// order and parses their last key segment as the level. A leaf stored at
// prefix itself, such as a list or a scalar, carries no level keys and fails.
func HierarchyRefs(flat *FlatMap, prefix string) ([]LevelRef, error) {
	if s, ok := flat.Get(prefix); ok {
		return nil, spec.WithKey(prefix, describeRaw(s), fmt.Errorf("%w: %s must map levels to files, got %s", spec.ErrInvalidHierarchyLevelType, prefix, s.Kind()))
	}
	var refs []LevelRef
	for _, key := range flat.Under(prefix) {
		segment := strings.TrimPrefix(key, prefix+".")
		if strings.Contains(segment, ".") {
			return nil, spec.WithKey(key, nil, fmt.Errorf("%w: %q is not a single level segment", spec.ErrInvalidHierarchyLevelType, segment))
		}
		level, err := strconv.Atoi(segment)
		if err != nil {
			return nil, spec.WithKey(key, nil, fmt.Errorf("%w: %q is not an integer", spec.ErrInvalidHierarchyLevelType, segment))
		}
		s, _ := flat.Get(key)
		refs = append(refs, LevelRef{Key: key, Level: level, Spec: s})
	}
	return refs, nil
}

// ValidateSequence checks that the declared levels read 0, 1, ..., N-1.
func ValidateSequence(refs []LevelRef) error {
	for i, ref := range refs {
		if ref.Level != i {
			return &SequenceError{Key: ref.Key, Level: ref.Level, Expected: i}
		}
	}
	return nil
}

// composeHierarchy loads every level file as its own configuration. Children
// never compose their own hierarchy. Each failure is counted once: level
// files count their own through loadFile.
func (c *Config) composeHierarchy() ([]*Config, error) {
	fail := func(err error) ([]*Config, error) {
		c.settings.collector.IncLoadFailure(ErrorKind(err))
		return nil, err
	}
	refs, err := HierarchyRefs(c.flat, c.settings.keys.Hierarchy)
	if err != nil {
		return fail(err)
	}
	if err := ValidateSequence(refs); err != nil {
		return fail(err)
	}

	children := make([]*Config, 0, len(refs))
	for _, ref := range refs {
		file, ok := ref.Spec.(*spec.Filepath)
		if !ok {
			return fail(spec.WithKey(ref.Key, describeRaw(ref.Spec), fmt.Errorf("%w: hierarchy level %d must reference an existing file, got %s", spec.ErrFileNotFound, ref.Level, ref.Spec.Kind())))
		}
		c.settings.logger.Debug().
			Str("file", file.Abs).
			Int("level", ref.Level).
			Msg("loading hierarchy level")
		child, err := loadFile(file.Abs, c.settings, ref.Level)
		if err != nil {
			return nil, &spec.KeyError{Key: ref.Key, Raw: file.Path, Err: fmt.Errorf("load hierarchy level %d: %w", ref.Level, err)}
		}
		children = append(children, child)
	}
	return children, nil
}

func describeRaw(s spec.Spec) any {
	switch typed := s.(type) {
	case *spec.Value:
		return typed.Raw
	case *spec.Cached:
		return typed.Raw
	case *spec.ModuleCall:
		return typed.Raw
	case *spec.Expression:
		return typed.Raw
	case *spec.Filepath:
		return typed.Path
	default:
		return nil
	}
}
