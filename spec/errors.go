package spec

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound reports a declared or hierarchy-referenced file that does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnknownSpecKind reports a raw value no rule accepts.
	ErrUnknownSpecKind = errors.New("unknown spec kind")
	// ErrInvalidModuleCallSyntax reports a malformed "$py:" string.
	ErrInvalidModuleCallSyntax = errors.New("invalid module call syntax")
	// ErrInvalidExpressionSyntax reports an expression with an empty operand.
	ErrInvalidExpressionSyntax = errors.New("invalid expression syntax")
	// ErrInvalidCachedSyntax reports a "$:" string without a source key.
	ErrInvalidCachedSyntax = errors.New("invalid cached reference syntax")
	// ErrUnresolvedCachedSource reports a reference to a key that does not exist.
	ErrUnresolvedCachedSource = errors.New("unresolved cached source")
	// ErrInvalidFieldSelector reports a field selector the source cannot satisfy.
	ErrInvalidFieldSelector = errors.New("invalid field selector")
	// ErrCyclicReference reports a reference chain that leads back to itself.
	ErrCyclicReference = errors.New("cyclic reference")
	// ErrInvalidHierarchySequence reports hierarchy levels that are not 0..N-1 in order.
	ErrInvalidHierarchySequence = errors.New("invalid hierarchy sequence")
	// ErrInvalidHierarchyLevelType reports a hierarchy level that is not an integer.
	ErrInvalidHierarchyLevelType = errors.New("invalid hierarchy level type")
	// ErrNotEvaluable reports an expression that cannot be folded into a number.
	ErrNotEvaluable = errors.New("expression is not evaluable")
)

// KeyError attaches the dotted key path and the offending raw value to an error.
type KeyError struct {
	Key string
	Raw any
	Err error
}

func (e *KeyError) Error() string {
	if e.Raw == nil {
		return fmt.Sprintf("%s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("%s (%v): %v", e.Key, e.Raw, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// WithKey wraps err in a KeyError unless it already carries a key.
func WithKey(key string, raw any, err error) error {
	if err == nil {
		return nil
	}
	var keyed *KeyError
	if errors.As(err, &keyed) {
		return err
	}
	return &KeyError{Key: key, Raw: raw, Err: err}
}
