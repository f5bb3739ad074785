// Package spec classifies raw configuration values into typed input specs.
//
// A raw value read from a YAML configuration is either a plain scalar, a path
// to an existing file, a reference to another entry ("$:key"), a deferred
// module call ("$py:pkg.func(a,b)"), a parenthesised arithmetic expression
// ("(a+b)") or a list of any of these. The Registry decides which one it is;
// the Resolver expands the composite kinds into fully typed trees.
package spec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind identifies the variant of a Spec.
type Kind string

const (
	// KindValue is a plain scalar stored as-is.
	KindValue Kind = "value"
	// KindFilepath is a string naming a file that existed at classification time.
	KindFilepath Kind = "filepath"
	// KindCached references another entry by dotted key.
	KindCached Kind = "cached"
	// KindModuleCall is a recorded, never invoked, external function call.
	KindModuleCall Kind = "module_call"
	// KindExpression is an arithmetic composition over operand specs.
	KindExpression Kind = "expression"
	// KindMulti is an ordered list of specs.
	KindMulti Kind = "multi"
)

// Spec is the typed classification of one raw configuration value.
type Spec interface {
	// Kind reports the variant.
	Kind() Kind
	// Resolved reports whether every recursive slot holds a Spec.
	Resolved() bool
	// Clone returns a deep copy that shares no mutable state with the receiver.
	Clone() Spec
}

// Value is a plain scalar.
type Value struct {
	Raw any
}

// Kind implements Spec.
func (*Value) Kind() Kind { return KindValue }

// Resolved implements Spec.
func (*Value) Resolved() bool { return true }

// Clone implements Spec.
func (v *Value) Clone() Spec {
	if v == nil {
		return nil
	}
	return &Value{Raw: cloneRaw(v.Raw)}
}

// String renders the raw scalar.
func (v *Value) String() string {
	if v == nil || v.Raw == nil {
		return ""
	}
	if s, ok := v.Raw.(string); ok {
		return s
	}
	return fmt.Sprint(v.Raw)
}

// Decimal parses the scalar as an exact decimal number.
func (v *Value) Decimal() (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, fmt.Errorf("nil value")
	}
	switch raw := v.Raw.(type) {
	case decimal.Decimal:
		return raw, nil
	case int:
		return decimal.NewFromInt(int64(raw)), nil
	case int64:
		return decimal.NewFromInt(raw), nil
	case int32:
		return decimal.NewFromInt32(raw), nil
	case float64:
		return decimal.NewFromFloat(raw), nil
	case float32:
		return decimal.NewFromFloat32(raw), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return decimal.Zero, fmt.Errorf("value %q is not numeric: %w", raw, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("value of type %T is not numeric", v.Raw)
	}
}

// Int parses the scalar as a whole number.
func (v *Value) Int() (int64, error) {
	d, err := v.Decimal()
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("value %s is not a whole number", d)
	}
	return d.IntPart(), nil
}

// Float parses the scalar as a float64.
func (v *Value) Float() (float64, error) {
	d, err := v.Decimal()
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// Bool parses the scalar as a boolean.
func (v *Value) Bool() (bool, error) {
	if v == nil {
		return false, fmt.Errorf("nil value")
	}
	switch raw := v.Raw.(type) {
	case bool:
		return raw, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return false, fmt.Errorf("value %q is not a boolean", raw)
		}
		return b, nil
	default:
		return false, fmt.Errorf("value of type %T is not a boolean", v.Raw)
	}
}

// Filepath is a string that named an existing file when it was classified.
type Filepath struct {
	// Path is the string as written in the configuration.
	Path string
	// Abs is the absolute path the file was found at.
	Abs string
	// Ext is the file extension without the leading dot.
	Ext string
}

// Kind implements Spec.
func (*Filepath) Kind() Kind { return KindFilepath }

// Resolved implements Spec.
func (*Filepath) Resolved() bool { return true }

// Clone implements Spec.
func (f *Filepath) Clone() Spec {
	if f == nil {
		return nil
	}
	clone := *f
	return &clone
}

// Format reports the domain format derived from the extension.
func (f *Filepath) Format() Format {
	if f == nil {
		return FormatUnknown
	}
	return FormatForExt(f.Ext)
}

// Cached references another entry of the same configuration.
type Cached struct {
	// Raw is the reference as written, e.g. "$:dem.band".
	Raw string
	// Source is the key of the referenced entry.
	Source string
	// Field optionally selects a member of the referenced value.
	Field string
}

// Kind implements Spec.
func (*Cached) Kind() Kind { return KindCached }

// Resolved implements Spec. A reference has no raw slots; it is replaced by a
// copy of its source once the flat map is linked.
func (*Cached) Resolved() bool { return true }

// Clone implements Spec.
func (c *Cached) Clone() Spec {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Target renders the reference as source[.field].
func (c *Cached) Target() string {
	if c.Field == "" {
		return c.Source
	}
	return c.Source + "." + c.Field
}

// ModuleCall describes an external function and its arguments. It is never
// invoked by this package.
type ModuleCall struct {
	Raw      string
	Module   []string
	Function string
	RawArgs  []string
	Args     []Spec
}

// Kind implements Spec.
func (*ModuleCall) Kind() Kind { return KindModuleCall }

// Resolved implements Spec.
func (m *ModuleCall) Resolved() bool {
	return slotsResolved(len(m.RawArgs), m.Args)
}

// Clone implements Spec.
func (m *ModuleCall) Clone() Spec {
	if m == nil {
		return nil
	}
	return &ModuleCall{
		Raw:      m.Raw,
		Module:   append([]string(nil), m.Module...),
		Function: m.Function,
		RawArgs:  append([]string(nil), m.RawArgs...),
		Args:     cloneSpecs(m.Args),
	}
}

// QualifiedName joins the module path and function name with dots.
func (m *ModuleCall) QualifiedName() string {
	parts := append(append([]string(nil), m.Module...), m.Function)
	return strings.Join(parts, ".")
}

// Operator is an arithmetic operator of an Expression.
type Operator string

const (
	OpAdd      Operator = "+"
	OpSubtract Operator = "-"
	OpMultiply Operator = "*"
	OpDivide   Operator = "/"
)

// operators lists the operators in the order they are searched for.
var operators = []Operator{OpAdd, OpSubtract, OpMultiply, OpDivide}

// Expression applies one operator across two or more operands.
type Expression struct {
	Raw         string
	Operator    Operator
	RawOperands []string
	Operands    []Spec
}

// Kind implements Spec.
func (*Expression) Kind() Kind { return KindExpression }

// Resolved implements Spec.
func (e *Expression) Resolved() bool {
	return slotsResolved(len(e.RawOperands), e.Operands)
}

// Clone implements Spec.
func (e *Expression) Clone() Spec {
	if e == nil {
		return nil
	}
	return &Expression{
		Raw:         e.Raw,
		Operator:    e.Operator,
		RawOperands: append([]string(nil), e.RawOperands...),
		Operands:    cloneSpecs(e.Operands),
	}
}

var numpyFunctions = map[Operator]string{
	OpAdd:      "add",
	OpSubtract: "subtract",
	OpMultiply: "multiply",
	OpDivide:   "divide",
}

// ModuleCall lowers the expression to the equivalent numpy call description.
func (e *Expression) ModuleCall() *ModuleCall {
	return &ModuleCall{
		Raw:      e.Raw,
		Module:   []string{"numpy"},
		Function: numpyFunctions[e.Operator],
		RawArgs:  append([]string(nil), e.RawOperands...),
		Args:     cloneSpecs(e.Operands),
	}
}

// Multi is an ordered list of heterogeneous specs.
type Multi struct {
	RawItems []any
	Items    []Spec
}

// Kind implements Spec.
func (*Multi) Kind() Kind { return KindMulti }

// Resolved implements Spec.
func (m *Multi) Resolved() bool {
	return slotsResolved(len(m.RawItems), m.Items)
}

// Clone implements Spec.
func (m *Multi) Clone() Spec {
	if m == nil {
		return nil
	}
	items := make([]any, len(m.RawItems))
	for i, item := range m.RawItems {
		items[i] = cloneRaw(item)
	}
	return &Multi{RawItems: items, Items: cloneSpecs(m.Items)}
}

// Item returns the element selected by a decimal index.
func (m *Multi) Item(selector string) (Spec, bool) {
	idx, err := strconv.Atoi(selector)
	if err != nil || idx < 0 || idx >= len(m.Items) {
		return nil, false
	}
	return m.Items[idx], true
}

// HasReferences reports whether a Cached spec occurs anywhere in the tree.
func HasReferences(s Spec) bool {
	found := false
	Walk(s, func(node Spec) bool {
		if _, ok := node.(*Cached); ok {
			found = true
		}
		return !found
	})
	return found
}

// Walk visits s and its resolved children depth-first until fn returns false.
func Walk(s Spec, fn func(Spec) bool) bool {
	if s == nil {
		return true
	}
	if !fn(s) {
		return false
	}
	for _, child := range Children(s) {
		if !Walk(child, fn) {
			return false
		}
	}
	return true
}

// Children returns the resolved child specs of a composite spec.
func Children(s Spec) []Spec {
	switch typed := s.(type) {
	case *ModuleCall:
		return typed.Args
	case *Expression:
		return typed.Operands
	case *Multi:
		return typed.Items
	default:
		return nil
	}
}

func slotsResolved(raw int, specs []Spec) bool {
	if len(specs) != raw {
		return false
	}
	for _, s := range specs {
		if s == nil || !s.Resolved() {
			return false
		}
	}
	return true
}

func cloneSpecs(src []Spec) []Spec {
	if src == nil {
		return nil
	}
	dst := make([]Spec, len(src))
	for i, s := range src {
		if s != nil {
			dst[i] = s.Clone()
		}
	}
	return dst
}

func cloneRaw(raw any) any {
	switch typed := raw.(type) {
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneRaw(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = cloneRaw(item)
		}
		return out
	default:
		return raw
	}
}
