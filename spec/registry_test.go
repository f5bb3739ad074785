package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func classify(t *testing.T, raw any, opts ...RegistryOption) Spec {
	t.Helper()
	s, err := NewResolver(DefaultRegistry(opts...)).Classify(raw)
	require.NoError(t, err)
	return s
}

func TestPlainScalarsClassifyAsValue(t *testing.T) {
	for _, raw := range []any{"5", "mf6", "", "true", "3.25", "a+b", "x(1)", true, 42, 1.5, int64(-3)} {
		s := classify(t, raw)
		require.Equal(t, &Value{Raw: raw}, s, "raw %#v", raw)
	}
}

func TestExistingFileClassifiesAsFilepath(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"dem.tif", "wells.csv", "README", "model.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

		s := classify(t, path)
		fp, ok := s.(*Filepath)
		require.True(t, ok, "expected filepath for %s, got %T", name, s)
		require.Equal(t, path, fp.Path)
		require.Equal(t, path, fp.Abs)
		require.Equal(t, filepath.Ext(name), fileExt(fp))
	}
}

func fileExt(fp *Filepath) string {
	if fp.Ext == "" {
		return ""
	}
	return "." + fp.Ext
}

func TestDirectoryIsNotAFilepath(t *testing.T) {
	dir := t.TempDir()
	require.Equal(t, &Value{Raw: dir}, classify(t, dir))
}

func TestFilepathWinsOverExpressionSyntax(t *testing.T) {
	dir := t.TempDir()
	name := "(1+2).csv"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("a,b\n"), 0o600))

	s := classify(t, name, WithBaseDir(dir))
	fp, ok := s.(*Filepath)
	require.True(t, ok, "expected filepath, got %T", s)
	require.Equal(t, name, fp.Path)
	require.Equal(t, filepath.Join(dir, name), fp.Abs)
	require.Equal(t, FormatTable, fp.Format())

	// Without the file the same string is an expression.
	other := classify(t, name, WithBaseDir(t.TempDir()))
	require.Equal(t, KindExpression, other.Kind())
}

func TestExpressionClassification(t *testing.T) {
	s := classify(t, "(3+4)")
	expected := &Expression{
		Raw:         "(3+4)",
		Operator:    OpAdd,
		RawOperands: []string{"3", "4"},
		Operands:    []Spec{&Value{Raw: "3"}, &Value{Raw: "4"}},
	}
	if diff := cmp.Diff(expected, s); diff != "" {
		t.Fatalf("unexpected expression (-want +got):\n%s", diff)
	}
	require.True(t, s.Resolved())
}

func TestExpressionSplitsOnFirstOperatorOnly(t *testing.T) {
	s := classify(t, "( 2*3 - 1 )")
	expr := s.(*Expression)
	require.Equal(t, OpSubtract, expr.Operator)
	require.Equal(t, []Spec{&Value{Raw: "2*3"}, &Value{Raw: "1"}}, expr.Operands)

	multi := classify(t, "(1+2+3)").(*Expression)
	require.Len(t, multi.Operands, 3)
}

func TestExpressionOperandsAreClassifiedRecursively(t *testing.T) {
	s := classify(t, "($:area*2)")
	expr := s.(*Expression)
	require.Equal(t, OpMultiply, expr.Operator)
	require.Equal(t, &Cached{Raw: "$:area", Source: "area"}, expr.Operands[0])
	require.Equal(t, &Value{Raw: "2"}, expr.Operands[1])
}

func TestExpressionWithEmptyOperandFails(t *testing.T) {
	_, err := DefaultRegistry().Classify("(-5)")
	require.ErrorIs(t, err, ErrInvalidExpressionSyntax)
}

func TestCachedClassification(t *testing.T) {
	require.Equal(t, &Cached{Raw: "$:a", Source: "a"}, classify(t, "$:a"))
	require.Equal(t, &Cached{Raw: "$:dem.band.1", Source: "dem", Field: "band.1"}, classify(t, "$:dem.band.1"))

	for _, raw := range []string{"$", "$:", "$:.x"} {
		_, err := DefaultRegistry().Classify(raw)
		require.ErrorIs(t, err, ErrInvalidCachedSyntax, raw)
	}
}

func TestModuleCallClassification(t *testing.T) {
	s := classify(t, "$py:numpy.add(1,2)")
	expected := &ModuleCall{
		Raw:      "$py:numpy.add(1,2)",
		Module:   []string{"numpy"},
		Function: "add",
		RawArgs:  []string{"1", "2"},
		Args:     []Spec{&Value{Raw: "1"}, &Value{Raw: "2"}},
	}
	if diff := cmp.Diff(expected, s); diff != "" {
		t.Fatalf("unexpected module call (-want +got):\n%s", diff)
	}
	require.Equal(t, "numpy.add", expected.QualifiedName())
}

func TestModuleCallArgumentsAreClassified(t *testing.T) {
	s := classify(t, "$py:geo.raster.scale( $:dem , 0.5 )").(*ModuleCall)
	require.Equal(t, []string{"geo", "raster"}, s.Module)
	require.Equal(t, "scale", s.Function)
	require.Equal(t, []Spec{&Cached{Raw: "$:dem", Source: "dem"}, &Value{Raw: "0.5"}}, s.Args)

	empty := classify(t, "$py:clock()").(*ModuleCall)
	require.Empty(t, empty.Module)
	require.Equal(t, "clock", empty.Function)
	require.Empty(t, empty.Args)
	require.True(t, empty.Resolved())
}

func TestMalformedModuleCall(t *testing.T) {
	for _, raw := range []string{"$py", "$py:numpy.add", "$py:numpy.add(1,2", "$py:.add(1)", "$py:f(g(1))", "$py:f(1,,2)"} {
		_, err := DefaultRegistry().Classify(raw)
		require.ErrorIs(t, err, ErrInvalidModuleCallSyntax, raw)
	}
}

func TestMultiPreservesOrder(t *testing.T) {
	s := classify(t, []any{"1", "$:a", []any{"x", "(1-2)"}, true})
	multi := s.(*Multi)
	require.Len(t, multi.Items, 4)
	require.Equal(t, &Value{Raw: "1"}, multi.Items[0])
	require.Equal(t, KindCached, multi.Items[1].Kind())
	inner := multi.Items[2].(*Multi)
	require.Equal(t, &Value{Raw: "x"}, inner.Items[0])
	require.Equal(t, KindExpression, inner.Items[1].Kind())
	require.Equal(t, &Value{Raw: true}, multi.Items[3])
	require.True(t, multi.Resolved())
}

func TestUnknownSpecKind(t *testing.T) {
	reg := DefaultRegistry()
	for _, raw := range []any{nil, map[string]any{"a": "1"}, struct{}{}} {
		_, err := reg.Classify(raw)
		require.ErrorIs(t, err, ErrUnknownSpecKind)
	}

	_, err := NewResolver(reg).Classify([]any{"ok", map[string]any{}})
	require.ErrorIs(t, err, ErrUnknownSpecKind)
}

func TestRegistryWithoutFallback(t *testing.T) {
	reg := NewRegistry(Rule{}, CachedRule())
	require.Equal(t, []Kind{KindCached}, reg.Kinds())

	_, err := reg.Classify("plain")
	require.ErrorIs(t, err, ErrUnknownSpecKind)

	s, err := reg.Classify("$:a")
	require.NoError(t, err)
	require.Equal(t, KindCached, s.Kind())
}

func TestRegistryOrderIsPriority(t *testing.T) {
	require.Equal(t, []Kind{KindFilepath, KindExpression, KindCached, KindModuleCall, KindMulti, KindValue}, DefaultRegistry().Kinds())

	always := Rule{
		Kind:  "custom",
		Match: func(any) bool { return true },
		Build: func(raw any) (Spec, error) { return &Value{Raw: "custom"}, nil },
	}
	reg := NewRegistry(ValueRule(), always, CachedRule())
	s, err := reg.Classify("$:a")
	require.NoError(t, err)
	require.Equal(t, &Value{Raw: "custom"}, s)
}

func TestUnresolvedSlots(t *testing.T) {
	s, err := DefaultRegistry().Classify("$py:f(1,2)")
	require.NoError(t, err)
	require.False(t, s.Resolved())

	resolved, err := NewResolver(nil).Resolve(s)
	require.NoError(t, err)
	require.Same(t, s, resolved)
	require.True(t, resolved.Resolved())
}
