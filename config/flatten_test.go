package config

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/timzifer/geoconfig/spec"
)

func flattenYAML(t *testing.T, doc string) *FlatMap {
	t.Helper()
	root, err := parseDocument("test.yaml", []byte(doc))
	require.NoError(t, err)
	flat, err := Flatten(root, spec.NewResolver(nil))
	require.NoError(t, err)
	return flat
}

func TestFlattenKeepsDeclarationOrder(t *testing.T) {
	flat := flattenYAML(t, `zeta: 1
alpha:
  second: 2
  first: 3
beta: [x, y]
`)
	want := []string{"zeta", "alpha.second", "alpha.first", "beta"}
	if diff := cmp.Diff(want, flat.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"alpha.second", "alpha.first"}, flat.Under("alpha"))
	require.Equal(t, map[spec.Kind]int{spec.KindValue: 3, spec.KindMulti: 1}, flat.Kinds())
}

func TestFlattenResolvesComposites(t *testing.T) {
	flat := flattenYAML(t, "sum: (1 + 2 + 3)\ncall: $py:numpy.add(x, 2)\n")
	s, ok := flat.Get("sum")
	require.True(t, ok)
	require.True(t, s.Resolved())
	expr := s.(*spec.Expression)
	require.Len(t, expr.Operands, 3)
	require.Equal(t, spec.OpAdd, expr.Operator)

	s, ok = flat.Get("call")
	require.True(t, ok)
	require.True(t, s.Resolved())
	require.Equal(t, "x", s.(*spec.ModuleCall).Args[0].(*spec.Value).String())
}

func TestFlattenFollowsAnchors(t *testing.T) {
	flat := flattenYAML(t, `defaults: &defaults
  cell_size: 100
grid: *defaults
`)
	s, ok := flat.Get("grid.cell_size")
	require.True(t, ok)
	require.Equal(t, "100", s.(*spec.Value).String())
}

func TestFlattenNullBecomesEmptyValue(t *testing.T) {
	flat := flattenYAML(t, "empty:\nnothing: ~\n")
	for _, key := range []string{"empty", "nothing"} {
		s, ok := flat.Get(key)
		require.True(t, ok)
		require.Equal(t, "", s.(*spec.Value).String())
	}
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	raw := map[string]any{
		"model_config": map[string]any{"model_type": "mf6", "name": "demo"},
		"input_sources": map[string]any{
			"dem":   "elevation",
			"rain":  []any{"1", "2"},
			"ratio": "(1/4)",
			"deep":  map[string]any{"nested": map[string]any{"leaf": "x"}},
		},
		"top": "1",
	}
	flat, err := FlattenMap(raw, spec.NewResolver(nil))
	require.NoError(t, err)

	tree, err := Unflatten(flat)
	require.NoError(t, err)

	var want []string
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for name, child := range node {
			key := name
			if prefix != "" {
				key = prefix + "." + name
			}
			if nested, ok := child.(map[string]any); ok {
				walk(key, nested)
				continue
			}
			want = append(want, key)
		}
	}
	walk("", raw)
	sort.Strings(want)

	if diff := cmp.Diff(want, tree.Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	got := flat.Keys()
	sort.Strings(got)
	require.Equal(t, want, got)

	node, ok := tree.Lookup("input_sources.deep")
	require.True(t, ok)
	require.IsType(t, Tree{}, node)
	s, ok := tree.Spec("input_sources.deep.nested.leaf")
	require.True(t, ok)
	require.Equal(t, "x", s.(*spec.Value).String())
	_, ok = tree.Spec("input_sources.deep")
	require.False(t, ok)
	_, ok = tree.Lookup("input_sources.missing.leaf")
	require.False(t, ok)
}

func TestUnflattenDetectsConflicts(t *testing.T) {
	flat := newFlatMap()
	flat.set("a", &spec.Value{Raw: "1"})
	flat.set("a.b", &spec.Value{Raw: "2"})

	_, err := Unflatten(flat)
	require.ErrorIs(t, err, ErrKeyConflict)
}

func TestFlattenMapRejectsInvalidKeys(t *testing.T) {
	resolver := spec.NewResolver(nil)
	for _, raw := range []map[string]any{
		{"": "x"},
		{"a.b": "x"},
		{"a": map[string]any{" ": "x"}},
	} {
		_, err := FlattenMap(raw, resolver)
		require.ErrorIs(t, err, ErrInvalidKey)
	}
}

func TestFlattenMapUnknownLeaf(t *testing.T) {
	_, err := FlattenMap(map[string]any{"a": struct{}{}}, spec.NewResolver(nil))
	require.ErrorIs(t, err, spec.ErrUnknownSpecKind)

	var keyed *spec.KeyError
	require.ErrorAs(t, err, &keyed)
	require.Equal(t, "a", keyed.Key)
}

func TestFlatMapCloneIsDeep(t *testing.T) {
	flat := flattenYAML(t, "list: [a, b]\n")
	clone := flat.Clone()

	original, _ := flat.Get("list")
	copied, _ := clone.Get("list")
	require.Equal(t, original, copied)
	require.NotSame(t, original, copied)

	copied.(*spec.Multi).Items[0] = &spec.Value{Raw: "changed"}
	require.Equal(t, "a", original.(*spec.Multi).Items[0].(*spec.Value).String())
}

func TestParseDocumentErrors(t *testing.T) {
	for _, doc := range []string{"", "just a string\n", "a: [\n"} {
		_, err := parseDocument("bad.yaml", []byte(doc))
		require.Error(t, err, "document %q", doc)
	}
}
