package spec

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestValueAccessors(t *testing.T) {
	n := &Value{Raw: "12"}
	i, err := n.Int()
	require.NoError(t, err)
	require.EqualValues(t, 12, i)

	f, err := (&Value{Raw: "0.25"}).Float()
	require.NoError(t, err)
	require.Equal(t, 0.25, f)

	d, err := (&Value{Raw: "1.10"}).Decimal()
	require.NoError(t, err)
	require.True(t, d.Equal(decimal.RequireFromString("1.1")))

	_, err = (&Value{Raw: "1.5"}).Int()
	require.Error(t, err)
	_, err = (&Value{Raw: "mf6"}).Decimal()
	require.Error(t, err)

	b, err := (&Value{Raw: "true"}).Bool()
	require.NoError(t, err)
	require.True(t, b)
	_, err = (&Value{Raw: 3}).Bool()
	require.Error(t, err)

	require.Equal(t, "42", (&Value{Raw: 42}).String())
	require.Equal(t, "mf6", (&Value{Raw: "mf6"}).String())
}

func TestCloneIsDeep(t *testing.T) {
	orig := classify(t, []any{"1", "$py:numpy.add(2,3)", []any{"a"}}).(*Multi)
	clone := orig.Clone().(*Multi)
	require.Equal(t, orig, clone)

	clone.Items[0].(*Value).Raw = "changed"
	clone.Items[1].(*ModuleCall).Module[0] = "scipy"
	clone.RawItems[2].([]any)[0] = "b"

	require.Equal(t, "1", orig.Items[0].(*Value).Raw)
	require.Equal(t, "numpy", orig.Items[1].(*ModuleCall).Module[0])
	require.Equal(t, "a", orig.RawItems[2].([]any)[0])
}

func TestWalkAndHasReferences(t *testing.T) {
	s := classify(t, []any{"1", []any{"$py:f($:a)"}})
	require.True(t, HasReferences(s))
	require.False(t, HasReferences(classify(t, "(1+2)")))

	var kinds []Kind
	Walk(s, func(node Spec) bool {
		kinds = append(kinds, node.Kind())
		return true
	})
	require.Equal(t, []Kind{KindMulti, KindValue, KindMulti, KindModuleCall, KindCached}, kinds)
}

func TestFormatForExt(t *testing.T) {
	require.Equal(t, FormatRaster, FormatForExt("TIF"))
	require.Equal(t, FormatVector, FormatForExt(".shp"))
	require.Equal(t, FormatNetCDF, FormatForExt("nc"))
	require.Equal(t, FormatYAML, FormatForExt("yml"))
	require.Equal(t, FormatUnknown, FormatForExt("docx"))
	require.Equal(t, FormatUnknown, (*Filepath)(nil).Format())
}

func TestKeyError(t *testing.T) {
	err := WithKey("model.b", "$:a", ErrUnresolvedCachedSource)
	require.ErrorIs(t, err, ErrUnresolvedCachedSource)
	require.Equal(t, "model.b ($:a): unresolved cached source", err.Error())

	again := WithKey("other", nil, err)
	require.Same(t, err, again)
	require.NoError(t, WithKey("x", nil, nil))
}
