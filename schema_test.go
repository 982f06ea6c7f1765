package rowbinary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaFromTypeStrings(t *testing.T) {
	s, err := FromTypeStrings([][2]string{{"id", "UInt8"}, {"name", "String"}})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.IsEmpty())

	f, ok := s.FieldByName("name")
	require.True(t, ok)
	assert.Equal(t, KString, f.Type.Kind)

	_, ok = s.FieldByName("missing")
	assert.False(t, ok)
}

func TestSchemaEnsureNestedNamesRejectsUnnamed(t *testing.T) {
	nestedTy := &TypeDesc{Kind: KNested, Items: []TupleItem{{Type: &TypeDesc{Kind: KUInt8}}}}
	s := NewSchema([]Field{{Name: "n", Type: nestedTy}})
	err := s.EnsureNestedNames()
	require.Error(t, err)
}

func TestSchemaExpandForWritingExpandsNested(t *testing.T) {
	nested := mustParseType(t, "Nested(a UInt8, b String)")
	s := NewSchema([]Field{{Name: "events", Type: nested}})
	wire := s.ExpandForWriting()
	require.Equal(t, 2, wire.Len())

	f0, _ := wire.FieldAt(0)
	f1, _ := wire.FieldAt(1)
	assert.Equal(t, "events.a", f0.Name)
	assert.Equal(t, "Array(UInt8)", f0.Type.TypeName())
	assert.Equal(t, "events.b", f1.Name)
	assert.Equal(t, "Array(String)", f1.Type.TypeName())
}

func TestSchemaExpandForWritingLeavesNonNestedAlone(t *testing.T) {
	s, err := FromTypeStrings([][2]string{{"id", "UInt8"}})
	require.NoError(t, err)
	wire := s.ExpandForWriting()
	assert.Equal(t, 1, wire.Len())
}
