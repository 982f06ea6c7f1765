package rowbinary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) Schema {
	t.Helper()
	s, err := FromTypeStrings([][2]string{{"id", "UInt8"}, {"name", "String"}})
	require.NoError(t, err)
	return s
}

func TestWriterReaderRoundTripPlainRowBinary(t *testing.T) {
	schema := testSchema(t)
	rows := []Row{
		{UInt8(1), StringFrom("alpha")},
		{UInt8(2), StringFrom("beta")},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, RowBinary, schema)
	require.NoError(t, w.WriteRows(rows))

	r := NewReaderWithSchema(&buf, RowBinary, schema)
	for _, want := range rows {
		row, ok, err := r.ReadRow()
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, row, len(want))
		for i := range want {
			assert.True(t, want[i].Equal(row[i]))
		}
	}
	_, ok, err := r.ReadRow()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriterReaderRoundTripWithNamesAndTypes(t *testing.T) {
	schema := testSchema(t)
	rows := []Row{{UInt8(7), StringFrom("x")}}

	var buf bytes.Buffer
	w := NewWriter(&buf, RowBinaryWithNamesAndTypes, schema)
	require.NoError(t, w.WriteRows(rows))

	r := NewReader(&buf, RowBinaryWithNamesAndTypes)
	row, ok, err := r.ReadRow()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rows[0][0].Equal(row[0]))
	assert.True(t, rows[0][1].Equal(row[1]))

	gotSchema, ok := r.Schema()
	require.True(t, ok)
	f, ok := gotSchema.FieldByName("name")
	require.True(t, ok)
	assert.Equal(t, KString, f.Type.Kind)
}

func TestWriterReaderWithNamesRejectsNameMismatch(t *testing.T) {
	schema := testSchema(t)
	var buf bytes.Buffer
	w := NewWriter(&buf, RowBinaryWithNames, schema)
	require.NoError(t, w.WriteRow(Row{UInt8(1), StringFrom("a")}))

	wrongSchema, err := FromTypeStrings([][2]string{{"other", "UInt8"}, {"name", "String"}})
	require.NoError(t, err)
	r := NewReaderWithSchema(&buf, RowBinaryWithNames, wrongSchema)
	_, _, err = r.ReadRow()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidValue))
}

func TestWriterReaderWithNamesRejectsColumnCountMismatch(t *testing.T) {
	schema := testSchema(t)
	var buf bytes.Buffer
	w := NewWriter(&buf, RowBinaryWithNames, schema)
	require.NoError(t, w.WriteRow(Row{UInt8(1), StringFrom("a")}))

	wrongSchema, err := FromTypeStrings([][2]string{{"id", "UInt8"}})
	require.NoError(t, err)
	r := NewReaderWithSchema(&buf, RowBinaryWithNames, wrongSchema)
	_, _, err = r.ReadRow()
	require.Error(t, err)
}

func TestWriterHeaderIdempotent(t *testing.T) {
	schema := testSchema(t)
	var buf bytes.Buffer
	w := NewWriter(&buf, RowBinaryWithNames, schema)
	require.NoError(t, w.WriteHeader())
	lenAfterFirst := buf.Len()
	require.NoError(t, w.WriteHeader())
	assert.Equal(t, lenAfterFirst, buf.Len())
}

func TestWriterTakeInnerClearsHeaderState(t *testing.T) {
	schema := testSchema(t)
	var buf bytes.Buffer
	w := NewWriter(&buf, RowBinaryWithNames, schema)
	require.NoError(t, w.WriteHeader())

	taken := w.TakeInner()
	assert.Equal(t, &buf, taken)
	assert.Nil(t, w.IntoInner())

	var buf2 bytes.Buffer
	w.Reset(&buf2)
	require.NoError(t, w.WriteRow(Row{UInt8(1), StringFrom("a")}))
	assert.True(t, buf2.Len() > 0)
}

func TestReaderHeaderIdempotent(t *testing.T) {
	schema := testSchema(t)
	var buf bytes.Buffer
	w := NewWriter(&buf, RowBinaryWithNames, schema)
	require.NoError(t, w.WriteRow(Row{UInt8(1), StringFrom("a")}))

	r := NewReaderWithSchema(&buf, RowBinaryWithNames, schema)
	require.NoError(t, r.ReadHeader())
	require.NoError(t, r.ReadHeader())
}

func TestWriterRejectsRowLengthMismatch(t *testing.T) {
	schema := testSchema(t)
	var buf bytes.Buffer
	w := NewWriter(&buf, RowBinary, schema)
	err := w.WriteRow(Row{UInt8(1)})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidValue))
}

func TestWriterExpandsNestedColumns(t *testing.T) {
	nested := mustParseType(t, "Nested(a UInt8, b UInt8)")
	schema := NewSchema([]Field{{Name: "events", Type: nested}})

	var buf bytes.Buffer
	w := NewWriter(&buf, RowBinaryWithNames, schema)
	row := Row{Array([]Value{
		TupleValue([]Value{UInt8(1), UInt8(2)}),
		TupleValue([]Value{UInt8(3), UInt8(4)}),
	})}
	require.NoError(t, w.WriteRow(row))

	readSchema, err := FromTypeStrings([][2]string{{"events.a", "Array(UInt8)"}, {"events.b", "Array(UInt8)"}})
	require.NoError(t, err)
	r := NewReaderWithSchema(&buf, RowBinaryWithNames, readSchema)
	decoded, ok, err := r.ReadRow()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, decoded[0].Equal(Array([]Value{UInt8(1), UInt8(3)})))
	assert.True(t, decoded[1].Equal(Array([]Value{UInt8(2), UInt8(4)})))
}

func TestReaderResumesAcrossReadRowInto(t *testing.T) {
	schema := testSchema(t)
	var buf bytes.Buffer
	w := NewWriter(&buf, RowBinary, schema)
	require.NoError(t, w.WriteRows([]Row{
		{UInt8(1), StringFrom("a")},
		{UInt8(2), StringFrom("b")},
	}))

	r := NewReaderWithSchema(&buf, RowBinary, schema)
	var row Row
	ok, err := r.ReadRowInto(&row)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, row[0].Equal(UInt8(1)))

	ok, err = r.ReadRowInto(&row)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, row[0].Equal(UInt8(2)))

	ok, err = r.ReadRowInto(&row)
	require.NoError(t, err)
	assert.False(t, ok)
}
