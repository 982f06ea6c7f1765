package rowbinary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRowRoundTrip(t *testing.T) {
	schema := testSchema(t)
	row := Row{UInt8(9), StringFrom("hi")}

	raw, err := EncodeRow(schema, row)
	require.NoError(t, err)

	decoded, err := DecodeRow(schema, raw)
	require.NoError(t, err)
	require.Len(t, decoded, len(row))
	for i := range row {
		assert.True(t, row[i].Equal(decoded[i]))
	}
}

func TestDecodeRowRejectsEmptyPayload(t *testing.T) {
	schema := testSchema(t)
	_, err := DecodeRow(schema, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidValue))
}
