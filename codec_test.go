package rowbinary

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeValue(t *testing.T, ty *TypeDesc, v Value) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteValue(ty, v, &buf))
	return buf.Bytes()
}

func decodeValue(t *testing.T, ty *TypeDesc, data []byte) Value {
	t.Helper()
	v, err := ReadValueRequired(ty, bytes.NewReader(data), DefaultLimits())
	require.NoError(t, err)
	return v
}

func mustParseType(t *testing.T, s string) *TypeDesc {
	t.Helper()
	ty, err := ParseTypeDesc(s)
	require.NoError(t, err)
	return ty
}

func TestCodecRoundTripScalars(t *testing.T) {
	cases := []struct {
		name string
		ty   string
		v    Value
	}{
		{"UInt8", "UInt8", UInt8(200)},
		{"UInt32", "UInt32", UInt32(70000)},
		{"UInt64", "UInt64", UInt64(1 << 40)},
		{"Int8", "Int8", Int8(-5)},
		{"Int32", "Int32", Int32(-70000)},
		{"Float32", "Float32", Float32Value(3.5)},
		{"Float64", "Float64", Float64Value(-2.25)},
		{"Bool-true", "Bool", Bool(true)},
		{"Bool-false", "Bool", Bool(false)},
		{"String", "String", StringFrom("hello rowbinary")},
		{"FixedString", "FixedString(5)", FixedString([]byte("abcde"))},
		{"Date", "Date", Date(19000)},
		{"DateTime", "DateTime", DateTime(1_700_000_000)},
		{"DateTime64", "DateTime64(3)", DateTime64(1_700_000_000_123)},
		{"IPv4", "IPv4", IPv4(0x0100007F)},
		{"Enum8", "Enum8('a' = 1, 'b' = 2)", Value{Kind: KEnum8, Scalar: int8(2)}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ty := mustParseType(t, c.ty)
			encoded := encodeValue(t, ty, c.v)
			decoded := decodeValue(t, ty, encoded)
			assert.True(t, c.v.Equal(decoded), "round trip mismatch for %s", c.name)
		})
	}
}

func TestCodecUInt32ExactBytes(t *testing.T) {
	ty := mustParseType(t, "UInt32")
	encoded := encodeValue(t, ty, UInt32(300))
	assert.Equal(t, []byte{0x2c, 0x01, 0x00, 0x00}, encoded)
}

func TestCodecStringExactBytes(t *testing.T) {
	ty := mustParseType(t, "String")
	encoded := encodeValue(t, ty, StringFrom("hi"))
	assert.Equal(t, []byte{0x02, 'h', 'i'}, encoded)
}

func TestCodecUUIDByteSwap(t *testing.T) {
	ty := mustParseType(t, "UUID")
	id := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	encoded := encodeValue(t, ty, UUID(id))
	expected := []byte{
		0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, 0x00,
		0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa, 0x99, 0x88,
	}
	assert.Equal(t, expected, encoded)

	decoded := decodeValue(t, ty, encoded)
	assert.Equal(t, id, decoded.Scalar.(uuid.UUID))
}

func TestCodecNestedColumnMajor(t *testing.T) {
	ty := mustParseType(t, "Nested(a UInt8, b UInt8)")
	value := Array([]Value{
		TupleValue([]Value{UInt8(1), UInt8(2)}),
		TupleValue([]Value{UInt8(3), UInt8(4)}),
	})
	encoded := encodeValue(t, ty, value)
	assert.Equal(t, []byte{0x02, 0x01, 0x03, 0x02, 0x04}, encoded)
}

func TestCodecEmptyArrayIsZeroVarint(t *testing.T) {
	ty := mustParseType(t, "Array(Nullable(Date))")
	encoded := encodeValue(t, ty, Array(nil))
	assert.Equal(t, []byte{0x00}, encoded)
}

func TestCodecBoolRejectsInvalidByte(t *testing.T) {
	ty := mustParseType(t, "Bool")
	_, err := ReadValueRequired(ty, bytes.NewReader([]byte{0x02}), DefaultLimits())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidValue))
}

func TestCodecNullableFlagByte(t *testing.T) {
	ty := mustParseType(t, "Nullable(UInt8)")
	assert.Equal(t, []byte{0x01}, encodeValue(t, ty, Null()))
	assert.Equal(t, []byte{0x00, 0x2a}, encodeValue(t, ty, NotNull(UInt8(42))))
}

func TestCodecVariantNullSentinel(t *testing.T) {
	ty := mustParseType(t, "Variant(String, UInt8)")
	v := decodeValue(t, ty, []byte{0xff})
	assert.True(t, v.VariantNull)

	encoded := encodeValue(t, ty, Value{Kind: KVariant, VariantNull: true})
	assert.Equal(t, []byte{0xff}, encoded)
}

func TestCodecVariantRoundTrip(t *testing.T) {
	ty := mustParseType(t, "Variant(String, UInt8)")
	inner := UInt8(7)
	v := Value{Kind: KVariant, VariantIndex: 1, VariantInner: &inner}
	encoded := encodeValue(t, ty, v)
	decoded := decodeValue(t, ty, encoded)
	assert.True(t, v.Equal(decoded))
}

func TestCodecDynamicNullAndValue(t *testing.T) {
	ty := mustParseType(t, "Dynamic")

	null := Value{Kind: KDynamic, DynamicNull: true}
	encoded := encodeValue(t, ty, null)
	assert.Equal(t, []byte{0x00}, encoded)
	decoded := decodeValue(t, ty, encoded)
	assert.True(t, decoded.DynamicNull)

	inner := StringFrom("x")
	dynTy := mustParseType(t, "String")
	v := Value{Kind: KDynamic, DynType: dynTy, DynValue: &inner}
	encoded = encodeValue(t, ty, v)
	decoded = decodeValue(t, ty, encoded)
	assert.True(t, v.Equal(decoded))
}

func TestCodecMapRoundTrip(t *testing.T) {
	ty := mustParseType(t, "Map(String, UInt32)")
	v := MapValue([]MapEntry{
		{Key: StringFrom("a"), Value: UInt32(1)},
		{Key: StringFrom("b"), Value: UInt32(2)},
	})
	encoded := encodeValue(t, ty, v)
	decoded := decodeValue(t, ty, encoded)
	assert.True(t, v.Equal(decoded))
}

func TestCodecArrayOfTupleRoundTrip(t *testing.T) {
	ty := mustParseType(t, "Array(Tuple(UInt8, String))")
	v := Array([]Value{
		TupleValue([]Value{UInt8(1), StringFrom("one")}),
		TupleValue([]Value{UInt8(2), StringFrom("two")}),
	})
	encoded := encodeValue(t, ty, v)
	decoded := decodeValue(t, ty, encoded)
	assert.True(t, v.Equal(decoded))
}

func TestCodecLowCardinalityTransparentOnWire(t *testing.T) {
	plain := mustParseType(t, "String")
	lc := mustParseType(t, "LowCardinality(String)")

	v := Value{Kind: KLowCardinality, Inner: &Value{Kind: KString, Scalar: []byte("x")}}
	lcBytes := encodeValue(t, lc, v)
	plainBytes := encodeValue(t, plain, StringFrom("x"))
	assert.Equal(t, plainBytes, lcBytes)
}

func TestCodecJSONObjectTypedAndDynamicPaths(t *testing.T) {
	ty := mustParseType(t, "JSON(a UInt8)")
	v := Value{
		Kind:        KJSON,
		TypedValues: []Value{UInt8(9)},
		DynamicPaths: []JSONPath{
			{Name: "extra", Value: Value{Kind: KDynamic, DynType: mustParseType(t, "String"), DynValue: valuePtr(StringFrom("z"))}},
		},
	}
	encoded := encodeValue(t, ty, v)
	decoded := decodeValue(t, ty, encoded)
	assert.True(t, v.Equal(decoded))
}

func valuePtr(v Value) *Value { return &v }

func TestCodecRequiredReadFailsOnTruncation(t *testing.T) {
	ty := mustParseType(t, "UInt32")
	_, err := ReadValueRequired(ty, bytes.NewReader([]byte{0x01, 0x02}), DefaultLimits())
	require.Error(t, err)
}

func TestCodecOptionalReadSignalsCleanEOF(t *testing.T) {
	ty := mustParseType(t, "UInt32")
	_, ok, err := ReadValueOptional(ty, bytes.NewReader(nil), DefaultLimits())
	require.NoError(t, err)
	assert.False(t, ok)
}

func FuzzCodecValueRoundTrip(f *testing.F) {
	f.Add(uint8(0), "hello")
	f.Add(uint8(255), "")
	f.Fuzz(func(t *testing.T, n uint8, s string) {
		ty, err := ParseTypeDesc("Tuple(UInt8, String)")
		require.NoError(t, err)
		v := TupleValue([]Value{UInt8(n), StringFrom(s)})
		encoded := encodeValue(t, ty, v)
		decoded := decodeValue(t, ty, encoded)
		assert.True(t, v.Equal(decoded))
	})
}
