package rowbinary

import (
	"bytes"

	"github.com/google/uuid"
)

// MapEntry is one key/value pair of a Map value, in insertion order.
type MapEntry struct {
	Key   Value
	Value Value
}

// JSONPath is one untyped ("dynamic") path of a JsonObject value.
type JSONPath struct {
	Name  string
	Value Value
}

// Value is the immutable tagged tree mirroring TypeDesc (spec §3.2). Once
// produced by the reader, a Value is treated as read-only by writers.
//
// Only the fields relevant to Kind are populated; see the per-Kind comment
// on Scalar for which concrete Go type it holds.
type Value struct {
	Kind DescKind

	// Scalar holds the leaf payload for every non-composite Kind:
	//   Bool->bool, UInt8->uint8, ..., UInt64->uint64, UInt128/256->[]byte (LE),
	//   Int8->int8, ..., Int64->int64, Int128/256->[]byte (LE, two's complement),
	//   Float32->float32, Float64->float64, String/FixedString->[]byte,
	//   Date->uint16, Date32->int32, DateTime->uint32, DateTime64->int64,
	//   Uuid->uuid.UUID, Ipv4->uint32, Ipv6->[16]byte,
	//   Decimal32->int32, Decimal64->int64, Decimal128->[]byte, Decimal256->[]byte,
	//   Decimal (generic)->int32/int64/[]byte depending on Bits,
	//   Enum8->int8, Enum16->int16.
	Scalar any

	// Nullable: Inner == nil means null; otherwise the wrapped value.
	// LowCardinality: Inner holds the wire-transparent wrapped value.
	Inner *Value

	// Array: ordered element values. Also used for a Nested field's
	// row-major value (each element is a Kind==KTuple Value), per spec §3.2.
	Items []Value

	// Map: ordered key/value entries.
	Entries []MapEntry

	// Tuple: ordered element values, matching TypeDesc.Items arity.
	Tuple []Value

	// Variant
	VariantNull  bool
	VariantIndex int
	VariantInner *Value

	// Dynamic
	DynamicNull bool
	DynType     *TypeDesc
	DynValue    *Value

	// JsonObject: TypedValues align 1:1 with the descriptor's typed Items;
	// DynamicPaths holds the untyped paths, each carrying a Dynamic value.
	TypedValues  []Value
	DynamicPaths []JSONPath
}

// TypeName returns a short human-readable tag for error messages. It is
// not a parseable type string (that is TypeDesc.TypeName).
func (v Value) TypeName() string {
	switch v.Kind {
	case KNullable:
		return "Nullable"
	case KLowCardinality:
		return "LowCardinality"
	case KArray:
		return "Array"
	case KMap:
		return "Map"
	case KTuple:
		return "Tuple"
	case KVariant:
		return "Variant"
	case KDynamic:
		return "Dynamic"
	case KJSON:
		return "JsonObject"
	default:
		return (&TypeDesc{Kind: v.Kind}).simpleName()
	}
}

// simpleName renders the bare keyword for a leaf Kind, ignoring any
// parameters — used only for Value.TypeName's error-message rendering.
func (t *TypeDesc) simpleName() string {
	switch t.Kind {
	case KUInt8:
		return "UInt8"
	case KUInt16:
		return "UInt16"
	case KUInt32:
		return "UInt32"
	case KUInt64:
		return "UInt64"
	case KUInt128:
		return "UInt128"
	case KUInt256:
		return "UInt256"
	case KInt8:
		return "Int8"
	case KInt16:
		return "Int16"
	case KInt32:
		return "Int32"
	case KInt64:
		return "Int64"
	case KInt128:
		return "Int128"
	case KInt256:
		return "Int256"
	case KFloat32:
		return "Float32"
	case KFloat64:
		return "Float64"
	case KBool:
		return "Bool"
	case KString:
		return "String"
	case KFixedString:
		return "FixedString"
	case KDate:
		return "Date"
	case KDate32:
		return "Date32"
	case KDateTime:
		return "DateTime"
	case KDateTime64:
		return "DateTime64"
	case KUuid:
		return "UUID"
	case KIpv4:
		return "IPv4"
	case KIpv6:
		return "IPv6"
	case KDecimal32:
		return "Decimal32"
	case KDecimal64:
		return "Decimal64"
	case KDecimal128:
		return "Decimal128"
	case KDecimal256:
		return "Decimal256"
	case KDecimal:
		return "Decimal"
	case KEnum8:
		return "Enum8"
	case KEnum16:
		return "Enum16"
	case KNothing:
		return "Nothing"
	default:
		return "Unknown"
	}
}

// Equal reports structural, recursive equality between two values.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KUInt128, KUInt256, KInt128, KInt256, KDecimal128, KDecimal256, KString, KFixedString:
		a, aok := v.Scalar.([]byte)
		b, bok := o.Scalar.([]byte)
		if aok && bok {
			return bytes.Equal(a, b)
		}
		return v.Scalar == o.Scalar
	case KIpv6:
		a, aok := v.Scalar.([16]byte)
		b, bok := o.Scalar.([16]byte)
		if aok && bok {
			return a == b
		}
		return v.Scalar == o.Scalar
	case KNullable:
		if (v.Inner == nil) != (o.Inner == nil) {
			return false
		}
		if v.Inner == nil {
			return true
		}
		return v.Inner.Equal(*o.Inner)
	case KLowCardinality:
		if v.Inner == nil || o.Inner == nil {
			return v.Inner == o.Inner
		}
		return v.Inner.Equal(*o.Inner)
	case KArray:
		if len(v.Items) != len(o.Items) {
			return false
		}
		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}
		return true
	case KMap:
		if len(v.Entries) != len(o.Entries) {
			return false
		}
		for i := range v.Entries {
			if !v.Entries[i].Key.Equal(o.Entries[i].Key) || !v.Entries[i].Value.Equal(o.Entries[i].Value) {
				return false
			}
		}
		return true
	case KTuple:
		if len(v.Tuple) != len(o.Tuple) {
			return false
		}
		for i := range v.Tuple {
			if !v.Tuple[i].Equal(o.Tuple[i]) {
				return false
			}
		}
		return true
	case KVariant:
		if v.VariantNull != o.VariantNull {
			return false
		}
		if v.VariantNull {
			return true
		}
		if v.VariantIndex != o.VariantIndex {
			return false
		}
		if v.VariantInner == nil || o.VariantInner == nil {
			return v.VariantInner == o.VariantInner
		}
		return v.VariantInner.Equal(*o.VariantInner)
	case KDynamic:
		if v.DynamicNull != o.DynamicNull {
			return false
		}
		if v.DynamicNull {
			return true
		}
		if !v.DynType.Equal(o.DynType) {
			return false
		}
		if v.DynValue == nil || o.DynValue == nil {
			return v.DynValue == o.DynValue
		}
		return v.DynValue.Equal(*o.DynValue)
	case KJSON:
		if len(v.TypedValues) != len(o.TypedValues) || len(v.DynamicPaths) != len(o.DynamicPaths) {
			return false
		}
		for i := range v.TypedValues {
			if !v.TypedValues[i].Equal(o.TypedValues[i]) {
				return false
			}
		}
		for i := range v.DynamicPaths {
			if v.DynamicPaths[i].Name != o.DynamicPaths[i].Name {
				return false
			}
			if !v.DynamicPaths[i].Value.Equal(o.DynamicPaths[i].Value) {
				return false
			}
		}
		return true
	default:
		return v.Scalar == o.Scalar
	}
}

// Constructors for the common leaf/wrapper shapes. Composite values are
// constructed directly as struct literals; these cover the scalar cases
// callers build most often.

func Bool(b bool) Value               { return Value{Kind: KBool, Scalar: b} }
func UInt8(v uint8) Value             { return Value{Kind: KUInt8, Scalar: v} }
func UInt16(v uint16) Value           { return Value{Kind: KUInt16, Scalar: v} }
func UInt32(v uint32) Value           { return Value{Kind: KUInt32, Scalar: v} }
func UInt64(v uint64) Value           { return Value{Kind: KUInt64, Scalar: v} }
func Int8(v int8) Value               { return Value{Kind: KInt8, Scalar: v} }
func Int16(v int16) Value             { return Value{Kind: KInt16, Scalar: v} }
func Int32(v int32) Value             { return Value{Kind: KInt32, Scalar: v} }
func Int64(v int64) Value             { return Value{Kind: KInt64, Scalar: v} }
func Float32Value(v float32) Value    { return Value{Kind: KFloat32, Scalar: v} }
func Float64Value(v float64) Value    { return Value{Kind: KFloat64, Scalar: v} }
func String(b []byte) Value           { return Value{Kind: KString, Scalar: b} }
func StringFrom(s string) Value       { return Value{Kind: KString, Scalar: []byte(s)} }
func FixedString(b []byte) Value      { return Value{Kind: KFixedString, Scalar: b} }
func Date(days uint16) Value          { return Value{Kind: KDate, Scalar: days} }
func Date32(days int32) Value         { return Value{Kind: KDate32, Scalar: days} }
func DateTime(secs uint32) Value      { return Value{Kind: KDateTime, Scalar: secs} }
func DateTime64(ticks int64) Value    { return Value{Kind: KDateTime64, Scalar: ticks} }
func UUID(u uuid.UUID) Value          { return Value{Kind: KUuid, Scalar: u} }
func IPv4(addr uint32) Value          { return Value{Kind: KIpv4, Scalar: addr} }
func IPv6(addr [16]byte) Value        { return Value{Kind: KIpv6, Scalar: addr} }

// Null returns the null Nullable value.
func Null() Value { return Value{Kind: KNullable} }

// NotNull wraps inner as a present Nullable value.
func NotNull(inner Value) Value { return Value{Kind: KNullable, Inner: &inner} }

// Array builds an Array value from elements.
func Array(items []Value) Value { return Value{Kind: KArray, Items: items} }

// TupleValue builds a Tuple value from elements.
func TupleValue(items []Value) Value { return Value{Kind: KTuple, Tuple: items} }

// MapValue builds a Map value from entries.
func MapValue(entries []MapEntry) Value { return Value{Kind: KMap, Entries: entries} }
