package rowbinary

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/google/uuid"
)

// ReadValueRequired reads ty from r. Unlike ReadValueOptional, any EOF
// (even before the first byte) is an error — used for every read except
// the first field of a row.
func ReadValueRequired(ty *TypeDesc, r io.Reader, limits DecodeLimits) (Value, error) {
	v, ok, err := ReadValueOptional(ty, r, limits)
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return Value{}, newIOErr("unexpected EOF while reading row", io.ErrUnexpectedEOF)
	}
	return v, nil
}

// ReadValueOptional reads ty from r. It returns ok=false only when the
// very first byte of this value's own encoding hits a clean EOF — the
// row-boundary signal used for the first field of a row (spec §4.D).
func ReadValueOptional(ty *TypeDesc, r io.Reader, limits DecodeLimits) (Value, bool, error) {
	switch ty.Kind {
	case KUInt8:
		return readFixedScalar(r, 1, func(b []byte) Value { return UInt8(b[0]) })
	case KBool:
		var buf [1]byte
		eof, err := readFull(r, buf[:])
		if err != nil {
			return Value{}, true, err
		}
		if eof {
			return Value{}, false, nil
		}
		if buf[0] > 1 {
			return Value{}, true, newInvalidValue("invalid Bool value")
		}
		return Bool(buf[0] == 1), true, nil
	case KUInt16:
		return readFixedScalar(r, 2, func(b []byte) Value { return UInt16(binary.LittleEndian.Uint16(b)) })
	case KUInt32:
		return readFixedScalar(r, 4, func(b []byte) Value { return UInt32(binary.LittleEndian.Uint32(b)) })
	case KUInt64:
		return readFixedScalar(r, 8, func(b []byte) Value { return UInt64(binary.LittleEndian.Uint64(b)) })
	case KUInt128:
		return readFixedScalar(r, 16, func(b []byte) Value { return Value{Kind: KUInt128, Scalar: append([]byte(nil), b...)} })
	case KUInt256:
		return readFixedScalar(r, 32, func(b []byte) Value { return Value{Kind: KUInt256, Scalar: append([]byte(nil), b...)} })
	case KInt8:
		return readFixedScalar(r, 1, func(b []byte) Value { return Int8(int8(b[0])) })
	case KInt16:
		return readFixedScalar(r, 2, func(b []byte) Value { return Int16(int16(binary.LittleEndian.Uint16(b))) })
	case KInt32:
		return readFixedScalar(r, 4, func(b []byte) Value { return Int32(int32(binary.LittleEndian.Uint32(b))) })
	case KInt64:
		return readFixedScalar(r, 8, func(b []byte) Value { return Int64(int64(binary.LittleEndian.Uint64(b))) })
	case KInt128:
		return readFixedScalar(r, 16, func(b []byte) Value { return Value{Kind: KInt128, Scalar: append([]byte(nil), b...)} })
	case KInt256:
		return readFixedScalar(r, 32, func(b []byte) Value { return Value{Kind: KInt256, Scalar: append([]byte(nil), b...)} })
	case KFloat32:
		return readFixedScalar(r, 4, func(b []byte) Value {
			return Float32Value(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		})
	case KFloat64:
		return readFixedScalar(r, 8, func(b []byte) Value {
			return Float64Value(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		})
	case KString:
		bytes, ok, err := readLengthPrefixed(r, limits.MaxStringLen)
		if err != nil || !ok {
			return Value{}, ok, err
		}
		return String(bytes), true, nil
	case KFixedString:
		buf := make([]byte, ty.Length)
		eof, err := readFull(r, buf)
		if err != nil {
			return Value{}, true, err
		}
		if eof {
			return Value{}, false, nil
		}
		return FixedString(buf), true, nil
	case KDate:
		return readFixedScalar(r, 2, func(b []byte) Value { return Date(binary.LittleEndian.Uint16(b)) })
	case KDate32:
		return readFixedScalar(r, 4, func(b []byte) Value { return Date32(int32(binary.LittleEndian.Uint32(b))) })
	case KDateTime:
		return readFixedScalar(r, 4, func(b []byte) Value { return DateTime(binary.LittleEndian.Uint32(b)) })
	case KDateTime64:
		return readFixedScalar(r, 8, func(b []byte) Value { return DateTime64(int64(binary.LittleEndian.Uint64(b))) })
	case KUuid:
		return readFixedScalar(r, 16, func(b []byte) Value {
			var swapped [16]byte
			copy(swapped[:], b)
			reverse(swapped[:8])
			reverse(swapped[8:])
			return UUID(uuid.UUID(swapped))
		})
	case KIpv4:
		return readFixedScalar(r, 4, func(b []byte) Value { return IPv4(binary.LittleEndian.Uint32(b)) })
	case KIpv6:
		return readFixedScalar(r, 16, func(b []byte) Value {
			var addr [16]byte
			copy(addr[:], b)
			return IPv6(addr)
		})
	case KDecimal32:
		return readFixedScalar(r, 4, func(b []byte) Value { return Value{Kind: KDecimal32, Scalar: int32(binary.LittleEndian.Uint32(b))} })
	case KDecimal64:
		return readFixedScalar(r, 8, func(b []byte) Value { return Value{Kind: KDecimal64, Scalar: int64(binary.LittleEndian.Uint64(b))} })
	case KDecimal128:
		return readFixedScalar(r, 16, func(b []byte) Value { return Value{Kind: KDecimal128, Scalar: append([]byte(nil), b...)} })
	case KDecimal256:
		return readFixedScalar(r, 32, func(b []byte) Value { return Value{Kind: KDecimal256, Scalar: append([]byte(nil), b...)} })
	case KDecimal:
		switch ty.Bits {
		case Bits32:
			return readFixedScalar(r, 4, func(b []byte) Value { return Value{Kind: KDecimal, Scalar: int32(binary.LittleEndian.Uint32(b))} })
		case Bits64:
			return readFixedScalar(r, 8, func(b []byte) Value { return Value{Kind: KDecimal, Scalar: int64(binary.LittleEndian.Uint64(b))} })
		case Bits128:
			return readFixedScalar(r, 16, func(b []byte) Value { return Value{Kind: KDecimal, Scalar: append([]byte(nil), b...)} })
		case Bits256:
			return readFixedScalar(r, 32, func(b []byte) Value { return Value{Kind: KDecimal, Scalar: append([]byte(nil), b...)} })
		default:
			return Value{}, true, newInternal("unknown Decimal width")
		}
	case KEnum8:
		return readFixedScalar(r, 1, func(b []byte) Value { return Value{Kind: KEnum8, Scalar: int8(b[0])} })
	case KEnum16:
		return readFixedScalar(r, 2, func(b []byte) Value { return Value{Kind: KEnum16, Scalar: int16(binary.LittleEndian.Uint16(b))} })
	case KNothing:
		return Value{Kind: KNothing}, true, nil
	case KNullable:
		flagV, ok, err := readFixedScalar(r, 1, func(b []byte) Value { return UInt8(b[0]) })
		if err != nil || !ok {
			return Value{}, ok, err
		}
		flag := flagV.Scalar.(uint8)
		if flag > 1 {
			return Value{}, true, newInvalidValue("invalid Nullable flag")
		}
		if flag == 1 {
			return Value{Kind: KNullable}, true, nil
		}
		inner, err := ReadValueRequired(ty.Inner, r, limits)
		if err != nil {
			return Value{}, true, err
		}
		return Value{Kind: KNullable, Inner: &inner}, true, nil
	case KLowCardinality:
		inner, ok, err := ReadValueOptional(ty.Inner, r, limits)
		if err != nil || !ok {
			return Value{}, ok, err
		}
		return Value{Kind: KLowCardinality, Inner: &inner}, true, nil
	case KArray:
		length, ok, err := readUvarint(r)
		if err != nil || !ok {
			return Value{}, ok, err
		}
		items, err := readCountedRequired(ty.Inner, r, limits, length)
		if err != nil {
			return Value{}, true, err
		}
		return Array(items), true, nil
	case KMap:
		length, ok, err := readUvarint(r)
		if err != nil || !ok {
			return Value{}, ok, err
		}
		entries := make([]MapEntry, 0, clampCap(length, limits))
		for i := uint64(0); i < length; i++ {
			key, err := ReadValueRequired(ty.Key, r, limits)
			if err != nil {
				return Value{}, true, err
			}
			val, err := ReadValueRequired(ty.Value, r, limits)
			if err != nil {
				return Value{}, true, err
			}
			entries = append(entries, MapEntry{Key: key, Value: val})
		}
		return MapValue(entries), true, nil
	case KTuple:
		return readTupleOptional(ty.Items, r, limits)
	case KNested:
		length, ok, err := readUvarint(r)
		if err != nil || !ok {
			return Value{}, ok, err
		}
		rows := make([]Value, 0, clampCap(length, limits))
		for i := uint64(0); i < length; i++ {
			row, err := ReadValueRequired(&TypeDesc{Kind: KTuple, Items: ty.Items}, r, limits)
			if err != nil {
				return Value{}, true, err
			}
			rows = append(rows, row)
		}
		return Array(rows), true, nil
	case KVariant:
		var buf [1]byte
		eof, err := readFull(r, buf[:])
		if err != nil {
			return Value{}, true, err
		}
		if eof {
			return Value{}, false, nil
		}
		if buf[0] == 0xFF {
			return Value{Kind: KVariant, VariantNull: true}, true, nil
		}
		idx := int(buf[0])
		if idx >= len(ty.Variants) {
			return Value{}, true, newInvalidValue("Variant discriminant out of range")
		}
		inner, err := ReadValueRequired(ty.Variants[idx], r, limits)
		if err != nil {
			return Value{}, true, err
		}
		return Value{Kind: KVariant, VariantIndex: idx, VariantInner: &inner}, true, nil
	case KDynamic:
		name, ok, err := readLengthPrefixed(r, limits.MaxStringLen)
		if err != nil || !ok {
			return Value{}, ok, err
		}
		if len(name) == 0 {
			return Value{Kind: KDynamic, DynamicNull: true}, true, nil
		}
		innerTy, err := ParseTypeDesc(string(name))
		if err != nil {
			return Value{}, true, err
		}
		inner, err := ReadValueRequired(innerTy, r, limits)
		if err != nil {
			return Value{}, true, err
		}
		return Value{Kind: KDynamic, DynType: innerTy, DynValue: &inner}, true, nil
	case KJSON:
		typedCount, ok, err := readUvarint(r)
		if err != nil || !ok {
			return Value{}, ok, err
		}
		if int(typedCount) != len(ty.Items) {
			return Value{}, true, newInvalidValue("JSON typed-path count does not match descriptor")
		}
		typedValues := make([]Value, 0, len(ty.Items))
		for _, item := range ty.Items {
			v, err := ReadValueRequired(item.Type, r, limits)
			if err != nil {
				return Value{}, true, err
			}
			typedValues = append(typedValues, v)
		}
		dynCount, err := mustReadUvarint(r)
		if err != nil {
			return Value{}, true, err
		}
		dynPaths := make([]JSONPath, 0, clampCap(dynCount, limits))
		for i := uint64(0); i < dynCount; i++ {
			name, ok, err := readLengthPrefixed(r, limits.MaxStringLen)
			if err != nil {
				return Value{}, true, err
			}
			if !ok {
				return Value{}, true, newIOErr("unexpected EOF reading JSON path name", io.ErrUnexpectedEOF)
			}
			dv, err := ReadValueRequired(&TypeDesc{Kind: KDynamic}, r, limits)
			if err != nil {
				return Value{}, true, err
			}
			dynPaths = append(dynPaths, JSONPath{Name: string(name), Value: dv})
		}
		return Value{Kind: KJSON, TypedValues: typedValues, DynamicPaths: dynPaths}, true, nil
	default:
		return Value{}, true, newInternal("unreachable TypeDesc kind in ReadValueOptional")
	}
}

func clampCap(n uint64, limits DecodeLimits) uint64 {
	if limits.MaxSliceInitCap > 0 && n > uint64(limits.MaxSliceInitCap) {
		return uint64(limits.MaxSliceInitCap)
	}
	return n
}

func readFixedScalar(r io.Reader, n int, build func([]byte) Value) (Value, bool, error) {
	buf := make([]byte, n)
	eof, err := readFull(r, buf)
	if err != nil {
		return Value{}, true, err
	}
	if eof {
		return Value{}, false, nil
	}
	return build(buf), true, nil
}

func readCountedRequired(inner *TypeDesc, r io.Reader, limits DecodeLimits, length uint64) ([]Value, error) {
	values := make([]Value, 0, clampCap(length, limits))
	for i := uint64(0); i < length; i++ {
		v, err := ReadValueRequired(inner, r, limits)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func readTupleOptional(items []TupleItem, r io.Reader, limits DecodeLimits) (Value, bool, error) {
	if len(items) == 0 {
		return Value{Kind: KTuple}, true, nil
	}
	first, ok, err := ReadValueOptional(items[0].Type, r, limits)
	if err != nil || !ok {
		return Value{}, ok, err
	}
	values := make([]Value, 0, len(items))
	values = append(values, first)
	for _, item := range items[1:] {
		v, err := ReadValueRequired(item.Type, r, limits)
		if err != nil {
			return Value{}, true, err
		}
		values = append(values, v)
	}
	return Value{Kind: KTuple, Tuple: values}, true, nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// WriteValue writes v (of type ty) to w.
func WriteValue(ty *TypeDesc, v Value, w io.Writer) error {
	switch ty.Kind {
	case KUInt8:
		return writeFixedScalar(w, v, KUInt8, func(b []byte, s any) { b[0] = s.(uint8) }, 1)
	case KBool:
		bv, ok := v.Scalar.(bool)
		if v.Kind != KBool || !ok {
			return mismatch(ty, v)
		}
		var b byte
		if bv {
			b = 1
		}
		return writeBytes(w, []byte{b})
	case KUInt16:
		return writeFixedScalar(w, v, KUInt16, func(b []byte, s any) { binary.LittleEndian.PutUint16(b, s.(uint16)) }, 2)
	case KUInt32:
		return writeFixedScalar(w, v, KUInt32, func(b []byte, s any) { binary.LittleEndian.PutUint32(b, s.(uint32)) }, 4)
	case KUInt64:
		return writeFixedScalar(w, v, KUInt64, func(b []byte, s any) { binary.LittleEndian.PutUint64(b, s.(uint64)) }, 8)
	case KUInt128:
		return writeRawBytes(w, v, KUInt128, 16)
	case KUInt256:
		return writeRawBytes(w, v, KUInt256, 32)
	case KInt8:
		if v.Kind != KInt8 {
			return mismatch(ty, v)
		}
		return writeBytes(w, []byte{byte(v.Scalar.(int8))})
	case KInt16:
		return writeFixedScalar(w, v, KInt16, func(b []byte, s any) { binary.LittleEndian.PutUint16(b, uint16(s.(int16))) }, 2)
	case KInt32:
		return writeFixedScalar(w, v, KInt32, func(b []byte, s any) { binary.LittleEndian.PutUint32(b, uint32(s.(int32))) }, 4)
	case KInt64:
		return writeFixedScalar(w, v, KInt64, func(b []byte, s any) { binary.LittleEndian.PutUint64(b, uint64(s.(int64))) }, 8)
	case KInt128:
		return writeRawBytes(w, v, KInt128, 16)
	case KInt256:
		return writeRawBytes(w, v, KInt256, 32)
	case KFloat32:
		return writeFixedScalar(w, v, KFloat32, func(b []byte, s any) {
			binary.LittleEndian.PutUint32(b, math.Float32bits(s.(float32)))
		}, 4)
	case KFloat64:
		return writeFixedScalar(w, v, KFloat64, func(b []byte, s any) {
			binary.LittleEndian.PutUint64(b, math.Float64bits(s.(float64)))
		}, 8)
	case KString:
		if v.Kind != KString {
			return mismatch(ty, v)
		}
		return writeLengthPrefixed(w, v.Scalar.([]byte))
	case KFixedString:
		if v.Kind != KFixedString {
			return mismatch(ty, v)
		}
		b := v.Scalar.([]byte)
		if len(b) != ty.Length {
			return newInvalidValue("FixedString length mismatch")
		}
		return writeBytes(w, b)
	case KDate:
		return writeFixedScalar(w, v, KDate, func(b []byte, s any) { binary.LittleEndian.PutUint16(b, s.(uint16)) }, 2)
	case KDate32:
		return writeFixedScalar(w, v, KDate32, func(b []byte, s any) { binary.LittleEndian.PutUint32(b, uint32(s.(int32))) }, 4)
	case KDateTime:
		return writeFixedScalar(w, v, KDateTime, func(b []byte, s any) { binary.LittleEndian.PutUint32(b, s.(uint32)) }, 4)
	case KDateTime64:
		return writeFixedScalar(w, v, KDateTime64, func(b []byte, s any) { binary.LittleEndian.PutUint64(b, uint64(s.(int64))) }, 8)
	case KUuid:
		if v.Kind != KUuid {
			return mismatch(ty, v)
		}
		u := v.Scalar.(uuid.UUID)
		raw := [16]byte(u)
		reverse(raw[:8])
		reverse(raw[8:])
		return writeBytes(w, raw[:])
	case KIpv4:
		return writeFixedScalar(w, v, KIpv4, func(b []byte, s any) { binary.LittleEndian.PutUint32(b, s.(uint32)) }, 4)
	case KIpv6:
		if v.Kind != KIpv6 {
			return mismatch(ty, v)
		}
		addr := v.Scalar.([16]byte)
		return writeBytes(w, addr[:])
	case KDecimal32:
		return writeFixedScalar(w, v, KDecimal32, func(b []byte, s any) { binary.LittleEndian.PutUint32(b, uint32(s.(int32))) }, 4)
	case KDecimal64:
		return writeFixedScalar(w, v, KDecimal64, func(b []byte, s any) { binary.LittleEndian.PutUint64(b, uint64(s.(int64))) }, 8)
	case KDecimal128:
		return writeRawBytes(w, v, KDecimal128, 16)
	case KDecimal256:
		return writeRawBytes(w, v, KDecimal256, 32)
	case KDecimal:
		if v.Kind != KDecimal {
			return mismatch(ty, v)
		}
		switch ty.Bits {
		case Bits32:
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(v.Scalar.(int32)))
			return writeBytes(w, b[:])
		case Bits64:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v.Scalar.(int64)))
			return writeBytes(w, b[:])
		case Bits128:
			return writeRawBytesOf(w, v.Scalar.([]byte), 16)
		case Bits256:
			return writeRawBytesOf(w, v.Scalar.([]byte), 32)
		}
		return newInternal("unknown Decimal width")
	case KEnum8:
		if v.Kind != KEnum8 {
			return mismatch(ty, v)
		}
		return writeBytes(w, []byte{byte(v.Scalar.(int8))})
	case KEnum16:
		if v.Kind != KEnum16 {
			return mismatch(ty, v)
		}
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v.Scalar.(int16)))
		return writeBytes(w, b[:])
	case KNothing:
		return nil
	case KNullable:
		if v.Kind != KNullable {
			return mismatch(ty, v)
		}
		if v.Inner == nil {
			return writeBytes(w, []byte{1})
		}
		if err := writeBytes(w, []byte{0}); err != nil {
			return err
		}
		return WriteValue(ty.Inner, *v.Inner, w)
	case KLowCardinality:
		inner := v
		if v.Kind == KLowCardinality {
			if v.Inner == nil {
				return newInvalidValue("LowCardinality value missing inner value")
			}
			inner = *v.Inner
		}
		return WriteValue(ty.Inner, inner, w)
	case KArray:
		if v.Kind != KArray {
			return mismatch(ty, v)
		}
		if err := writeUvarint(w, uint64(len(v.Items))); err != nil {
			return err
		}
		for _, item := range v.Items {
			if err := WriteValue(ty.Inner, item, w); err != nil {
				return err
			}
		}
		return nil
	case KMap:
		if v.Kind != KMap {
			return mismatch(ty, v)
		}
		if err := writeUvarint(w, uint64(len(v.Entries))); err != nil {
			return err
		}
		for _, e := range v.Entries {
			if err := WriteValue(ty.Key, e.Key, w); err != nil {
				return err
			}
			if err := WriteValue(ty.Value, e.Value, w); err != nil {
				return err
			}
		}
		return nil
	case KTuple:
		if v.Kind != KTuple {
			return mismatch(ty, v)
		}
		return writeTupleItems(ty.Items, v.Tuple, w)
	case KNested:
		return writeNestedValue(ty.Items, v, w)
	case KVariant:
		if v.Kind != KVariant {
			return mismatch(ty, v)
		}
		if v.VariantNull {
			return writeBytes(w, []byte{0xFF})
		}
		if v.VariantIndex < 0 || v.VariantIndex >= len(ty.Variants) {
			return newInvalidValue("Variant index out of range")
		}
		if err := writeBytes(w, []byte{byte(v.VariantIndex)}); err != nil {
			return err
		}
		if v.VariantInner == nil {
			return newInvalidValue("Variant value missing inner value")
		}
		return WriteValue(ty.Variants[v.VariantIndex], *v.VariantInner, w)
	case KDynamic:
		if v.Kind != KDynamic {
			return mismatch(ty, v)
		}
		if v.DynamicNull {
			return writeLengthPrefixed(w, nil)
		}
		if v.DynType == nil || v.DynValue == nil {
			return newInvalidValue("Dynamic value missing type or inner value")
		}
		if err := writeLengthPrefixed(w, []byte(v.DynType.TypeName())); err != nil {
			return err
		}
		return WriteValue(v.DynType, *v.DynValue, w)
	case KJSON:
		if v.Kind != KJSON {
			return mismatch(ty, v)
		}
		if len(v.TypedValues) != len(ty.Items) {
			return newInvalidValue("JSON typed-path value count mismatch")
		}
		if err := writeUvarint(w, uint64(len(ty.Items))); err != nil {
			return err
		}
		for i, item := range ty.Items {
			if err := WriteValue(item.Type, v.TypedValues[i], w); err != nil {
				return err
			}
		}
		if err := writeUvarint(w, uint64(len(v.DynamicPaths))); err != nil {
			return err
		}
		for _, p := range v.DynamicPaths {
			if err := writeLengthPrefixed(w, []byte(p.Name)); err != nil {
				return err
			}
			if err := WriteValue(&TypeDesc{Kind: KDynamic}, p.Value, w); err != nil {
				return err
			}
		}
		return nil
	default:
		return newInternal("unreachable TypeDesc kind in WriteValue")
	}
}

func mismatch(ty *TypeDesc, v Value) error {
	return newTypeMismatch(ty.TypeName(), v.TypeName())
}

func writeBytes(w io.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return newIOErr("writing value", err)
	}
	return nil
}

func writeFixedScalar(w io.Writer, v Value, want DescKind, put func([]byte, any), n int) error {
	if v.Kind != want {
		return newTypeMismatch((&TypeDesc{Kind: want}).simpleName(), v.TypeName())
	}
	buf := make([]byte, n)
	put(buf, v.Scalar)
	return writeBytes(w, buf)
}

func writeRawBytes(w io.Writer, v Value, want DescKind, n int) error {
	if v.Kind != want {
		return newTypeMismatch((&TypeDesc{Kind: want}).simpleName(), v.TypeName())
	}
	return writeRawBytesOf(w, v.Scalar.([]byte), n)
}

func writeRawBytesOf(w io.Writer, b []byte, n int) error {
	if len(b) != n {
		return newInvalidValue("fixed-width value has the wrong byte length")
	}
	return writeBytes(w, b)
}

func writeTupleItems(items []TupleItem, values []Value, w io.Writer) error {
	if len(items) != len(values) {
		return newInvalidValue("Tuple length mismatch")
	}
	for i, item := range items {
		if err := WriteValue(item.Type, values[i], w); err != nil {
			return err
		}
	}
	return nil
}

// writeNestedValue performs the column-major rewrite: a row-major
// Array(Tuple) value is transposed into one Array(T_i) column per
// sub-field on the wire (spec §4.D/§9).
func writeNestedValue(items []TupleItem, v Value, w io.Writer) error {
	if len(items) == 0 {
		return newInvalidValue("Nested expects at least one field")
	}
	if v.Kind != KArray {
		return newTypeMismatch("Array(Tuple(...))", v.TypeName())
	}
	rows := v.Items
	if err := writeUvarint(w, uint64(len(rows))); err != nil {
		return err
	}
	columns := make([][]Value, len(items))
	for i := range columns {
		columns[i] = make([]Value, 0, len(rows))
	}
	for _, row := range rows {
		if row.Kind != KTuple {
			return newTypeMismatch("Tuple", row.TypeName())
		}
		if len(row.Tuple) != len(items) {
			return newInvalidValue("Nested tuple length mismatch")
		}
		for i, iv := range row.Tuple {
			columns[i] = append(columns[i], iv)
		}
	}
	for i, item := range items {
		if !item.HasName || item.Name == "" {
			return newInvalidValue("Nested fields must have names when writing")
		}
		if err := writeUvarint(w, uint64(len(rows))); err != nil {
			return err
		}
		for _, cv := range columns[i] {
			if err := WriteValue(item.Type, cv, w); err != nil {
				return err
			}
		}
	}
	return nil
}
