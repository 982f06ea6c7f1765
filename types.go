// Package rowbinary implements ClickHouse's RowBinary family of wire
// formats: plain RowBinary, RowBinaryWithNames, and
// RowBinaryWithNamesAndTypes. It provides a type-descriptor parser, a
// tagged value model, a recursive value codec, and streaming and
// seekable row readers/writers.
package rowbinary

import (
	"sort"
	"strconv"
	"strings"
)

// DescKind tags a TypeDesc variant. Mirrors the teacher's WireType
// const-iota tagging so dispatch over the recursive tree stays a type
// switch rather than a string-keyed lookup.
type DescKind int

const (
	KUInt8 DescKind = iota
	KUInt16
	KUInt32
	KUInt64
	KUInt128
	KUInt256
	KInt8
	KInt16
	KInt32
	KInt64
	KInt128
	KInt256
	KFloat32
	KFloat64
	KBool
	KString
	KFixedString
	KDate
	KDate32
	KDateTime
	KDateTime64
	KUuid
	KIpv4
	KIpv6
	KDecimal32
	KDecimal64
	KDecimal128
	KDecimal256
	KDecimal
	KEnum8
	KEnum16
	KNothing
	KNullable
	KLowCardinality
	KArray
	KMap
	KTuple
	KNested
	KVariant
	KDynamic
	KJSON
)

// DecimalBits names the width of a generic Decimal(P,S) descriptor.
type DecimalBits int

const (
	Bits32 DecimalBits = 32
	Bits64 DecimalBits = 64
	Bits128 DecimalBits = 128
	Bits256 DecimalBits = 256
)

// EnumMember is one name/value pair of an Enum8/Enum16 mapping.
type EnumMember struct {
	Name  string
	Value int64
}

// TupleItem is one element of a Tuple, Nested, or JsonObject typed-path
// list: an optional name plus its TypeDesc.
type TupleItem struct {
	Name    string
	HasName bool
	Type    *TypeDesc
}

// TypeDesc is the immutable tagged tree of a parsed ClickHouse type. See
// spec §3.1. Once constructed (by ParseTypeDesc or directly) it is never
// mutated. Schemas, readers and writers keep the *TypeDesc pointers they
// are given and do not clone them; Clone makes an independent deep copy
// for callers that need one.
type TypeDesc struct {
	Kind DescKind

	// FixedString
	Length int

	// DateTime / DateTime64
	Timezone    string
	HasTimezone bool

	// DateTime64 / Decimal*
	Precision uint8
	Scale     int

	// Decimal (generic)
	Bits DecimalBits

	// Enum8 / Enum16
	Enum []EnumMember

	// Nullable / LowCardinality / Array
	Inner *TypeDesc

	// Map
	Key   *TypeDesc
	Value *TypeDesc

	// Tuple / Nested / JsonObject (typed paths)
	Items []TupleItem

	// Variant: type-name-sorted, deduplicated list of alternatives.
	Variants []*TypeDesc
}

// Clone returns a deep, independent copy of t.
func (t *TypeDesc) Clone() *TypeDesc {
	if t == nil {
		return nil
	}
	out := *t
	out.Inner = t.Inner.Clone()
	out.Key = t.Key.Clone()
	out.Value = t.Value.Clone()
	if t.Enum != nil {
		out.Enum = append([]EnumMember(nil), t.Enum...)
	}
	if t.Items != nil {
		out.Items = make([]TupleItem, len(t.Items))
		for i, it := range t.Items {
			out.Items[i] = TupleItem{Name: it.Name, HasName: it.HasName, Type: it.Type.Clone()}
		}
	}
	if t.Variants != nil {
		out.Variants = make([]*TypeDesc, len(t.Variants))
		for i, v := range t.Variants {
			out.Variants[i] = v.Clone()
		}
	}
	return &out
}

// Equal reports structural equality between two descriptors.
func (t *TypeDesc) Equal(o *TypeDesc) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.TypeName() == o.TypeName()
}

// TypeName renders the canonical textual form of t. ParseTypeDesc(T.TypeName())
// must equal T for every valid T (spec §8.1).
func (t *TypeDesc) TypeName() string {
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
		return "FixedString(" + strconv.Itoa(t.Length) + ")"
	case KDate:
		return "Date"
	case KDate32:
		return "Date32"
	case KDateTime:
		if t.HasTimezone {
			return "DateTime('" + t.Timezone + "')"
		}
		return "DateTime"
	case KDateTime64:
		if t.HasTimezone {
			return "DateTime64(" + strconv.Itoa(int(t.Precision)) + ", '" + t.Timezone + "')"
		}
		return "DateTime64(" + strconv.Itoa(int(t.Precision)) + ")"
	case KUuid:
		return "UUID"
	case KIpv4:
		return "IPv4"
	case KIpv6:
		return "IPv6"
	case KDecimal32:
		return "Decimal32(" + strconv.Itoa(t.Scale) + ")"
	case KDecimal64:
		return "Decimal64(" + strconv.Itoa(t.Scale) + ")"
	case KDecimal128:
		return "Decimal128(" + strconv.Itoa(t.Scale) + ")"
	case KDecimal256:
		return "Decimal256(" + strconv.Itoa(t.Scale) + ")"
	case KDecimal:
		return "Decimal(" + strconv.Itoa(int(t.Precision)) + ", " + strconv.Itoa(t.Scale) + ")"
	case KEnum8:
		return "Enum8" + renderEnumMembers(t.Enum)
	case KEnum16:
		return "Enum16" + renderEnumMembers(t.Enum)
	case KNothing:
		return "Nothing"
	case KNullable:
		return "Nullable(" + t.Inner.TypeName() + ")"
	case KLowCardinality:
		return "LowCardinality(" + t.Inner.TypeName() + ")"
	case KArray:
		return "Array(" + t.Inner.TypeName() + ")"
	case KMap:
		return "Map(" + t.Key.TypeName() + ", " + t.Value.TypeName() + ")"
	case KTuple:
		return "Tuple(" + renderItems(t.Items) + ")"
	case KNested:
		return "Nested(" + renderItems(t.Items) + ")"
	case KVariant:
		parts := make([]string, len(t.Variants))
		for i, v := range t.Variants {
			parts[i] = v.TypeName()
		}
		return "Variant(" + strings.Join(parts, ", ") + ")"
	case KDynamic:
		return "Dynamic"
	case KJSON:
		if len(t.Items) == 0 {
			return "JSON"
		}
		return "JSON(" + renderItems(t.Items) + ")"
	default:
		return "Unknown"
	}
}

func renderItems(items []TupleItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		if it.HasName {
			parts[i] = it.Name + " " + it.Type.TypeName()
		} else {
			parts[i] = it.Type.TypeName()
		}
	}
	return strings.Join(parts, ", ")
}

func renderEnumMembers(members []EnumMember) string {
	if len(members) == 0 {
		return "()"
	}
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = "'" + m.Name + "' = " + strconv.FormatInt(m.Value, 10)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ParseTypeDesc parses a ClickHouse type string into a TypeDesc, enforcing
// the compatibility rules of spec §3.1. See the informal grammar in §4.B.
func ParseTypeDesc(input string) (*TypeDesc, error) {
	t, err := parseType(strings.TrimSpace(input))
	if err != nil {
		return nil, err
	}
	return t, nil
}

func parseType(s string) (*TypeDesc, error) {
	s = strings.TrimSpace(s)
	name, argsStr, hasArgs := splitAtomArgs(s)

	switch name {
	case "UInt8":
		return &TypeDesc{Kind: KUInt8}, nil
	case "UInt16":
		return &TypeDesc{Kind: KUInt16}, nil
	case "UInt32":
		return &TypeDesc{Kind: KUInt32}, nil
	case "UInt64":
		return &TypeDesc{Kind: KUInt64}, nil
	case "UInt128":
		return &TypeDesc{Kind: KUInt128}, nil
	case "UInt256":
		return &TypeDesc{Kind: KUInt256}, nil
	case "Int8":
		return &TypeDesc{Kind: KInt8}, nil
	case "Int16":
		return &TypeDesc{Kind: KInt16}, nil
	case "Int32":
		return &TypeDesc{Kind: KInt32}, nil
	case "Int64":
		return &TypeDesc{Kind: KInt64}, nil
	case "Int128":
		return &TypeDesc{Kind: KInt128}, nil
	case "Int256":
		return &TypeDesc{Kind: KInt256}, nil
	case "Float32":
		return &TypeDesc{Kind: KFloat32}, nil
	case "Float64":
		return &TypeDesc{Kind: KFloat64}, nil
	case "Bool":
		return &TypeDesc{Kind: KBool}, nil
	case "String":
		return &TypeDesc{Kind: KString}, nil
	case "Date":
		return &TypeDesc{Kind: KDate}, nil
	case "Date32":
		return &TypeDesc{Kind: KDate32}, nil
	case "UUID":
		return &TypeDesc{Kind: KUuid}, nil
	case "IPv4":
		return &TypeDesc{Kind: KIpv4}, nil
	case "IPv6":
		return &TypeDesc{Kind: KIpv6}, nil
	case "Nothing":
		return &TypeDesc{Kind: KNothing}, nil
	case "Dynamic":
		return &TypeDesc{Kind: KDynamic}, nil
	case "JSON":
		if !hasArgs {
			return &TypeDesc{Kind: KJSON}, nil
		}
		items, err := parseJSONArgs(argsStr)
		if err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: KJSON, Items: items}, nil
	case "DateTime":
		if !hasArgs {
			return &TypeDesc{Kind: KDateTime}, nil
		}
		tz, err := parseQuoted(argsStr)
		if err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: KDateTime, HasTimezone: true, Timezone: tz}, nil
	case "DateTime64":
		if !hasArgs {
			return nil, newInvalidValue("DateTime64 requires a precision argument")
		}
		return parseDateTime64(argsStr)
	case "FixedString":
		if !hasArgs {
			return nil, newInvalidValue("FixedString requires a length argument")
		}
		n, err := strconv.Atoi(strings.TrimSpace(argsStr))
		if err != nil {
			return nil, newInvalidValue("invalid FixedString length")
		}
		if n <= 0 {
			return nil, newInvalidValue("FixedString length must be positive")
		}
		return &TypeDesc{Kind: KFixedString, Length: n}, nil
	case "Decimal32", "Decimal64", "Decimal128", "Decimal256":
		if !hasArgs {
			return nil, newInvalidValue(name + " requires a scale argument")
		}
		return parseFixedDecimal(name, argsStr)
	case "Decimal":
		if !hasArgs {
			return nil, newInvalidValue("Decimal requires precision and scale arguments")
		}
		return parseGenericDecimal(argsStr)
	case "Enum8", "Enum16":
		if !hasArgs {
			return nil, newInvalidValue(name + " requires a mapping")
		}
		members, err := parseEnumMembers(argsStr)
		if err != nil {
			return nil, err
		}
		k := KEnum8
		if name == "Enum16" {
			k = KEnum16
		}
		return &TypeDesc{Kind: k, Enum: members}, nil
	case "Nullable":
		if !hasArgs {
			return nil, newInvalidValue("Nullable requires an inner type")
		}
		inner, err := parseType(argsStr)
		if err != nil {
			return nil, err
		}
		if inner.Kind == KNullable {
			return nil, newUnsupportedCombination("Nullable(Nullable(T)) is unsupported")
		}
		return &TypeDesc{Kind: KNullable, Inner: inner}, nil
	case "LowCardinality":
		if !hasArgs {
			return nil, newInvalidValue("LowCardinality requires an inner type")
		}
		inner, err := parseType(argsStr)
		if err != nil {
			return nil, err
		}
		if !lowCardinalityAllowed(inner) {
			return nil, newUnsupportedCombination("LowCardinality(" + inner.TypeName() + ") is unsupported")
		}
		return &TypeDesc{Kind: KLowCardinality, Inner: inner}, nil
	case "Array":
		if !hasArgs {
			return nil, newInvalidValue("Array requires an inner type")
		}
		inner, err := parseType(argsStr)
		if err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: KArray, Inner: inner}, nil
	case "Map":
		if !hasArgs {
			return nil, newInvalidValue("Map requires key and value types")
		}
		parts := splitArgsAtDepth0(argsStr)
		if len(parts) != 2 {
			return nil, newInvalidValue("Map requires exactly two type arguments")
		}
		key, err := parseType(parts[0])
		if err != nil {
			return nil, err
		}
		val, err := parseType(parts[1])
		if err != nil {
			return nil, err
		}
		if mapKeyRejectsNullable(key) {
			return nil, newUnsupportedCombination("Map key may not be Nullable")
		}
		return &TypeDesc{Kind: KMap, Key: key, Value: val}, nil
	case "Tuple":
		if !hasArgs {
			return &TypeDesc{Kind: KTuple}, nil
		}
		items, err := parseTupleItems(argsStr, false)
		if err != nil {
			return nil, err
		}
		return &TypeDesc{Kind: KTuple, Items: items}, nil
	case "Nested":
		if !hasArgs {
			return nil, newInvalidValue("Nested requires named fields")
		}
		items, err := parseTupleItems(argsStr, true)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if !it.HasName || it.Name == "" {
				return nil, newInvalidValue("Nested fields must be named")
			}
		}
		return &TypeDesc{Kind: KNested, Items: items}, nil
	case "Variant":
		if !hasArgs {
			return nil, newInvalidValue("Variant requires at least one type")
		}
		parts := splitArgsAtDepth0(argsStr)
		items := make([]*TypeDesc, 0, len(parts))
		for _, p := range parts {
			it, err := parseType(p)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		}
		items = sortDedupeVariants(items)
		return &TypeDesc{Kind: KVariant, Variants: items}, nil
	default:
		return nil, newUnsupportedType(s)
	}
}

// splitAtomArgs splits "Name(args)" into ("Name", "args", true), or
// ("Name", "", false) when there are no parentheses.
func splitAtomArgs(s string) (name, args string, hasArgs bool) {
	idx := strings.IndexByte(s, '(')
	if idx < 0 {
		return strings.TrimSpace(s), "", false
	}
	if !strings.HasSuffix(s, ")") {
		return strings.TrimSpace(s), "", false
	}
	return strings.TrimSpace(s[:idx]), s[idx+1 : len(s)-1], true
}

// splitArgsAtDepth0 splits on commas that occur at paren-depth zero and
// outside single-quoted strings.
func splitArgsAtDepth0(s string) []string {
	var parts []string
	depth := 0
	inQuote := false
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inQuote:
			inQuote = true
		case c == '\'' && inQuote:
			inQuote = false
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[last:i]))
			last = i + 1
		}
	}
	parts = append(parts, strings.TrimSpace(s[last:]))
	return parts
}

func parseQuoted(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", newInvalidValue("expected a quoted string")
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return "", newInvalidValue("quoted string must not be empty")
	}
	return inner, nil
}

func parseDateTime64(args string) (*TypeDesc, error) {
	parts := splitArgsAtDepth0(args)
	if len(parts) == 0 || len(parts) > 2 {
		return nil, newInvalidValue("DateTime64 takes 1 or 2 arguments")
	}
	precision, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || precision < 0 || precision > 9 {
		return nil, newInvalidValue("DateTime64 precision must be in 0..=9")
	}
	desc := &TypeDesc{Kind: KDateTime64, Precision: uint8(precision)}
	if len(parts) == 2 {
		tz, err := parseQuoted(parts[1])
		if err != nil {
			return nil, err
		}
		desc.HasTimezone = true
		desc.Timezone = tz
	}
	return desc, nil
}

func parseFixedDecimal(name, args string) (*TypeDesc, error) {
	parts := splitArgsAtDepth0(args)
	var precision, scale int
	var err error
	switch len(parts) {
	case 1:
		scale, err = strconv.Atoi(strings.TrimSpace(parts[0]))
		precision = defaultDecimalPrecision(name)
	case 2:
		precision, err = strconv.Atoi(strings.TrimSpace(parts[0]))
		if err == nil {
			scale, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		}
	default:
		return nil, newInvalidValue(name + " takes 1 or 2 arguments")
	}
	if err != nil {
		return nil, newInvalidValue("invalid " + name + " arguments")
	}
	var kind DescKind
	switch name {
	case "Decimal32":
		kind = KDecimal32
	case "Decimal64":
		kind = KDecimal64
	case "Decimal128":
		kind = KDecimal128
	case "Decimal256":
		kind = KDecimal256
	}
	return &TypeDesc{Kind: kind, Precision: uint8(precision), Scale: scale}, nil
}

func defaultDecimalPrecision(name string) int {
	switch name {
	case "Decimal32":
		return 9
	case "Decimal64":
		return 18
	case "Decimal128":
		return 38
	case "Decimal256":
		return 76
	}
	return 0
}

func parseGenericDecimal(args string) (*TypeDesc, error) {
	parts := splitArgsAtDepth0(args)
	if len(parts) != 2 {
		return nil, newInvalidValue("Decimal requires precision and scale")
	}
	precision, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, newInvalidValue("invalid Decimal precision")
	}
	scale, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, newInvalidValue("invalid Decimal scale")
	}
	var bits DecimalBits
	switch {
	case precision <= 9:
		bits = Bits32
	case precision <= 18:
		bits = Bits64
	case precision <= 38:
		bits = Bits128
	case precision <= 76:
		bits = Bits256
	default:
		return nil, newInvalidValue("Decimal precision too large")
	}
	return &TypeDesc{Kind: KDecimal, Precision: uint8(precision), Scale: scale, Bits: bits}, nil
}

func parseEnumMembers(args string) ([]EnumMember, error) {
	parts := splitArgsAtDepth0(args)
	members := make([]EnumMember, 0, len(parts))
	for _, p := range parts {
		eq := strings.LastIndexByte(p, '=')
		if eq < 0 {
			return nil, newInvalidValue("invalid Enum member, expected 'name' = value")
		}
		name, err := parseQuoted(strings.TrimSpace(p[:eq]))
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseInt(strings.TrimSpace(p[eq+1:]), 10, 64)
		if err != nil {
			return nil, newInvalidValue("invalid Enum member value")
		}
		members = append(members, EnumMember{Name: name, Value: value})
	}
	return members, nil
}

// parseTupleItems parses a comma-separated argument list as Tuple/Nested
// items, distinguishing "NAME TYPE" from a bare "TYPE" by attempting to
// parse the remainder after the first identifier as a type.
func parseTupleItems(args string, forceNamed bool) ([]TupleItem, error) {
	parts := splitArgsAtDepth0(args)
	items := make([]TupleItem, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if name, rest, ok := splitNameAndType(p); ok {
			inner, err := parseType(rest)
			if err != nil {
				return nil, err
			}
			items = append(items, TupleItem{Name: name, HasName: true, Type: inner})
			continue
		}
		if forceNamed {
			return nil, newInvalidValue("expected a named field")
		}
		inner, err := parseType(p)
		if err != nil {
			return nil, err
		}
		items = append(items, TupleItem{Type: inner})
	}
	return items, nil
}

// splitNameAndType detects a leading unquoted identifier followed by
// whitespace and a type string that parses successfully.
func splitNameAndType(s string) (name, rest string, ok bool) {
	i := 0
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	if i == 0 || i == len(s) {
		return "", "", false
	}
	if s[i] != ' ' && s[i] != '\t' {
		return "", "", false
	}
	candidateName := s[:i]
	candidateRest := strings.TrimSpace(s[i:])
	if candidateRest == "" {
		return "", "", false
	}
	if _, err := parseType(candidateRest); err != nil {
		return "", "", false
	}
	return candidateName, candidateRest, true
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func parseJSONArgs(args string) ([]TupleItem, error) {
	parts := splitArgsAtDepth0(args)
	items := make([]TupleItem, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || strings.ContainsRune(p, '=') {
			// Configuration knob (max_dynamic_paths=..., etc); not a typed path.
			continue
		}
		name, rest, ok := splitNameAndType(p)
		if !ok {
			continue
		}
		inner, err := parseType(rest)
		if err != nil {
			return nil, err
		}
		items = append(items, TupleItem{Name: name, HasName: true, Type: inner})
	}
	return items, nil
}

func sortDedupeVariants(items []*TypeDesc) []*TypeDesc {
	sort.Slice(items, func(i, j int) bool { return items[i].TypeName() < items[j].TypeName() })
	out := items[:0]
	var lastName string
	first := true
	for _, it := range items {
		name := it.TypeName()
		if !first && name == lastName {
			continue
		}
		out = append(out, it)
		lastName = name
		first = false
	}
	return out
}

// lowCardinalityAllowed reports whether inner is a valid LowCardinality
// payload: String, FixedString, a numeric scalar up to 64 bits, Date,
// DateTime, or a Nullable wrapping one of those. ClickHouse itself
// allows LowCardinality(Nullable(T)) for exactly these T, so the
// Nullable case is unwrapped one level before the scalar check.
func lowCardinalityAllowed(t *TypeDesc) bool {
	if t.Kind == KNullable {
		return lowCardinalityScalarAllowed(t.Inner)
	}
	return lowCardinalityScalarAllowed(t)
}

func lowCardinalityScalarAllowed(t *TypeDesc) bool {
	switch t.Kind {
	case KString, KFixedString,
		KUInt8, KUInt16, KUInt32, KUInt64,
		KInt8, KInt16, KInt32, KInt64,
		KFloat32, KFloat64,
		KDate, KDateTime:
		return true
	default:
		return false
	}
}

// mapKeyRejectsNullable reports whether key (directly, or through a
// LowCardinality wrapper) is Nullable.
func mapKeyRejectsNullable(key *TypeDesc) bool {
	if key.Kind == KNullable {
		return true
	}
	if key.Kind == KLowCardinality {
		return mapKeyRejectsNullable(key.Inner)
	}
	return false
}
