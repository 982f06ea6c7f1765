package rowbinary

import "strings"

// Field is one named, typed column of a Schema.
type Field struct {
	Name string
	Type *TypeDesc
}

// Schema is an ordered list of fields, matching the column order a row's
// values appear in. Field order carries meaning: it is the row's
// positional shape as well as the header's name/type order.
type Schema struct {
	fields []Field
}

// NewSchema builds a Schema from fields, in order.
func NewSchema(fields []Field) Schema {
	return Schema{fields: append([]Field(nil), fields...)}
}

// FromTypeStrings parses a schema from name/type-string pairs, in the
// style of a DESCRIBE TABLE result.
func FromTypeStrings(pairs [][2]string) (Schema, error) {
	fields := make([]Field, 0, len(pairs))
	for _, p := range pairs {
		ty, err := ParseTypeDesc(p[1])
		if err != nil {
			return Schema{}, err
		}
		fields = append(fields, Field{Name: p[0], Type: ty})
	}
	return NewSchema(fields), nil
}

// Len returns the number of fields.
func (s Schema) Len() int { return len(s.fields) }

// IsEmpty reports whether the schema has no fields.
func (s Schema) IsEmpty() bool { return len(s.fields) == 0 }

// Fields returns the schema's fields in order. The returned slice is a
// copy; mutating it does not affect the schema.
func (s Schema) Fields() []Field { return append([]Field(nil), s.fields...) }

// FieldAt returns the field at position i.
func (s Schema) FieldAt(i int) (Field, bool) {
	if i < 0 || i >= len(s.fields) {
		return Field{}, false
	}
	return s.fields[i], true
}

// FieldByName returns the field with the given name, if present.
func (s Schema) FieldByName(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// EnsureNestedNames verifies every Nested field's sub-items carry names
// (spec §3.1 invariant: Nested sub-fields must all be named so the
// writer can expand them into named wire columns).
func (s Schema) EnsureNestedNames() error {
	for _, f := range s.fields {
		if err := ensureNestedNamesIn(f.Type); err != nil {
			return err
		}
	}
	return nil
}

func ensureNestedNamesIn(t *TypeDesc) error {
	switch t.Kind {
	case KNested:
		for _, item := range t.Items {
			if !item.HasName || item.Name == "" {
				return newUnsupportedCombination("Nested fields must all be named")
			}
		}
	case KArray, KNullable, KLowCardinality:
		if t.Inner != nil {
			return ensureNestedNamesIn(t.Inner)
		}
	case KMap:
		if err := ensureNestedNamesIn(t.Key); err != nil {
			return err
		}
		return ensureNestedNamesIn(t.Value)
	case KTuple:
		for _, item := range t.Items {
			if err := ensureNestedNamesIn(item.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExpandForWriting rewrites every Nested field into its wire-column
// form: a Nested(a T1, b T2) field named "n" becomes two Array fields
// named "n.a" and "n.b", matching the column-major layout writeNestedValue
// produces on the wire (spec §4.D/§9 Nested representation).
func (s Schema) ExpandForWriting() Schema {
	out := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, expandField(f)...)
	}
	return NewSchema(out)
}

func expandField(f Field) []Field {
	if f.Type.Kind != KNested {
		return []Field{f}
	}
	expanded := make([]Field, 0, len(f.Type.Items))
	for _, item := range f.Type.Items {
		expanded = append(expanded, Field{
			Name: f.Name + "." + item.Name,
			Type: &TypeDesc{Kind: KArray, Inner: item.Type},
		})
	}
	return expanded
}

// fieldNames returns the schema's field names in order, used for the
// RowBinaryWithNames header cross-check.
func (s Schema) fieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
