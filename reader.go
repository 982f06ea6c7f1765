package rowbinary

import "io"

// RowBinaryFormat selects which of the three wire variants a reader or
// writer speaks (spec §2).
type RowBinaryFormat int

const (
	// RowBinary carries no header at all; the schema must be supplied
	// out of band.
	RowBinary RowBinaryFormat = iota
	// RowBinaryWithNames prefixes the stream with a column-count varint
	// and one length-prefixed name per column.
	RowBinaryWithNames
	// RowBinaryWithNamesAndTypes additionally prefixes each column's
	// type as a length-prefixed type-name string.
	RowBinaryWithNamesAndTypes
)

// Row is a single decoded row, one Value per schema field in order.
type Row []Value

// RowBinaryReader streams rows out of r according to format, cross-
// checking against an optional expected schema.
type RowBinaryReader struct {
	inner      io.Reader
	format     RowBinaryFormat
	schema     *Schema
	headerRead bool
	limits     DecodeLimits
}

// NewReader creates a reader with no expected schema.
// RowBinaryWithNamesAndTypes populates the schema from the header; plain
// RowBinary and RowBinaryWithNames need a reader built with
// NewReaderWithSchema.
func NewReader(r io.Reader, format RowBinaryFormat) *RowBinaryReader {
	return &RowBinaryReader{inner: r, format: format, limits: DefaultLimits()}
}

// NewReaderWithSchema creates a reader with an expected schema, used to
// cross-check (or supply, for plain RowBinary) the column layout.
func NewReaderWithSchema(r io.Reader, format RowBinaryFormat, schema Schema) *RowBinaryReader {
	return &RowBinaryReader{inner: r, format: format, schema: &schema, limits: DefaultLimits()}
}

// WithLimits overrides the reader's DecodeLimits. Must be called before
// the first read.
func (rb *RowBinaryReader) WithLimits(limits DecodeLimits) *RowBinaryReader {
	rb.limits = limits
	return rb
}

// ReadHeader reads and validates the format's header, if any. It is
// idempotent: calling it more than once after the first successful call
// is a no-op. RowBinaryReader's other methods call it automatically.
func (rb *RowBinaryReader) ReadHeader() error {
	if rb.headerRead {
		return nil
	}
	if rb.format == RowBinary {
		rb.headerRead = true
		return nil
	}

	columnCount, err := mustReadUvarint(rb.inner)
	if err != nil {
		return err
	}

	names := make([]string, 0, columnCount)
	for i := uint64(0); i < columnCount; i++ {
		name, ok, err := readLengthPrefixed(rb.inner, rb.limits.MaxStringLen)
		if err != nil {
			return err
		}
		if !ok {
			return newIOErr("unexpected EOF reading column name", io.ErrUnexpectedEOF)
		}
		names = append(names, string(name))
	}

	var headerTypes []*TypeDesc
	if rb.format == RowBinaryWithNamesAndTypes {
		headerTypes = make([]*TypeDesc, 0, columnCount)
		for i := uint64(0); i < columnCount; i++ {
			typeName, ok, err := readLengthPrefixed(rb.inner, rb.limits.MaxStringLen)
			if err != nil {
				return err
			}
			if !ok {
				return newIOErr("unexpected EOF reading column type", io.ErrUnexpectedEOF)
			}
			ty, err := ParseTypeDesc(string(typeName))
			if err != nil {
				return err
			}
			headerTypes = append(headerTypes, ty)
		}
	}

	if headerTypes != nil {
		fields := make([]Field, len(names))
		for i, n := range names {
			fields[i] = Field{Name: n, Type: headerTypes[i]}
		}
		headerSchema := NewSchema(fields)
		if rb.schema != nil {
			if rb.schema.Len() != headerSchema.Len() {
				return newInvalidValue("header column count mismatch")
			}
		}
		rb.schema = &headerSchema
	} else if rb.schema != nil {
		if rb.schema.Len() != len(names) {
			return newInvalidValue("header column count mismatch")
		}
		if !sameNames(rb.schema.fieldNames(), names) {
			return newInvalidValue("header column names mismatch: expected [" +
				joinNames(rb.schema.fieldNames()) + "], got [" + joinNames(names) + "]")
		}
	} else {
		return newInvalidValue("schema required to read RowBinaryWithNames")
	}

	rb.headerRead = true
	return nil
}

// ReadRow reads the next row. It returns (nil, false, nil) at a clean
// end of stream (the row boundary, signalled by EOF on the first field
// of the row).
func (rb *RowBinaryReader) ReadRow() (Row, bool, error) {
	if err := rb.ReadHeader(); err != nil {
		return nil, false, err
	}
	if rb.schema == nil {
		return nil, false, newInvalidValue("schema required to read rows")
	}
	if rb.schema.IsEmpty() {
		return nil, false, nil
	}

	fields := rb.schema.Fields()
	row := make(Row, 0, len(fields))
	for i, f := range fields {
		if i == 0 {
			v, ok, err := ReadValueOptional(f.Type, rb.inner, rb.limits)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
			row = append(row, v)
			continue
		}
		v, err := ReadValueRequired(f.Type, rb.inner, rb.limits)
		if err != nil {
			return nil, false, err
		}
		row = append(row, v)
	}
	return row, true, nil
}

// ReadRowInto reads the next row into row, reusing its backing array
// when it has enough capacity. Returns false at a clean end of stream.
func (rb *RowBinaryReader) ReadRowInto(row *Row) (bool, error) {
	if err := rb.ReadHeader(); err != nil {
		return false, err
	}
	if rb.schema == nil {
		return false, newInvalidValue("schema required to read rows")
	}
	if rb.schema.IsEmpty() {
		*row = (*row)[:0]
		return false, nil
	}

	fields := rb.schema.Fields()
	*row = (*row)[:0]
	for i, f := range fields {
		if i == 0 {
			v, ok, err := ReadValueOptional(f.Type, rb.inner, rb.limits)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			*row = append(*row, v)
			continue
		}
		v, err := ReadValueRequired(f.Type, rb.inner, rb.limits)
		if err != nil {
			return false, err
		}
		*row = append(*row, v)
	}
	return true, nil
}

// Rows returns an iterator-style callback sequence over decoded rows,
// stopping at the first clean end of stream or error.
func (rb *RowBinaryReader) Rows(yield func(Row, error) bool) {
	for {
		row, ok, err := rb.ReadRow()
		if err != nil {
			yield(nil, err)
			return
		}
		if !ok {
			return
		}
		if !yield(row, nil) {
			return
		}
	}
}

// Schema returns the reader's current schema, populated once the
// header has been read (or supplied up front for plain RowBinary).
func (rb *RowBinaryReader) Schema() (Schema, bool) {
	if rb.schema == nil {
		return Schema{}, false
	}
	return *rb.schema, true
}
