package rowbinary

import "io"

// RowBinaryWriter streams rows into w according to format, writing the
// header (if the format has one) before the first row.
type RowBinaryWriter struct {
	inner         io.Writer
	format        RowBinaryFormat
	schema        Schema
	wireSchema    Schema
	headerWritten bool
}

// NewWriter creates a writer for format and schema. schema describes
// the row shape callers pass to WriteRow; wire-visible columns (after
// Nested expansion) are computed once up front.
func NewWriter(w io.Writer, format RowBinaryFormat, schema Schema) *RowBinaryWriter {
	return &RowBinaryWriter{
		inner:      w,
		format:     format,
		schema:     schema,
		wireSchema: schema.ExpandForWriting(),
	}
}

// WriteHeader writes the format's header, if any. Idempotent: a second
// call is a no-op.
func (rw *RowBinaryWriter) WriteHeader() error {
	if rw.headerWritten {
		return nil
	}
	if err := rw.schema.EnsureNestedNames(); err != nil {
		return err
	}
	if rw.format != RowBinary {
		fields := rw.wireSchema.Fields()
		if err := writeUvarint(rw.inner, uint64(len(fields))); err != nil {
			return err
		}
		for _, f := range fields {
			if err := writeLengthPrefixed(rw.inner, []byte(f.Name)); err != nil {
				return err
			}
		}
		if rw.format == RowBinaryWithNamesAndTypes {
			for _, f := range fields {
				if err := writeLengthPrefixed(rw.inner, []byte(f.Type.TypeName())); err != nil {
					return err
				}
			}
		}
	}
	rw.headerWritten = true
	return nil
}

// WriteRow writes a single row, matching the writer's schema field for
// field and in order.
func (rw *RowBinaryWriter) WriteRow(row Row) error {
	if err := rw.WriteHeader(); err != nil {
		return err
	}
	fields := rw.schema.Fields()
	if len(row) != len(fields) {
		return newInvalidValue("row length does not match schema")
	}
	for i, f := range fields {
		if err := WriteValue(f.Type, row[i], rw.inner); err != nil {
			return err
		}
	}
	return nil
}

// WriteRows writes every row in rows, in order, stopping at the first
// error.
func (rw *RowBinaryWriter) WriteRows(rows []Row) error {
	for _, row := range rows {
		if err := rw.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying writer, if it implements an interface
// with a Flush method (e.g. *bufio.Writer).
func (rw *RowBinaryWriter) Flush() error {
	type flusher interface{ Flush() error }
	if f, ok := rw.inner.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Reset replaces the underlying writer and clears header state, so the
// next WriteHeader/WriteRow call re-emits the header into the new sink.
func (rw *RowBinaryWriter) Reset(w io.Writer) {
	rw.inner = w
	rw.headerWritten = false
}

// IntoInner returns the underlying writer.
func (rw *RowBinaryWriter) IntoInner() io.Writer {
	return rw.inner
}

// TakeInner returns the underlying writer and replaces it with nil,
// clearing header state the same way Reset does. Unlike IntoInner,
// the writer is left without a sink until Reset supplies a new one.
func (rw *RowBinaryWriter) TakeInner() io.Writer {
	old := rw.inner
	rw.inner = nil
	rw.headerWritten = false
	return old
}
