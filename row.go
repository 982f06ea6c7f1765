package rowbinary

import "bytes"

// EncodeRow encodes row against schema's plain-RowBinary wire layout (no
// header), the same bytes a RowBinary-format RowBinaryWriter would
// produce for it. Useful for producing the row bytes SeekableWriter's
// WriteRowBytes expects without standing up an io.Writer of the
// caller's own.
func EncodeRow(schema Schema, row Row) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf, RowBinary, schema)
	if err := w.WriteRow(row); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRow decodes a single row out of data against schema, without
// constructing a full streaming RowBinaryReader. SeekableReader uses
// this to decode a frame's individual row payloads.
func DecodeRow(schema Schema, data []byte) (Row, error) {
	r := NewReaderWithSchema(bytes.NewReader(data), RowBinary, schema)
	row, ok, err := r.ReadRow()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newInvalidValue("empty row payload")
	}
	return row, nil
}
