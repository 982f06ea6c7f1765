package rowbinary

import (
	"encoding/binary"
	"io"
)

// defaultFrameStride is how many rows a SeekableWriter groups into one
// compressed frame when the caller doesn't choose a stride explicitly.
// A larger stride compresses better; a smaller one (down to 1) makes
// row-level seeks cheaper since less of a frame must be decompressed
// to reach a single row.
const defaultFrameStride = 64

// SeekableHeader is the parsed header of a seekable container: the
// column names, and their types when the format carries them.
type SeekableHeader struct {
	Names []string
	Types []*TypeDesc // nil for RowBinary and RowBinaryWithNames
}

type frameEntry struct {
	startRow uint64
	rowCount uint64
	offset   int64
	length   int64
}

// countingWriter tracks how many bytes have been written so far, since
// a seekable container's footer records absolute byte offsets but the
// underlying io.Writer need not support Seek while writing forward.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// SeekableWriter writes a frame-indexed container: rows are grouped
// into compressed frames, and a trailing footer records each frame's
// byte range and row range so a SeekableReader can jump directly to
// the frame containing any row (spec §4.H).
type SeekableWriter struct {
	inner         *countingWriter
	format        RowBinaryFormat
	codec         FrameCodec
	stride        int
	headerWritten bool
	anyRowWritten bool
	finished      bool

	builder       FrameBuilder
	frameStartRow uint64
	pendingRows   uint64
	rowCount      uint64
	frames        []frameEntry
	hasHeader     bool
}

// NewSeekableWriter creates a writer using the default frame stride
// and a ZstdFrameCodec.
func NewSeekableWriter(w io.Writer, format RowBinaryFormat) (*SeekableWriter, error) {
	return NewSeekableWriterWithStride(w, format, defaultFrameStride)
}

// NewSeekableWriterWithStride creates a writer grouping stride rows
// per compressed frame.
func NewSeekableWriterWithStride(w io.Writer, format RowBinaryFormat, stride int) (*SeekableWriter, error) {
	if stride < 1 {
		stride = 1
	}
	codec, err := NewZstdFrameCodec()
	if err != nil {
		return nil, err
	}
	return &SeekableWriter{
		inner:  &countingWriter{w: w},
		format: format,
		codec:  codec,
		stride: stride,
	}, nil
}

// WriteHeader writes the container's header, if the format carries
// one. It must be called before any row is written; calling it after
// WriteRowBytes is an error. A second call is a no-op.
func (sw *SeekableWriter) WriteHeader(schema Schema) error {
	if sw.anyRowWritten {
		return newInvalidValue("header must be written before any row")
	}
	if sw.headerWritten {
		return nil
	}
	if err := schema.EnsureNestedNames(); err != nil {
		return err
	}
	if sw.format != RowBinary {
		fields := schema.ExpandForWriting().Fields()
		if err := writeUvarint(sw.inner, uint64(len(fields))); err != nil {
			return err
		}
		for _, f := range fields {
			if err := writeLengthPrefixed(sw.inner, []byte(f.Name)); err != nil {
				return err
			}
		}
		if sw.format == RowBinaryWithNamesAndTypes {
			for _, f := range fields {
				if err := writeLengthPrefixed(sw.inner, []byte(f.Type.TypeName())); err != nil {
					return err
				}
			}
		}
	}
	sw.headerWritten = true
	sw.hasHeader = true
	return nil
}

// WriteRowBytes appends one already-encoded row (the raw bytes a
// RowBinary-format writer would have produced for this row) to the
// current frame.
func (sw *SeekableWriter) WriteRowBytes(raw []byte) error {
	if sw.finished {
		return newInvalidValue("writer already finished")
	}
	sw.anyRowWritten = true
	if sw.builder == nil {
		sw.builder = sw.codec.BeginFrame()
		sw.frameStartRow = sw.rowCount
	}
	if err := writeLengthPrefixed(sw.builder, raw); err != nil {
		return err
	}
	sw.pendingRows++
	sw.rowCount++
	if sw.pendingRows >= uint64(sw.stride) {
		return sw.flushFrame()
	}
	return nil
}

func (sw *SeekableWriter) flushFrame() error {
	if sw.builder == nil {
		return nil
	}
	compressed, err := sw.builder.EndFrame()
	if err != nil {
		return err
	}
	offset := sw.inner.n
	if _, err := sw.inner.Write(compressed); err != nil {
		return newIOErr("writing frame", err)
	}
	sw.frames = append(sw.frames, frameEntry{
		startRow: sw.frameStartRow,
		rowCount: sw.pendingRows,
		offset:   offset,
		length:   int64(len(compressed)),
	})
	sw.builder = nil
	sw.pendingRows = 0
	return nil
}

// Finish flushes any partial frame and writes the trailing footer.
// After Finish, the writer must not be used again.
func (sw *SeekableWriter) Finish() error {
	if sw.finished {
		return nil
	}
	if err := sw.flushFrame(); err != nil {
		return err
	}
	var footer []byte
	if sw.hasHeader {
		footer = appendUvarint(footer, 1)
	} else {
		footer = appendUvarint(footer, 0)
	}
	footer = appendUvarint(footer, uint64(len(sw.frames)))
	for _, f := range sw.frames {
		footer = appendUvarint(footer, f.startRow)
		footer = appendUvarint(footer, f.rowCount)
		footer = appendUvarint(footer, uint64(f.offset))
		footer = appendUvarint(footer, uint64(f.length))
	}
	if _, err := sw.inner.Write(footer); err != nil {
		return newIOErr("writing footer", err)
	}
	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], uint64(len(footer)))
	if _, err := sw.inner.Write(trailer[:]); err != nil {
		return newIOErr("writing footer trailer", err)
	}
	sw.finished = true
	return nil
}

// SeekableReader reads a frame-indexed container written by
// SeekableWriter, supporting direct seeks to an arbitrary row without
// decoding everything before it.
type SeekableReader struct {
	src    io.ReadSeeker
	format RowBinaryFormat
	codec  FrameCodec
	schema *Schema
	header SeekableHeader

	frames    []frameEntry
	totalRows uint64
	hasHeader bool

	currentRow    uint64
	frameLoaded   bool
	loadedFrame   int
	loadedRows    [][]byte
	loadedBaseRow uint64
}

// NewSeekableReader opens a seekable container. schema is required for
// plain RowBinary (which carries no header) and is cross-checked
// against RowBinaryWithNames/RowBinaryWithNamesAndTypes headers the
// same way RowBinaryReader.ReadHeader does.
func NewSeekableReader(src io.ReadSeeker, format RowBinaryFormat, schema *Schema) (*SeekableReader, error) {
	return newSeekableReader(src, format, schema)
}

// NewSeekableReaderWithStride is kept for parity with the writer's
// stride parameter. The frame footer records each frame's exact row
// range, so the reader never needs to know the stride the writer used;
// it's accepted here and ignored.
func NewSeekableReaderWithStride(src io.ReadSeeker, format RowBinaryFormat, schema *Schema, _ int) (*SeekableReader, error) {
	return newSeekableReader(src, format, schema)
}

func newSeekableReader(src io.ReadSeeker, format RowBinaryFormat, schema *Schema) (*SeekableReader, error) {
	codec, err := NewZstdFrameCodec()
	if err != nil {
		return nil, err
	}
	sr := &SeekableReader{src: src, format: format, codec: codec, schema: schema}

	hasHeader, frames, err := readFooter(src)
	if err != nil {
		return nil, err
	}
	sr.hasHeader = hasHeader
	sr.frames = frames
	for _, f := range frames {
		sr.totalRows += f.rowCount
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, newIOErr("seeking to start", err)
	}
	if err := sr.readHeader(); err != nil {
		return nil, err
	}
	return sr, nil
}

func readFooter(src io.ReadSeeker) (bool, []frameEntry, error) {
	end, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return false, nil, newIOErr("seeking to end", err)
	}
	if end < 8 {
		return false, nil, newInvalidValue("container too short to contain a footer")
	}
	var trailer [8]byte
	if _, err := src.Seek(end-8, io.SeekStart); err != nil {
		return false, nil, newIOErr("seeking to footer trailer", err)
	}
	if _, err := io.ReadFull(src, trailer[:]); err != nil {
		return false, nil, newIOErr("reading footer trailer", err)
	}
	footerLen := int64(binary.LittleEndian.Uint64(trailer[:]))
	if footerLen < 0 || footerLen > end-8 {
		return false, nil, newInvalidValue("corrupt footer length")
	}
	if _, err := src.Seek(end-8-footerLen, io.SeekStart); err != nil {
		return false, nil, newIOErr("seeking to footer", err)
	}
	footer := make([]byte, footerLen)
	if _, err := io.ReadFull(src, footer); err != nil {
		return false, nil, newIOErr("reading footer", err)
	}

	r := newByteReader(footer)
	hasHeaderFlag, err := mustReadUvarint(r)
	if err != nil {
		return false, nil, err
	}
	frameCount, err := mustReadUvarint(r)
	if err != nil {
		return false, nil, err
	}
	frames := make([]frameEntry, 0, frameCount)
	for i := uint64(0); i < frameCount; i++ {
		startRow, err := mustReadUvarint(r)
		if err != nil {
			return false, nil, err
		}
		rowCount, err := mustReadUvarint(r)
		if err != nil {
			return false, nil, err
		}
		offset, err := mustReadUvarint(r)
		if err != nil {
			return false, nil, err
		}
		length, err := mustReadUvarint(r)
		if err != nil {
			return false, nil, err
		}
		frames = append(frames, frameEntry{startRow: startRow, rowCount: rowCount, offset: int64(offset), length: int64(length)})
	}
	return hasHeaderFlag != 0, frames, nil
}

func (sr *SeekableReader) readHeader() error {
	if sr.format == RowBinary {
		if sr.schema == nil {
			return newInvalidValue("schema required to read RowBinary")
		}
		return nil
	}

	if !sr.hasHeader {
		return newInvalidValue("container has no header but format requires one")
	}

	columnCount, err := mustReadUvarint(sr.src)
	if err != nil {
		return err
	}
	if columnCount == 0 {
		return newInvalidValue("header must declare at least one column")
	}

	names := make([]string, 0, columnCount)
	for i := uint64(0); i < columnCount; i++ {
		name, ok, err := readLengthPrefixed(sr.src, 0)
		if err != nil {
			return err
		}
		if !ok {
			return newIOErr("unexpected EOF reading column name", io.ErrUnexpectedEOF)
		}
		names = append(names, string(name))
	}

	var types []*TypeDesc
	if sr.format == RowBinaryWithNamesAndTypes {
		types = make([]*TypeDesc, 0, columnCount)
		for i := uint64(0); i < columnCount; i++ {
			typeName, ok, err := readLengthPrefixed(sr.src, 0)
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
			types = append(types, ty)
		}
	}

	if types != nil {
		// WithNamesAndTypes: the header is self-describing. An expected
		// schema, if supplied, is only cross-checked by column count;
		// the header's own types win and populate the reader's schema.
		fields := make([]Field, len(names))
		for i, n := range names {
			fields[i] = Field{Name: n, Type: types[i]}
		}
		headerSchema := NewSchema(fields)
		if sr.schema != nil && sr.schema.Len() != headerSchema.Len() {
			return newInvalidValue("header column count mismatch")
		}
		sr.schema = &headerSchema
		sr.header = SeekableHeader{Names: names, Types: types}
		return nil
	}

	if sr.schema == nil {
		return newInvalidValue("schema required to read a named container")
	}
	if sr.schema.Len() != len(names) {
		return newInvalidValue("header column count mismatch")
	}
	if !sameNames(sr.schema.fieldNames(), names) {
		return newInvalidValue("header column names mismatch: expected [" +
			joinNames(sr.schema.fieldNames()) + "], got [" + joinNames(names) + "]")
	}

	sr.header = SeekableHeader{Names: names, Types: types}
	return nil
}

// Header returns the container's parsed header.
func (sr *SeekableReader) Header() SeekableHeader { return sr.header }

// CurrentRow returns the raw encoded bytes of the row the reader
// currently points at, or (nil, false, nil) when the cursor is past
// the last row.
func (sr *SeekableReader) CurrentRow() ([]byte, bool, error) {
	if sr.currentRow >= sr.totalRows {
		return nil, false, nil
	}
	if err := sr.ensureFrameLoaded(sr.currentRow); err != nil {
		return nil, false, err
	}
	idx := sr.currentRow - sr.loadedBaseRow
	return sr.loadedRows[idx], true, nil
}

// CurrentRowValue decodes the row the reader currently points at
// against the container's schema, so callers don't need their own
// streaming reader to interpret CurrentRow's raw bytes.
func (sr *SeekableReader) CurrentRowValue() (Row, bool, error) {
	raw, ok, err := sr.CurrentRow()
	if err != nil || !ok {
		return nil, ok, err
	}
	row, err := DecodeRow(*sr.schema, raw)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// SeekRow moves the cursor to the given absolute row index. On
// failure the cursor is left unchanged.
func (sr *SeekableReader) SeekRow(index uint64) error {
	if index >= sr.totalRows {
		return newInvalidValue("row index out of range")
	}
	sr.currentRow = index
	return nil
}

// SeekRelative moves the cursor by delta rows, relative to the
// current position. On failure (including moving before row 0 or at
// or past the end) the cursor is left unchanged.
func (sr *SeekableReader) SeekRelative(delta int64) error {
	next := int64(sr.currentRow) + delta
	if next < 0 || uint64(next) >= sr.totalRows {
		return newInvalidValue("row index out of range")
	}
	sr.currentRow = uint64(next)
	return nil
}

func (sr *SeekableReader) ensureFrameLoaded(row uint64) error {
	if sr.frameLoaded && row >= sr.loadedBaseRow && row < sr.loadedBaseRow+uint64(len(sr.loadedRows)) {
		return nil
	}
	frameIdx := -1
	for i, f := range sr.frames {
		if row >= f.startRow && row < f.startRow+f.rowCount {
			frameIdx = i
			break
		}
	}
	if frameIdx < 0 {
		return newInvalidValue("row index out of range")
	}
	f := sr.frames[frameIdx]
	compressed := make([]byte, f.length)
	if _, err := sr.src.Seek(f.offset, io.SeekStart); err != nil {
		return newIOErr("seeking to frame", err)
	}
	if _, err := io.ReadFull(sr.src, compressed); err != nil {
		return newIOErr("reading frame", err)
	}
	raw, err := sr.codec.SeekToFrame(compressed)
	if err != nil {
		return err
	}
	rows := make([][]byte, 0, f.rowCount)
	br := newByteReader(raw)
	for i := uint64(0); i < f.rowCount; i++ {
		b, ok, err := readLengthPrefixed(br, 0)
		if err != nil {
			return err
		}
		if !ok {
			return newIOErr("truncated frame payload", io.ErrUnexpectedEOF)
		}
		rows = append(rows, b)
	}
	sr.loadedFrame = frameIdx
	sr.loadedBaseRow = f.startRow
	sr.loadedRows = rows
	sr.frameLoaded = true
	return nil
}

// byteReader is a minimal io.Reader over an in-memory slice, used to
// parse already-decompressed footer/frame payloads without pulling in
// bytes.Reader's wider Seek/ReadAt surface.
type byteReader struct {
	b   []byte
	pos int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
