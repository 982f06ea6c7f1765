package rowbinary

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
)

// FrameBuilder accumulates the raw bytes of one seekable-container
// frame and compresses them on EndFrame.
type FrameBuilder interface {
	Write(p []byte) (int, error)
	EndFrame() ([]byte, error)
}

// FrameCodec compresses and decompresses the frames a SeekableWriter
// and SeekableReader use to make row-level seeking possible without
// decoding the whole stream up front (spec §4.H).
type FrameCodec interface {
	// BeginFrame starts a new frame; callers write the frame's raw
	// (uncompressed) row bytes to the returned builder, then call
	// EndFrame to get the compressed payload to place on the wire.
	BeginFrame() FrameBuilder

	// SeekToFrame decompresses a frame payload previously produced by
	// EndFrame back into its raw row bytes.
	SeekToFrame(compressed []byte) ([]byte, error)
}

// ZstdFrameCodec is the default FrameCodec, backing each frame with a
// one-shot zstd compress/decompress pair.
type ZstdFrameCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdFrameCodec builds a ZstdFrameCodec with the library's default
// encoder/decoder settings.
func NewZstdFrameCodec() (*ZstdFrameCodec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, newIOErr("initializing zstd encoder", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, newIOErr("initializing zstd decoder", err)
	}
	return &ZstdFrameCodec{encoder: enc, decoder: dec}, nil
}

// Close releases the codec's encoder/decoder resources.
func (c *ZstdFrameCodec) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}

func (c *ZstdFrameCodec) BeginFrame() FrameBuilder {
	return &zstdFrameBuilder{codec: c}
}

func (c *ZstdFrameCodec) SeekToFrame(compressed []byte) ([]byte, error) {
	raw, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, newIOErr("decompressing frame", err)
	}
	return raw, nil
}

type zstdFrameBuilder struct {
	codec *ZstdFrameCodec
	buf   bytes.Buffer
}

func (b *zstdFrameBuilder) Write(p []byte) (int, error) { return b.buf.Write(p) }

func (b *zstdFrameBuilder) EndFrame() ([]byte, error) {
	return b.codec.encoder.EncodeAll(b.buf.Bytes(), nil), nil
}
