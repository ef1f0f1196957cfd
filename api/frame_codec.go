// frame_codec.go - Kodierung von Frames
// Enthaelt: Element-Codecs (f64/f32/f16/bf16/i64/bool), zstd-Kompression,
// FrameWriter/FrameReader fuer msgpack-Streams
package api

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/x448/float16"
)

// ContentTypeFrames is the content type of a result stream.
const ContentTypeFrames = "application/x-msgpack"

// EncodeFloats packs v with the given floating point encoding.
func EncodeFloats(enc Encoding, v []float64) ([]byte, error) {
	switch enc {
	case EncodingF64:
		b := make([]byte, 8*len(v))
		for i, f := range v {
			binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(f))
		}
		return b, nil
	case EncodingF32:
		b := make([]byte, 4*len(v))
		for i, f := range v {
			binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(float32(f)))
		}
		return b, nil
	case EncodingF16:
		b := make([]byte, 2*len(v))
		for i, f := range v {
			binary.LittleEndian.PutUint16(b[2*i:], float16.Fromfloat32(float32(f)).Bits())
		}
		return b, nil
	case EncodingBF16:
		f32s := make([]float32, len(v))
		for i, f := range v {
			f32s[i] = float32(f)
		}
		return bfloat16.EncodeFloat32(f32s), nil
	default:
		return nil, fmt.Errorf("encoding %q is not a float encoding", enc)
	}
}

// DecodeFloats unpacks n values. Integer and boolean encodings are widened
// to float64.
func DecodeFloats(enc Encoding, b []byte, n int) ([]float64, error) {
	size := enc.Size()
	if size == 0 {
		return nil, fmt.Errorf("encoding %q is not numeric", enc)
	}
	if len(b) != size*n {
		return nil, fmt.Errorf("payload has %d bytes, want %d for %d %s values", len(b), size*n, n, enc)
	}

	v := make([]float64, n)
	switch enc {
	case EncodingF64:
		for i := range v {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
		}
	case EncodingF32:
		for i := range v {
			v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
		}
	case EncodingF16:
		for i := range v {
			v[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32())
		}
	case EncodingBF16:
		for i, f := range bfloat16.DecodeFloat32(b) {
			v[i] = float64(f)
		}
	case EncodingI64:
		for i := range v {
			v[i] = float64(int64(binary.LittleEndian.Uint64(b[8*i:])))
		}
	case EncodingBool:
		for i := range v {
			if b[i] != 0 {
				v[i] = 1
			}
		}
	}
	return v, nil
}

// EncodeInts packs v as little endian int64.
func EncodeInts(v []int64) []byte {
	b := make([]byte, 8*len(v))
	for i, n := range v {
		binary.LittleEndian.PutUint64(b[8*i:], uint64(n))
	}
	return b
}

// DecodeInts unpacks n little endian int64 values.
func DecodeInts(b []byte, n int) ([]int64, error) {
	if len(b) != 8*n {
		return nil, fmt.Errorf("payload has %d bytes, want %d for %d i64 values", len(b), 8*n, n)
	}
	v := make([]int64, n)
	for i := range v {
		v[i] = int64(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v, nil
}

// EncodeBools packs v one byte per value.
func EncodeBools(v []bool) []byte {
	b := make([]byte, len(v))
	for i, t := range v {
		if t {
			b[i] = 1
		}
	}
	return b
}

// DecodeBools unpacks n one-byte booleans.
func DecodeBools(b []byte, n int) ([]bool, error) {
	if len(b) != n {
		return nil, fmt.Errorf("payload has %d bytes, want %d bool values", len(b), n)
	}
	v := make([]bool, n)
	for i := range v {
		v[i] = b[i] != 0
	}
	return v, nil
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// Compress compresses the payload bytes of f, its columns and items in place.
func Compress(f *Frame, compression string) error {
	if compression == "" || compression == CompressionNone {
		return nil
	}
	if compression != CompressionZstd {
		return fmt.Errorf("unsupported compression %q", compression)
	}
	if f.Compression == CompressionZstd {
		return nil
	}

	enc, _, err := zstdCodec()
	if err != nil {
		return err
	}

	if f.Data != nil {
		f.Data = enc.EncodeAll(f.Data, nil)
	}
	for i := range f.Columns {
		if f.Columns[i].Data != nil {
			f.Columns[i].Data = enc.EncodeAll(f.Columns[i].Data, nil)
		}
	}
	for i := range f.Items {
		if err := Compress(&f.Items[i], compression); err != nil {
			return err
		}
	}
	f.Compression = CompressionZstd
	return nil
}

// Decompress reverses Compress.
func Decompress(f *Frame) error {
	switch f.Compression {
	case "", CompressionNone:
		return nil
	case CompressionZstd:
	default:
		return fmt.Errorf("unsupported compression %q", f.Compression)
	}

	_, dec, err := zstdCodec()
	if err != nil {
		return err
	}

	if f.Data != nil {
		if f.Data, err = dec.DecodeAll(f.Data, nil); err != nil {
			return fmt.Errorf("decompress %s: %w", f.Name, err)
		}
	}
	for i := range f.Columns {
		if f.Columns[i].Data != nil {
			if f.Columns[i].Data, err = dec.DecodeAll(f.Columns[i].Data, nil); err != nil {
				return fmt.Errorf("decompress %s.%s: %w", f.Name, f.Columns[i].Name, err)
			}
		}
	}
	for i := range f.Items {
		if err := Decompress(&f.Items[i]); err != nil {
			return err
		}
	}
	f.Compression = CompressionNone
	return nil
}

// FrameWriter writes a msgpack stream of frames.
type FrameWriter struct {
	enc *msgpack.Encoder
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{enc: msgpack.NewEncoder(w)}
}

func (w *FrameWriter) Write(f *Frame) error {
	return w.enc.Encode(f)
}

// FrameReader reads a msgpack stream of frames.
type FrameReader struct {
	dec *msgpack.Decoder
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{dec: msgpack.NewDecoder(r)}
}

// Read returns the next frame, or io.EOF at the end of the stream.
func (r *FrameReader) Read() (*Frame, error) {
	var f Frame
	if err := r.dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return &f, nil
}

// ReadAll drains the stream.
func (r *FrameReader) ReadAll() ([]Frame, error) {
	var frames []Frame
	for {
		f, err := r.Read()
		if errors.Is(err, io.EOF) {
			return frames, nil
		} else if err != nil {
			return nil, err
		}
		frames = append(frames, *f)
	}
}
