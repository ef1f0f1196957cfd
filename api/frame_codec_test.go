package api

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFrameStream(t *testing.T) {
	data, err := EncodeFloats(EncodingF64, []float64{1, 2})
	require.NoError(t, err)

	frames := []Frame{
		{Name: "V1", Kind: KindMatrix, Layout: LayoutDense, Encoding: EncodingF64, Rows: 1, Cols: 2, Data: data},
		{Name: "V2", Kind: KindScalar, Encoding: EncodingStr, Text: "hallo"},
		{Name: "V3", Kind: KindList, Items: []Frame{{Kind: KindScalar, Encoding: EncodingBool, Data: EncodeBools([]bool{true})}}},
	}

	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	for i := range frames {
		require.NoError(t, w.Write(&frames[i]))
	}

	got, err := NewFrameReader(&buf).ReadAll()
	require.NoError(t, err)
	if diff := cmp.Diff(frames, got); diff != "" {
		t.Errorf("Frames unterscheiden sich (-erwartet +erhalten):\n%s", diff)
	}
}

func TestFrameStreamEmpty(t *testing.T) {
	frames, err := NewFrameReader(bytes.NewReader(nil)).ReadAll()
	require.NoError(t, err)
	require.Empty(t, frames)

	_, err = NewFrameReader(bytes.NewReader([]byte{0xc1})).ReadAll()
	require.Error(t, err)
}

func TestFloatEncodings(t *testing.T) {
	in := []float64{0, 1, -2.5, 1024}
	for _, enc := range []Encoding{EncodingF64, EncodingF32, EncodingF16, EncodingBF16} {
		t.Run(string(enc), func(t *testing.T) {
			b, err := EncodeFloats(enc, in)
			require.NoError(t, err)
			require.Len(t, b, enc.Size()*len(in))

			out, err := DecodeFloats(enc, b, len(in))
			require.NoError(t, err)
			require.Equal(t, in, out)
		})
	}

	_, err := EncodeFloats(EncodingStr, in)
	require.Error(t, err)
	_, err = DecodeFloats(EncodingF64, []byte{1, 2, 3}, 1)
	require.Error(t, err)
}

func TestIntAndBoolEncodings(t *testing.T) {
	ints := []int64{-1, 0, 1 << 40}
	got, err := DecodeInts(EncodeInts(ints), len(ints))
	require.NoError(t, err)
	require.Equal(t, ints, got)

	bools := []bool{true, false, true}
	gotb, err := DecodeBools(EncodeBools(bools), len(bools))
	require.NoError(t, err)
	require.Equal(t, bools, gotb)
}

func TestCompressRoundTrip(t *testing.T) {
	data, err := EncodeFloats(EncodingF64, make([]float64, 256))
	require.NoError(t, err)
	f := Frame{Kind: KindMatrix, Layout: LayoutDense, Encoding: EncodingF64, Rows: 16, Cols: 16, Data: data}

	require.NoError(t, Compress(&f, CompressionZstd))
	require.Equal(t, CompressionZstd, f.Compression)
	require.Less(t, len(f.Data), len(data))

	require.NoError(t, Decompress(&f))
	require.Equal(t, data, f.Data)

	require.Error(t, Compress(&f, "lz4"))
}

func TestCheckError(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusUnprocessableEntity, Status: "422 Unprocessable Entity"}
	err := checkError(resp, []byte(`{"error":"boom","statement":2,"op":"log"}`))

	var se StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "boom", se.ErrorMessage)
	require.NotNil(t, se.Statement)
	require.Equal(t, 2, *se.Statement)
	require.Equal(t, "log", se.Op)

	err = checkError(&http.Response{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}, []byte("<html>"))
	require.ErrorAs(t, err, &se)
	require.Equal(t, "<html>", se.ErrorMessage)

	require.NoError(t, checkError(&http.Response{StatusCode: http.StatusOK}, nil))
}
