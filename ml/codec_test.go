// codec_test.go - Tests fuer Encode/Decode lokaler Werte
package ml

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/graph"
)

func TestMatrixRoundTrip(t *testing.T) {
	// Alle Werte sind in f16 und bf16 exakt darstellbar
	dense := NewMatrix(2, 3, []float64{1, -2, 0.5, 3, 0.25, -8})
	sparse := NewMatrix(3, 4, []float64{
		0, 0, 2, 0,
		0, 0, 0, 0,
		-1, 0, 0, 0.5,
	})

	tests := []struct {
		name   string
		m      *Matrix
		opts   EncodeOptions
		layout api.Layout
	}{
		{"dense f64", dense, EncodeOptions{}, api.LayoutDense},
		{"dense f32", dense, EncodeOptions{Encoding: api.EncodingF32}, api.LayoutDense},
		{"dense f16", dense, EncodeOptions{Encoding: api.EncodingF16}, api.LayoutDense},
		{"dense bf16", dense, EncodeOptions{Encoding: api.EncodingBF16}, api.LayoutDense},
		{"dense zstd", dense, EncodeOptions{Compression: api.CompressionZstd}, api.LayoutDense},
		{"sparse", sparse, EncodeOptions{}, api.LayoutSparse},
		{"sparse zstd f32", sparse, EncodeOptions{Encoding: api.EncodingF32, Compression: api.CompressionZstd}, api.LayoutSparse},
		{"sparse forced dense", sparse, EncodeOptions{ForceDense: true}, api.LayoutDense},
		{"empty", NewMatrix(0, 3, nil), EncodeOptions{}, api.LayoutDense},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Encode(tt.m, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if f.Layout != tt.layout {
				t.Errorf("Layout = %s, erwartet %s", f.Layout, tt.layout)
			}

			v, err := Decode(f, graph.TypeMatrix)
			if err != nil {
				t.Fatal(err)
			}
			got, ok := v.(*Matrix)
			if !ok {
				t.Fatalf("Decode lieferte %T", v)
			}
			if !got.Equal(tt.m) {
				t.Errorf("Round Trip fehlgeschlagen:\n%s\nerwartet\n%s", got, tt.m)
			}
		})
	}
}

func TestSparseLayout(t *testing.T) {
	m := NewMatrix(3, 2, []float64{0, 4, 0, 0, 7, 0})
	f, err := Encode(m, EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int32{0, 1, 2}, f.ColPtr); diff != "" {
		t.Errorf("ColPtr (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{2, 0}, f.RowIdx); diff != "" {
		t.Errorf("RowIdx (-want +got):\n%s", diff)
	}
	if f.NNZ != 2 {
		t.Errorf("NNZ = %d, erwartet 2", f.NNZ)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	fr := &Frame{}
	for _, c := range []struct {
		name   string
		values any
	}{
		{"age", []int64{31, 42, 7}},
		{"score", []float64{0.5, math.Inf(1), -3}},
		{"active", []bool{true, false, true}},
		{"name", []string{"a", "b\n", ""}},
	} {
		if err := fr.AddColumn(c.name, c.values); err != nil {
			t.Fatal(err)
		}
	}

	f, err := Encode(fr, EncodeOptions{Compression: api.CompressionZstd})
	if err != nil {
		t.Fatal(err)
	}
	v, err := Decode(f, graph.TypeFrame)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(fr, v, cmp.AllowUnexported(Frame{})); diff != "" {
		t.Errorf("Frame Round Trip (-want +got):\n%s", diff)
	}
}

func TestScalarRoundTrip(t *testing.T) {
	for _, s := range []Scalar{{V: 3.5}, {V: int64(-7)}, {V: true}, {V: "tab\there"}} {
		f, err := Encode(s, EncodeOptions{})
		if err != nil {
			t.Fatal(err)
		}
		v, err := Decode(f, graph.TypeScalar)
		if err != nil {
			t.Fatal(err)
		}
		if v != s {
			t.Errorf("Scalar = %v, erwartet %v", v, s)
		}
	}
}

func TestListRoundTrip(t *testing.T) {
	l := List{Scalar{V: 1.0}, NewMatrix(1, 2, []float64{1, 2})}
	f, err := Encode(l, EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	v, err := Decode(f, graph.TypeList)
	if err != nil {
		t.Fatal(err)
	}
	got := v.(List)
	if len(got) != 2 || got[0] != l[0] || !got[1].(*Matrix).Equal(l[1].(*Matrix)) {
		t.Errorf("List = %v, erwartet %v", got, l)
	}
}

func TestDecodeRejectsMismatch(t *testing.T) {
	good, err := Encode(NewMatrix(2, 2, []float64{1, 2, 3, 4}), EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	sparse, err := Encode(NewMatrix(2, 2, []float64{0, 0, 0, 5}), EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		frame    func() api.Frame
		expected graph.ValueType
	}{
		{"falscher Typ", func() api.Frame { return good }, graph.TypeScalar},
		{"kein Payload-Typ", func() api.Frame { return good }, graph.TypeNone},
		{"zu kurz", func() api.Frame {
			f := good
			f.Data = f.Data[:8]
			return f
		}, graph.TypeMatrix},
		{"falsche Form", func() api.Frame {
			f := good
			f.Rows = 3
			return f
		}, graph.TypeMatrix},
		{"unbekannte Encoding", func() api.Frame {
			f := good
			f.Encoding = api.EncodingStr
			return f
		}, graph.TypeMatrix},
		{"colptr kaputt", func() api.Frame {
			f := sparse
			f.ColPtr = []int32{0, 1}
			return f
		}, graph.TypeMatrix},
		{"rowidx ausserhalb", func() api.Frame {
			f := sparse
			f.RowIdx = []int32{9}
			return f
		}, graph.TypeMatrix},
		{"colptr nicht monoton", func() api.Frame {
			data, _ := api.EncodeFloats(api.EncodingF64, []float64{1, 2, 3})
			return api.Frame{
				Kind: api.KindMatrix, Layout: api.LayoutSparse, Encoding: api.EncodingF64,
				Rows: 3, Cols: 2, NNZ: 3,
				ColPtr: []int32{0, 5, 3}, RowIdx: []int32{0, 1, 2}, Data: data,
			}
		}, graph.TypeMatrix},
		{"colptr negativ", func() api.Frame {
			data, _ := api.EncodeFloats(api.EncodingF64, []float64{1, 2})
			return api.Frame{
				Kind: api.KindMatrix, Layout: api.LayoutSparse, Encoding: api.EncodingF64,
				Rows: 2, Cols: 2, NNZ: 2,
				ColPtr: []int32{0, -1, 2}, RowIdx: []int32{0, 1}, Data: data,
			}
		}, graph.TypeMatrix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame(), tt.expected)
			var de *api.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("Fehler = %v, erwartet DecodeError", err)
			}
		})
	}
}

func TestDump(t *testing.T) {
	m := NewMatrix(2, 2, []float64{1, -2, 3, 4})
	got := Dump(m, DumpWithPrecision(1))
	want := "[[ 1.0, -2.0],\n [ 3.0,  4.0]]"
	if got != want {
		t.Errorf("Dump = %q, erwartet %q", got, want)
	}

	big := NewMatrix(10, 10, nil)
	got = Dump(big, DumpWithThreshold(4), DumpWithEdgeItems(1), DumpWithPrecision(0))
	if !strings.Contains(got, "...") {
		t.Errorf("Dump sollte gekuerzt sein: %s", got)
	}
	if Dump(NewMatrix(0, 0, nil)) != "[]" {
		t.Error("leere Matrix sollte [] liefern")
	}
}
