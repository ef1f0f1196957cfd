// encode.go - Kodierung lokaler Werte in Frames
// Dieses Modul wird fuer Uploads und von der Engine fuer Ergebnisse genutzt.
package ml

import (
	"fmt"

	"github.com/sysds/sysds/api"
)

// SparseTurnPoint is the sparsity below which matrices are sent in CSC
// layout.
const SparseTurnPoint = 0.4

// EncodeOptions controls how values are framed.
type EncodeOptions struct {
	// Encoding of matrix and float column payloads, f64 if empty.
	Encoding    api.Encoding
	ForceDense  bool
	Compression string
}

// Encode frames v. The returned frame has no name.
func Encode(v Value, opts EncodeOptions) (api.Frame, error) {
	if opts.Encoding == "" {
		opts.Encoding = api.EncodingF64
	}

	f, err := encode(v, opts)
	if err != nil {
		return api.Frame{}, err
	}
	if err := api.Compress(&f, opts.Compression); err != nil {
		return api.Frame{}, err
	}
	return f, nil
}

func encode(v Value, opts EncodeOptions) (api.Frame, error) {
	switch v := v.(type) {
	case *Matrix:
		return encodeMatrix(v, opts)
	case *Frame:
		return encodeFrame(v, opts)
	case Scalar:
		return encodeScalar(v)
	case List:
		f := api.Frame{Kind: api.KindList, Items: make([]api.Frame, len(v))}
		for i, item := range v {
			var err error
			if f.Items[i], err = encode(item, opts); err != nil {
				return api.Frame{}, fmt.Errorf("list item %d: %w", i, err)
			}
		}
		return f, nil
	case nil:
		return api.Frame{}, fmt.Errorf("cannot encode nil value")
	default:
		return api.Frame{}, fmt.Errorf("cannot encode %T", v)
	}
}

// Sparsity returns the share of non-zero cells.
func Sparsity(m *Matrix) float64 {
	if m.rows == 0 || m.cols == 0 {
		return 1
	}
	return float64(m.NNZ()) / float64(m.rows*m.cols)
}

func encodeMatrix(m *Matrix, opts EncodeOptions) (api.Frame, error) {
	f := api.Frame{
		Kind:     api.KindMatrix,
		Layout:   api.LayoutDense,
		Encoding: opts.Encoding,
		Rows:     m.rows,
		Cols:     m.cols,
	}
	if m.dense == nil {
		return f, nil
	}

	if !opts.ForceDense && Sparsity(m) < SparseTurnPoint {
		colPtr := make([]int32, m.cols+1)
		var rowIdx []int32
		var values []float64
		for j := 0; j < m.cols; j++ {
			for i := 0; i < m.rows; i++ {
				if x := m.dense.At(i, j); x != 0 {
					rowIdx = append(rowIdx, int32(i))
					values = append(values, x)
				}
			}
			colPtr[j+1] = int32(len(values))
		}

		data, err := api.EncodeFloats(opts.Encoding, values)
		if err != nil {
			return api.Frame{}, err
		}
		f.Layout = api.LayoutSparse
		f.NNZ = len(values)
		f.ColPtr = colPtr
		f.RowIdx = rowIdx
		f.Data = data
		return f, nil
	}

	data, err := api.EncodeFloats(opts.Encoding, m.RawData())
	if err != nil {
		return api.Frame{}, err
	}
	f.NNZ = m.NNZ()
	f.Data = data
	return f, nil
}

func encodeFrame(fr *Frame, opts EncodeOptions) (api.Frame, error) {
	f := api.Frame{
		Kind:    api.KindFrame,
		Rows:    fr.rows,
		Cols:    len(fr.Columns),
		Columns: make([]api.Column, len(fr.Columns)),
	}
	for i, col := range fr.Columns {
		c := api.Column{Name: fr.Names[i]}
		switch col := col.(type) {
		case []float64:
			data, err := api.EncodeFloats(opts.Encoding, col)
			if err != nil {
				return api.Frame{}, err
			}
			c.Encoding, c.Data = opts.Encoding, data
		case []int64:
			c.Encoding, c.Data = api.EncodingI64, api.EncodeInts(col)
		case []bool:
			c.Encoding, c.Data = api.EncodingBool, api.EncodeBools(col)
		case []string:
			c.Encoding, c.Strings = api.EncodingStr, col
		default:
			return api.Frame{}, fmt.Errorf("column %q: unsupported type %T", c.Name, col)
		}
		f.Columns[i] = c
	}
	return f, nil
}

func encodeScalar(s Scalar) (api.Frame, error) {
	f := api.Frame{Kind: api.KindScalar, Rows: 1, Cols: 1}
	switch v := s.V.(type) {
	case float64:
		f.Encoding = api.EncodingF64
		f.Data, _ = api.EncodeFloats(api.EncodingF64, []float64{v})
	case int64:
		f.Encoding = api.EncodingI64
		f.Data = api.EncodeInts([]int64{v})
	case bool:
		f.Encoding = api.EncodingBool
		f.Data = api.EncodeBools([]bool{v})
	case string:
		f.Encoding = api.EncodingStr
		f.Text = v
	default:
		return api.Frame{}, fmt.Errorf("unsupported scalar type %T", s.V)
	}
	return f, nil
}
