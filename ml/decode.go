// decode.go - Dekodierung von Ergebnis-Frames
// Ein Frame wird nur in den deklarierten Typ dekodiert, nie umgewandelt.
package ml

import (
	"fmt"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/graph"
)

var kinds = map[graph.ValueType]api.Kind{
	graph.TypeMatrix: api.KindMatrix,
	graph.TypeFrame:  api.KindFrame,
	graph.TypeScalar: api.KindScalar,
	graph.TypeList:   api.KindList,
}

// Decode converts f into a local value of the expected type. Any mismatch
// in kind, shape or payload length is a *api.DecodeError.
func Decode(f api.Frame, expected graph.ValueType) (Value, error) {
	want, ok := kinds[expected]
	if !ok {
		return nil, &api.DecodeError{Output: f.Name, Expected: expected.String(), Got: string(f.Kind), Reason: "type has no payload"}
	}
	if f.Kind != want {
		return nil, &api.DecodeError{Output: f.Name, Expected: string(want), Got: string(f.Kind)}
	}

	if f.Compression != "" && f.Compression != api.CompressionNone {
		if err := api.Decompress(&f); err != nil {
			return nil, decodeErr(f, err.Error())
		}
	}
	return decode(f)
}

func decodeErr(f api.Frame, reason string) *api.DecodeError {
	return &api.DecodeError{Output: f.Name, Expected: string(f.Kind), Got: f.String(), Reason: reason}
}

func decode(f api.Frame) (Value, error) {
	switch f.Kind {
	case api.KindMatrix:
		return decodeMatrix(f)
	case api.KindFrame:
		return decodeFrame(f)
	case api.KindScalar:
		return decodeScalar(f)
	case api.KindList:
		l := make(List, len(f.Items))
		for i, item := range f.Items {
			v, err := decode(item)
			if err != nil {
				return nil, err
			}
			l[i] = v
		}
		return l, nil
	default:
		return nil, decodeErr(f, "unknown kind")
	}
}

func decodeMatrix(f api.Frame) (*Matrix, error) {
	if f.Rows < 0 || f.Cols < 0 {
		return nil, decodeErr(f, "negative dimensions")
	}
	if f.Encoding.Size() == 0 {
		return nil, decodeErr(f, fmt.Sprintf("encoding %q is not numeric", f.Encoding))
	}

	switch f.Layout {
	case api.LayoutDense, "":
		values, err := api.DecodeFloats(f.Encoding, f.Data, f.Rows*f.Cols)
		if err != nil {
			return nil, decodeErr(f, err.Error())
		}
		if len(values) == 0 {
			return NewMatrix(f.Rows, f.Cols, nil), nil
		}
		return NewMatrix(f.Rows, f.Cols, values), nil
	case api.LayoutSparse:
		return decodeCSC(f)
	default:
		return nil, decodeErr(f, fmt.Sprintf("unknown layout %q", f.Layout))
	}
}

func decodeCSC(f api.Frame) (*Matrix, error) {
	if len(f.ColPtr) != f.Cols+1 {
		return nil, decodeErr(f, fmt.Sprintf("colptr has %d entries, want %d", len(f.ColPtr), f.Cols+1))
	}
	if len(f.RowIdx) != f.NNZ {
		return nil, decodeErr(f, fmt.Sprintf("rowidx has %d entries, want %d", len(f.RowIdx), f.NNZ))
	}
	if f.ColPtr[0] != 0 || int(f.ColPtr[f.Cols]) != f.NNZ {
		return nil, decodeErr(f, "colptr does not span the non-zero entries")
	}
	for j := 1; j <= f.Cols; j++ {
		if f.ColPtr[j] < f.ColPtr[j-1] || int(f.ColPtr[j]) > f.NNZ {
			return nil, decodeErr(f, fmt.Sprintf("colptr is not monotonic at column %d", j))
		}
	}

	values, err := api.DecodeFloats(f.Encoding, f.Data, f.NNZ)
	if err != nil {
		return nil, decodeErr(f, err.Error())
	}

	m := NewMatrix(f.Rows, f.Cols, nil)
	for j := 0; j < f.Cols; j++ {
		lo, hi := f.ColPtr[j], f.ColPtr[j+1]
		for k := lo; k < hi; k++ {
			i := int(f.RowIdx[k])
			if i < 0 || i >= f.Rows {
				return nil, decodeErr(f, fmt.Sprintf("row index %d out of range", i))
			}
			m.dense.Set(i, j, values[k])
		}
	}
	return m, nil
}

func decodeFrame(f api.Frame) (*Frame, error) {
	if f.Cols != 0 && f.Cols != len(f.Columns) {
		return nil, decodeErr(f, fmt.Sprintf("%d columns declared, %d sent", f.Cols, len(f.Columns)))
	}

	fr := &Frame{}
	for _, c := range f.Columns {
		var values any
		var err error
		switch c.Encoding {
		case api.EncodingStr:
			if len(c.Strings) != f.Rows {
				return nil, decodeErr(f, fmt.Sprintf("column %q has %d rows, want %d", c.Name, len(c.Strings), f.Rows))
			}
			values = c.Strings
		case api.EncodingI64:
			values, err = api.DecodeInts(c.Data, f.Rows)
		case api.EncodingBool:
			values, err = api.DecodeBools(c.Data, f.Rows)
		case api.EncodingF64, api.EncodingF32, api.EncodingF16, api.EncodingBF16:
			values, err = api.DecodeFloats(c.Encoding, c.Data, f.Rows)
		default:
			return nil, decodeErr(f, fmt.Sprintf("column %q has unknown encoding %q", c.Name, c.Encoding))
		}
		if err != nil {
			return nil, decodeErr(f, fmt.Sprintf("column %q: %v", c.Name, err))
		}
		if err := fr.AddColumn(c.Name, values); err != nil {
			return nil, decodeErr(f, err.Error())
		}
	}
	fr.rows = f.Rows
	return fr, nil
}

func decodeScalar(f api.Frame) (Scalar, error) {
	switch f.Encoding {
	case api.EncodingStr:
		return Scalar{V: f.Text}, nil
	case api.EncodingI64:
		v, err := api.DecodeInts(f.Data, 1)
		if err != nil {
			return Scalar{}, decodeErr(f, err.Error())
		}
		return Scalar{V: v[0]}, nil
	case api.EncodingBool:
		v, err := api.DecodeBools(f.Data, 1)
		if err != nil {
			return Scalar{}, decodeErr(f, err.Error())
		}
		return Scalar{V: v[0]}, nil
	default:
		v, err := api.DecodeFloats(f.Encoding, f.Data, 1)
		if err != nil {
			return Scalar{}, decodeErr(f, err.Error())
		}
		return Scalar{V: v[0]}, nil
	}
}
