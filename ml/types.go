// types.go - Lokale Werte fuer berechnete Ergebnisse
// Dieses Modul definiert Value, Matrix, Frame, Scalar und List.
package ml

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/sysds/sysds/api"
)

// Value is a decoded local value: *Matrix, *Frame, Scalar or List.
type Value interface {
	Kind() api.Kind
}

// Matrix is a dense row-major float64 matrix. Matrices without cells have
// a nil Dense since gonum does not represent empty matrices.
type Matrix struct {
	rows, cols int
	dense      *mat.Dense
}

// NewMatrix creates a rows x cols matrix backed by data (row-major). A nil
// data slice allocates zeros.
func NewMatrix(rows, cols int, data []float64) *Matrix {
	m := &Matrix{rows: rows, cols: cols}
	if rows > 0 && cols > 0 {
		m.dense = mat.NewDense(rows, cols, data)
	}
	return m
}

// FromDense wraps a gonum matrix without copying.
func FromDense(d *mat.Dense) *Matrix {
	r, c := d.Dims()
	return &Matrix{rows: r, cols: c, dense: d}
}

func (m *Matrix) Kind() api.Kind { return api.KindMatrix }

func (m *Matrix) Dims() (int, int) { return m.rows, m.cols }

// Dense returns the gonum matrix, nil for empty matrices.
func (m *Matrix) Dense() *mat.Dense { return m.dense }

func (m *Matrix) At(i, j int) float64 {
	return m.dense.At(i, j)
}

// RawData returns a row-major copy of the cells.
func (m *Matrix) RawData() []float64 {
	out := make([]float64, 0, m.rows*m.cols)
	if m.dense == nil {
		return out
	}
	for i := 0; i < m.rows; i++ {
		out = append(out, m.dense.RawRowView(i)...)
	}
	return out
}

// NNZ counts non-zero cells.
func (m *Matrix) NNZ() int {
	var nnz int
	if m.dense == nil {
		return 0
	}
	for i := 0; i < m.rows; i++ {
		for _, v := range m.dense.RawRowView(i) {
			if v != 0 {
				nnz++
			}
		}
	}
	return nnz
}

// Equal reports whether both matrices have the same shape and cells. NaN
// cells compare equal to NaN.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	if m.dense == nil {
		return true
	}
	return mat.EqualApprox(m.dense, o.dense, 0) || sameWithNaN(m, o)
}

func sameWithNaN(a, b *Matrix) bool {
	for i := 0; i < a.rows; i++ {
		for j := 0; j < a.cols; j++ {
			x, y := a.At(i, j), b.At(i, j)
			if x != y && !(x != x && y != y) {
				return false
			}
		}
	}
	return true
}

func (m *Matrix) String() string {
	return Dump(m)
}

// Frame is a table of typed columns. Columns hold []float64, []int64, []bool
// or []string.
type Frame struct {
	Names   []string
	Schema  []api.Encoding
	Columns []any
	rows    int
}

func (f *Frame) Kind() api.Kind { return api.KindFrame }

// Rows returns the number of rows.
func (f *Frame) Rows() int { return f.rows }

// Cols returns the number of columns.
func (f *Frame) Cols() int { return len(f.Columns) }

// AddColumn appends a column. All columns must have the same length.
func (f *Frame) AddColumn(name string, values any) error {
	var enc api.Encoding
	var n int
	switch v := values.(type) {
	case []float64:
		enc, n = api.EncodingF64, len(v)
	case []int64:
		enc, n = api.EncodingI64, len(v)
	case []bool:
		enc, n = api.EncodingBool, len(v)
	case []string:
		enc, n = api.EncodingStr, len(v)
	default:
		return fmt.Errorf("unsupported column type %T", values)
	}

	if len(f.Columns) > 0 && n != f.rows {
		return fmt.Errorf("column %q has %d rows, frame has %d", name, n, f.rows)
	}
	f.rows = n
	f.Names = append(f.Names, name)
	f.Schema = append(f.Schema, enc)
	f.Columns = append(f.Columns, values)
	return nil
}

// Scalar holds a float64, int64, bool or string.
type Scalar struct {
	V any
}

func (s Scalar) Kind() api.Kind { return api.KindScalar }

// Float returns the scalar as float64 if it is numeric.
func (s Scalar) Float() (float64, bool) {
	switch v := s.V.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func (s Scalar) String() string {
	return fmt.Sprint(s.V)
}

// List is an ordered list of values.
type List []Value

func (l List) Kind() api.Kind { return api.KindList }
