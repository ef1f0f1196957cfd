// ops.go - Infix- und Unaer-Operatoren auf Engine-Werten
package runner

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sysds/sysds/ml"
)

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var cellOps = map[string]func(a, b float64) float64{
	"+":  func(a, b float64) float64 { return a + b },
	"-":  func(a, b float64) float64 { return a - b },
	"*":  func(a, b float64) float64 { return a * b },
	"/":  func(a, b float64) float64 { return a / b },
	"^":  math.Pow,
	"%%": func(a, b float64) float64 { return a - math.Floor(a/b)*b },
	"<":  func(a, b float64) float64 { return b2f(a < b) },
	">":  func(a, b float64) float64 { return b2f(a > b) },
	"<=": func(a, b float64) float64 { return b2f(a <= b) },
	">=": func(a, b float64) float64 { return b2f(a >= b) },
	"==": func(a, b float64) float64 { return b2f(a == b) },
	"!=": func(a, b float64) float64 { return b2f(a != b) },
	"&":  func(a, b float64) float64 { return b2f(a != 0 && b != 0) },
	"|":  func(a, b float64) float64 { return b2f(a != 0 || b != 0) },
}

func isComparison(op string) bool {
	switch op {
	case "<", ">", "<=", ">=", "==", "!=", "&", "|":
		return true
	}
	return false
}

func binaryOp(op string, l, r ml.Value) (ml.Value, error) {
	if op == "%*%" {
		a, aok := l.(*ml.Matrix)
		b, bok := r.(*ml.Matrix)
		if !aok || !bok {
			return nil, fmt.Errorf("%%*%% needs two matrices, got %s and %s", l.Kind(), r.Kind())
		}
		return matMul(a, b)
	}

	f, ok := cellOps[op]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", op)
	}

	ls, lScalar := l.(ml.Scalar)
	rs, rScalar := r.(ml.Scalar)
	if lScalar && rScalar {
		return scalarOp(op, f, ls, rs)
	}

	lm, err := asMatrix(l)
	if err != nil {
		return nil, err
	}
	rm, err := asMatrix(r)
	if err != nil {
		return nil, err
	}
	return cellwise(lm, rm, f)
}

func scalarOp(op string, f func(a, b float64) float64, l, r ml.Scalar) (ml.Value, error) {
	if ls, ok := l.V.(string); ok {
		if rs, ok := r.V.(string); ok {
			switch op {
			case "+":
				return ml.Scalar{V: ls + rs}, nil
			case "==":
				return ml.Scalar{V: ls == rs}, nil
			case "!=":
				return ml.Scalar{V: ls != rs}, nil
			}
		}
	}
	if op == "+" {
		_, lstr := l.V.(string)
		_, rstr := r.V.(string)
		if lstr || rstr {
			return ml.Scalar{V: l.String() + r.String()}, nil
		}
	}

	a, aok := l.Float()
	b, bok := r.Float()
	if !aok || !bok {
		return nil, fmt.Errorf("operator %s is not defined for %T and %T", op, l.V, r.V)
	}

	if isComparison(op) {
		return ml.Scalar{V: f(a, b) != 0}, nil
	}

	li, lint := l.V.(int64)
	ri, rint := r.V.(int64)
	if lint && rint {
		switch op {
		case "+":
			return ml.Scalar{V: li + ri}, nil
		case "-":
			return ml.Scalar{V: li - ri}, nil
		case "*":
			return ml.Scalar{V: li * ri}, nil
		}
	}
	return ml.Scalar{V: f(a, b)}, nil
}

// asMatrix treats numeric scalars as 1x1 matrices.
func asMatrix(v ml.Value) (*ml.Matrix, error) {
	switch v := v.(type) {
	case *ml.Matrix:
		return v, nil
	case ml.Scalar:
		f, ok := v.Float()
		if !ok {
			return nil, fmt.Errorf("expected a numeric value, got %T", v.V)
		}
		return ml.NewMatrix(1, 1, []float64{f}), nil
	default:
		return nil, fmt.Errorf("expected a matrix, got %s", v.Kind())
	}
}

// cellwise applies f cell by cell. A 1x1 operand, a row vector or a
// column vector is broadcast along the other operand.
func cellwise(a, b *ml.Matrix, f func(x, y float64) float64) (*ml.Matrix, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()

	rows, ok := broadcast(ar, br)
	if !ok {
		return nil, fmt.Errorf("non-conforming dimensions %dx%d and %dx%d", ar, ac, br, bc)
	}
	cols, ok := broadcast(ac, bc)
	if !ok {
		return nil, fmt.Errorf("non-conforming dimensions %dx%d and %dx%d", ar, ac, br, bc)
	}

	out := ml.NewMatrix(rows, cols, nil)
	if rows == 0 || cols == 0 {
		return out, nil
	}
	d := out.Dense()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d.Set(i, j, f(a.At(i%ar, j%ac), b.At(i%br, j%bc)))
		}
	}
	return out, nil
}

func broadcast(a, b int) (int, bool) {
	switch {
	case a == b:
		return a, true
	case a == 1:
		return b, true
	case b == 1:
		return a, true
	default:
		return 0, false
	}
}

func matMul(a, b *ml.Matrix) (*ml.Matrix, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		return nil, fmt.Errorf("non-conforming dimensions for matrix multiplication %dx%d and %dx%d", ar, ac, br, bc)
	}
	if ar == 0 || bc == 0 || ac == 0 {
		return ml.NewMatrix(ar, bc, nil), nil
	}
	var out mat.Dense
	out.Mul(a.Dense(), b.Dense())
	return ml.FromDense(&out), nil
}

func unaryOp(op string, v ml.Value) (ml.Value, error) {
	switch v := v.(type) {
	case ml.Scalar:
		switch x := v.V.(type) {
		case int64:
			if op == "-" {
				return ml.Scalar{V: -x}, nil
			}
		case bool:
			if op == "!" {
				return ml.Scalar{V: !x}, nil
			}
		}
		f, ok := v.Float()
		if !ok {
			return nil, fmt.Errorf("operator %s is not defined for %T", op, v.V)
		}
		if op == "!" {
			return ml.Scalar{V: f == 0}, nil
		}
		return ml.Scalar{V: -f}, nil
	case *ml.Matrix:
		if op == "!" {
			return mapCells(v, func(x float64) float64 { return b2f(x == 0) }), nil
		}
		return mapCells(v, func(x float64) float64 { return -x }), nil
	default:
		return nil, fmt.Errorf("operator %s is not defined for %s", op, v.Kind())
	}
}

func mapCells(m *ml.Matrix, f func(float64) float64) *ml.Matrix {
	rows, cols := m.Dims()
	out := ml.NewMatrix(rows, cols, nil)
	if rows == 0 || cols == 0 {
		return out
	}
	out.Dense().Apply(func(i, j int, x float64) float64 { return f(x) }, m.Dense())
	return out
}
