// ops.go - Operator-Aufrufe und Methoden der Handles
//
// Alle Operatoren gehen durch Context.node:
// - Handles werden zu Referenzen, alles andere zu Literalen
// - Param-Werte werden zu benannten Argumenten in Aufrufreihenfolge
// - Fehler landen am zurueckgegebenen Handle
package sds

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sysds/sysds/graph"
)

// Param is a named operator argument.
type Param struct {
	Name  string
	Value any
}

// P returns a named argument for Call and the operator wrappers.
func P(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// OpSpec describes a generic operator invocation. Args holds positional
// arguments; a Param in Args becomes a named argument.
type OpSpec struct {
	Args   []any
	Output graph.ValueType
	// Outputs lists the element types when Output is TypeMultiReturn.
	Outputs []graph.ValueType
}

// Call appends an arbitrary engine operator to the graph.
func (c *Context) Call(op string, spec OpSpec) Untyped {
	return Untyped{c.node(op, spec.Output, spec.Outputs, spec.Args...)}
}

func (c *Context) node(op string, out graph.ValueType, outs []graph.ValueType, args ...any) handle {
	h := handle{ctx: c}

	c.mu.Lock()
	err := c.usable()
	c.mu.Unlock()
	if err != nil {
		return h.withErr(err)
	}

	spec := graph.NodeSpec{Op: op, Output: out, Outputs: outs}
	for _, a := range args {
		p, named := a.(Param)
		if named {
			a = p.Value
		}
		in, err := c.input(a)
		if err != nil {
			return h.withErr(fmt.Errorf("%s: %w", op, err))
		}
		if !named {
			spec.Positional = append(spec.Positional, in)
			continue
		}
		if spec.Named == nil {
			spec.Named = orderedmap.New[string, graph.Input]()
		}
		spec.Named.Set(p.Name, in)
	}

	h.node, h.err = c.graph.NewNode(spec)
	return h
}

func (c *Context) input(v any) (graph.Input, error) {
	h, ok := v.(Handle)
	if !ok {
		return graph.Lit(v), nil
	}
	if err := h.Err(); err != nil {
		return graph.Input{}, err
	}
	if h.owner() != c {
		return graph.Input{}, ErrContextMismatch
	}
	r := h.ref()
	return graph.RefTo(r.Node, r.Index), nil
}

func (h handle) matrix(op string, args ...any) Matrix {
	if h.err != nil {
		return Matrix{h}
	}
	return Matrix{h.ctx.node(op, graph.TypeMatrix, nil, append([]any{h}, args...)...)}
}

func (h handle) scalar(op string, args ...any) Scalar {
	if h.err != nil {
		return Scalar{h}
	}
	return Scalar{h.ctx.node(op, graph.TypeScalar, nil, append([]any{h}, args...)...)}
}

func (h handle) void(op string, args ...any) Void {
	if h.err != nil {
		return Void{h}
	}
	return Void{h.ctx.node(op, graph.TypeNone, nil, append([]any{h}, args...)...)}
}

// Add returns m + o. o is a handle or a literal.
func (m Matrix) Add(o any) Matrix { return m.matrix("+", o) }
func (m Matrix) Sub(o any) Matrix { return m.matrix("-", o) }
func (m Matrix) Mul(o any) Matrix { return m.matrix("*", o) }
func (m Matrix) Div(o any) Matrix { return m.matrix("/", o) }
func (m Matrix) Pow(o any) Matrix { return m.matrix("^", o) }

// Lt and the other comparisons return 0/1 matrices.
func (m Matrix) Lt(o any) Matrix { return m.matrix("<", o) }
func (m Matrix) Gt(o any) Matrix { return m.matrix(">", o) }
func (m Matrix) Eq(o any) Matrix { return m.matrix("==", o) }

// MatMul returns the matrix product m %*% o.
func (m Matrix) MatMul(o Matrix) Matrix { return m.matrix("%*%", o) }

// T returns the transpose.
func (m Matrix) T() Matrix     { return m.matrix("t") }
func (m Matrix) Sign() Matrix  { return m.matrix("sign") }
func (m Matrix) Abs() Matrix   { return m.matrix("abs") }
func (m Matrix) Exp() Matrix   { return m.matrix("exp") }
func (m Matrix) Log() Matrix   { return m.matrix("log") }
func (m Matrix) Sqrt() Matrix  { return m.matrix("sqrt") }
func (m Matrix) Round() Matrix { return m.matrix("round") }

func (m Matrix) Sigmoid() Matrix { return Sigmoid(m) }

// Sum returns the sum of all cells.
func (m Matrix) Sum() Scalar  { return m.scalar("sum") }
func (m Matrix) Mean() Scalar { return m.scalar("mean") }
func (m Matrix) Min() Scalar  { return m.scalar("min") }
func (m Matrix) Max() Scalar  { return m.scalar("max") }
func (m Matrix) Nrow() Scalar { return m.scalar("nrow") }
func (m Matrix) Ncol() Scalar { return m.scalar("ncol") }

// AsFrame converts the matrix into a frame of f64 columns.
func (m Matrix) AsFrame() Frame {
	if m.err != nil {
		return Frame{m.handle}
	}
	return Frame{m.ctx.node("as.frame", graph.TypeFrame, nil, m.handle)}
}

// Write stores the matrix as CSV on the engine side.
func (m Matrix) Write(path string) Void { return m.void("write", path) }

// Print prints the matrix to the engine's stdout.
func (m Matrix) Print() Void { return m.void("print") }

// AsMatrix converts the frame into a matrix; all columns must be numeric.
func (f Frame) AsMatrix() Matrix { return f.matrix("as.matrix") }
func (f Frame) Nrow() Scalar     { return f.scalar("nrow") }
func (f Frame) Ncol() Scalar     { return f.scalar("ncol") }
func (f Frame) Write(path string) Void {
	return f.void("write", path)
}
func (f Frame) Print() Void { return f.void("print") }

// Add returns s + o as a scalar. Use Matrix.Add for broadcasting over a
// matrix.
func (s Scalar) Add(o any) Scalar { return s.scalar("+", o) }
func (s Scalar) Sub(o any) Scalar { return s.scalar("-", o) }
func (s Scalar) Mul(o any) Scalar { return s.scalar("*", o) }
func (s Scalar) Div(o any) Scalar { return s.scalar("/", o) }
func (s Scalar) Sign() Scalar     { return s.scalar("sign") }
func (s Scalar) Abs() Scalar      { return s.scalar("abs") }
func (s Scalar) Print() Void      { return s.void("print") }

// AsMatrix returns a 1x1 matrix holding the scalar.
func (s Scalar) AsMatrix() Matrix { return s.matrix("as.matrix") }
