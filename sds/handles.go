// handles.go - Typisierte Handles auf Graph-Knoten
//
// Jeder Handle ist unveraenderlich und kapselt {Context, Knoten, Index}.
// Fehler beim Graph-Aufbau bleiben am Handle haengen und werden von Err
// und Compute gemeldet, ohne dass etwas an die Engine geht.
package sds

import (
	"context"
	"fmt"

	"github.com/sysds/sysds/graph"
	"github.com/sysds/sysds/ml"
)

// Handle is implemented by every handle type.
type Handle interface {
	// Err returns the error recorded while building the handle.
	Err() error
	// Node returns the graph node, nil if Err is set.
	Node() *graph.Node

	owner() *Context
	ref() graph.Ref
}

type handle struct {
	ctx   *Context
	node  *graph.Node
	index int
	err   error
}

func (h handle) Err() error        { return h.err }
func (h handle) Node() *graph.Node { return h.node }
func (h handle) owner() *Context   { return h.ctx }
func (h handle) ref() graph.Ref    { return graph.Ref{Node: h.node, Index: h.index} }
func (h handle) withErr(err error) handle {
	h.err = err
	return h
}

func (h handle) String() string {
	if h.err != nil {
		return fmt.Sprintf("<error: %v>", h.err)
	}
	return h.node.String()
}

func (h handle) compute(ctx context.Context) (ml.Value, error) {
	if h.err != nil {
		return nil, h.err
	}
	if h.ctx == nil {
		return nil, &CompileError{Reason: "zero handle"}
	}
	vals, err := h.ctx.materialize(ctx, []graph.Ref{h.ref()})
	if err != nil {
		return nil, err
	}
	return vals[0], nil
}

func typeErr(h handle, want graph.ValueType) error {
	return &CompileError{NodeID: uint64(h.node.ID()), Op: h.node.Op(), Reason: fmt.Sprintf("output is %s, not %s", h.node.OutputType(h.index), want)}
}

func unexpected(v ml.Value, want graph.ValueType) error {
	got := "nothing"
	if v != nil {
		got = string(v.Kind())
	}
	return &DecodeError{Expected: want.String(), Got: got}
}

// Matrix is a deferred matrix.
type Matrix struct{ handle }

// Compute materializes the matrix.
func (m Matrix) Compute(ctx context.Context) (*ml.Matrix, error) {
	v, err := m.compute(ctx)
	if err != nil {
		return nil, err
	}
	out, ok := v.(*ml.Matrix)
	if !ok {
		return nil, unexpected(v, graph.TypeMatrix)
	}
	return out, nil
}

// Frame is a deferred frame.
type Frame struct{ handle }

// Compute materializes the frame.
func (f Frame) Compute(ctx context.Context) (*ml.Frame, error) {
	v, err := f.compute(ctx)
	if err != nil {
		return nil, err
	}
	out, ok := v.(*ml.Frame)
	if !ok {
		return nil, unexpected(v, graph.TypeFrame)
	}
	return out, nil
}

// Scalar is a deferred scalar.
type Scalar struct{ handle }

// Compute materializes the scalar.
func (s Scalar) Compute(ctx context.Context) (ml.Scalar, error) {
	v, err := s.compute(ctx)
	if err != nil {
		return ml.Scalar{}, err
	}
	out, ok := v.(ml.Scalar)
	if !ok {
		return ml.Scalar{}, unexpected(v, graph.TypeScalar)
	}
	return out, nil
}

// List is a deferred list.
type List struct{ handle }

// Compute materializes the list.
func (l List) Compute(ctx context.Context) (ml.List, error) {
	v, err := l.compute(ctx)
	if err != nil {
		return nil, err
	}
	out, ok := v.(ml.List)
	if !ok {
		return nil, unexpected(v, graph.TypeList)
	}
	return out, nil
}

// Void is an operator without outputs, run for its side effects.
type Void struct{ handle }

// Compute runs the operator and its pending dependencies.
func (v Void) Compute(ctx context.Context) error {
	_, err := v.compute(ctx)
	return err
}

// MultiReturn is an operator with several outputs, e.g. svd.
type MultiReturn struct{ handle }

// Len returns the number of outputs.
func (m MultiReturn) Len() int {
	if m.node == nil {
		return 0
	}
	return m.node.NumOutputs()
}

// Output returns output i.
func (m MultiReturn) Output(i int) Output {
	h := m.handle
	h.index = i
	if h.err == nil && (i < 0 || i >= m.Len()) {
		h.err = &CompileError{NodeID: uint64(m.node.ID()), Op: m.node.Op(), Reason: fmt.Sprintf("output %d of %d requested", i, m.Len())}
	}
	return Output{h}
}

// Matrix returns output i as a matrix handle.
func (m MultiReturn) Matrix(i int) Matrix {
	return m.Output(i).Matrix()
}

// Compute materializes all outputs in one submission.
func (m MultiReturn) Compute(ctx context.Context) ([]ml.Value, error) {
	if m.err != nil {
		return nil, m.err
	}
	handles := make([]Handle, m.Len())
	for i := range handles {
		handles[i] = m.Output(i)
	}
	return m.ctx.ComputeAll(ctx, handles...)
}

// Output is one slot of a MultiReturn.
type Output struct{ handle }

// Compute materializes the slot.
func (o Output) Compute(ctx context.Context) (ml.Value, error) {
	return o.compute(ctx)
}

func (o Output) Matrix() Matrix {
	if o.err == nil && o.node.OutputType(o.index) != graph.TypeMatrix {
		return Matrix{o.withErr(typeErr(o.handle, graph.TypeMatrix))}
	}
	return Matrix{o.handle}
}

func (o Output) Frame() Frame {
	if o.err == nil && o.node.OutputType(o.index) != graph.TypeFrame {
		return Frame{o.withErr(typeErr(o.handle, graph.TypeFrame))}
	}
	return Frame{o.handle}
}

func (o Output) Scalar() Scalar {
	if o.err == nil && o.node.OutputType(o.index) != graph.TypeScalar {
		return Scalar{o.withErr(typeErr(o.handle, graph.TypeScalar))}
	}
	return Scalar{o.handle}
}

// Untyped is the result of Call before it is given a type.
type Untyped struct{ handle }

func (n Untyped) as(t graph.ValueType) handle {
	if n.err == nil && n.node.Output() != t {
		return n.withErr(typeErr(n.handle, t))
	}
	return n.handle
}

func (n Untyped) Matrix() Matrix           { return Matrix{n.as(graph.TypeMatrix)} }
func (n Untyped) Frame() Frame             { return Frame{n.as(graph.TypeFrame)} }
func (n Untyped) Scalar() Scalar           { return Scalar{n.as(graph.TypeScalar)} }
func (n Untyped) List() List               { return List{n.as(graph.TypeList)} }
func (n Untyped) Void() Void               { return Void{n.as(graph.TypeNone)} }
func (n Untyped) MultiReturn() MultiReturn { return MultiReturn{n.as(graph.TypeMultiReturn)} }
