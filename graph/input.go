// input.go - Eingaben eines Knotens
// Eine Eingabe ist entweder ein Literal oder eine Referenz auf einen Knoten.
package graph

import (
	"fmt"
	"math"
)

// Ref addresses one output of a node. Index is 0 for single-output nodes.
type Ref struct {
	Node  *Node
	Index int
}

// Input is either a literal (float64, int64, bool, string) or a Ref.
type Input struct {
	ref *Ref
	lit any
}

// Lit wraps a literal. Integer and float kinds are widened to int64 and
// float64.
func Lit(v any) Input {
	return Input{lit: v}
}

// RefTo references output index of n.
func RefTo(n *Node, index int) Input {
	return Input{ref: &Ref{Node: n, Index: index}}
}

func (in Input) IsRef() bool {
	return in.ref != nil
}

// Ref returns the referenced output. It panics for literals.
func (in Input) Ref() Ref {
	if in.ref == nil {
		panic("graph: input is a literal")
	}
	return *in.ref
}

// Literal returns the normalized literal value.
func (in Input) Literal() any {
	return in.lit
}

func uintLiteral(v uint64) (any, error) {
	if v > math.MaxInt64 {
		return nil, fmt.Errorf("literal %d overflows int64", v)
	}
	return int64(v), nil
}

func normalizeLiteral(v any) (any, error) {
	switch v := v.(type) {
	case float64, int64, bool, string:
		return v, nil
	case float32:
		if math.IsNaN(float64(v)) {
			return math.NaN(), nil
		}
		return float64(v), nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return uintLiteral(uint64(v))
	case uint64:
		return uintLiteral(v)
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return nil, fmt.Errorf("unsupported literal type %T", v)
	}
}
