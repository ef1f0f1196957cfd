// Package graph - Knotentabelle und Graph-Builder
//
// Der Graph sammelt Knoten in Erstellungsreihenfolge:
// - NewNode: Validierung der Referenzen und Registrierung
// - Node/Nodes/Len: Zugriff auf die Knotentabelle
//
// Package graph holds the deferred computation DAG. Nodes can only reference
// nodes that already exist, which keeps the graph acyclic by construction.
// The graph performs no work beyond construction: operator names and
// argument shapes are validated by the engine at execution time.
package graph

import (
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sysds/sysds/api"
)

// Graph is the node table of one execution context.
type Graph struct {
	mu    sync.Mutex
	next  NodeID
	nodes map[NodeID]*Node
	order []*Node
}

func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// NewNode validates spec and registers a new node. Every referenced node
// must belong to g (api.ErrContextMismatch otherwise) and be registered
// (*api.CompileError otherwise).
func (g *Graph) NewNode(spec NodeSpec) (*Node, error) {
	n := &Node{
		graph:  g,
		op:     spec.Op,
		output: spec.Output,
		source: spec.Source,
	}

	switch spec.Output {
	case TypeNone:
	case TypeMultiReturn:
		if len(spec.Outputs) == 0 {
			return nil, &api.CompileError{Op: spec.Op, Reason: "multi-return operator declares no outputs"}
		}
		n.outputs = append([]ValueType(nil), spec.Outputs...)
	default:
		n.outputs = []ValueType{spec.Output}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var err error
	if n.positional, err = g.checkInputs(spec.Op, spec.Positional); err != nil {
		return nil, err
	}

	if spec.Named != nil {
		n.named = orderedmap.New[string, Input](orderedmap.WithCapacity[string, Input](spec.Named.Len()))
		for pair := spec.Named.Oldest(); pair != nil; pair = pair.Next() {
			in, err := g.checkInput(spec.Op, pair.Key, pair.Value)
			if err != nil {
				return nil, err
			}
			n.named.Set(pair.Key, in)
		}
	}

	g.next++
	n.id = g.next
	g.nodes[n.id] = n
	g.order = append(g.order, n)
	return n, nil
}

func (g *Graph) checkInputs(op string, inputs []Input) ([]Input, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	checked := make([]Input, len(inputs))
	for i, in := range inputs {
		var err error
		if checked[i], err = g.checkInput(op, fmt.Sprintf("#%d", i), in); err != nil {
			return nil, err
		}
	}
	return checked, nil
}

func (g *Graph) checkInput(op, name string, in Input) (Input, error) {
	if !in.IsRef() {
		lit, err := normalizeLiteral(in.Literal())
		if err != nil {
			return Input{}, fmt.Errorf("%s: argument %s: %w", op, name, err)
		}
		return Lit(lit), nil
	}

	ref := in.Ref()
	if ref.Node == nil {
		return Input{}, &api.CompileError{Op: op, Reason: fmt.Sprintf("argument %s references no node", name)}
	}
	if ref.Node.graph != g {
		return Input{}, fmt.Errorf("%w: %s argument %s", api.ErrContextMismatch, op, name)
	}
	if registered, ok := g.nodes[ref.Node.id]; !ok || registered != ref.Node {
		return Input{}, &api.CompileError{NodeID: uint64(ref.Node.id), Op: op, Reason: fmt.Sprintf("argument %s is a dangling reference", name)}
	}
	if ref.Node.output != TypeNone && (ref.Index < 0 || ref.Index >= len(ref.Node.outputs)) {
		return Input{}, &api.CompileError{NodeID: uint64(ref.Node.id), Op: op, Reason: fmt.Sprintf("argument %s references output %d of %d", name, ref.Index, len(ref.Node.outputs))}
	}
	return in, nil
}

// Node looks up a registered node.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}

// Nodes returns the registered nodes in creation order.
func (g *Graph) Nodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Node(nil), g.order...)
}
