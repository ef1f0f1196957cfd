// node.go - Ein verzoegerter Operator-Aufruf im Graphen
// Dieses Modul definiert Node, NodeSpec und Source.
package graph

import (
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sysds/sysds/api"
)

// NodeID identifies a node within its graph. IDs increase in creation order.
type NodeID uint64

// Source is an inline data upload bound to a read node.
type Source struct {
	Frame api.Frame
	// Digest is the content hash of the uploaded payload.
	Digest string
}

// NodeSpec describes a node to be created.
type NodeSpec struct {
	Op         string
	Positional []Input
	// Named inputs keep their insertion order in the emitted statement.
	Named  *orderedmap.OrderedMap[string, Input]
	Output ValueType
	// Outputs lists the element types of a TypeMultiReturn node.
	Outputs []ValueType
	Source  *Source
}

// Node is one deferred operator invocation. Its identity, operator and
// inputs never change after creation; the materialization fields are owned
// by the execution context and must only be touched under its lock.
type Node struct {
	id         NodeID
	graph      *Graph
	op         string
	positional []Input
	named      *orderedmap.OrderedMap[string, Input]
	output     ValueType
	outputs    []ValueType
	source     *Source

	state   State
	vars    []string
	results []any
	err     error
	done    <-chan struct{}
}

func (n *Node) ID() NodeID               { return n.id }
func (n *Node) Graph() *Graph            { return n.graph }
func (n *Node) Op() string               { return n.op }
func (n *Node) Output() ValueType        { return n.output }
func (n *Node) Source() *Source          { return n.source }
func (n *Node) Positional() []Input      { return n.positional }
func (n *Node) NumOutputs() int          { return len(n.outputs) }
func (n *Node) OutputTypes() []ValueType { return n.outputs }

// Named returns the named inputs in insertion order. It may be nil.
func (n *Node) Named() *orderedmap.OrderedMap[string, Input] {
	return n.named
}

// OutputType returns the type of output index.
func (n *Node) OutputType(index int) ValueType {
	if index < 0 || index >= len(n.outputs) {
		return TypeNone
	}
	return n.outputs[index]
}

// Deps returns the distinct nodes referenced by n, positional inputs first.
func (n *Node) Deps() []*Node {
	var deps []*Node
	seen := make(map[NodeID]bool)
	n.EachInput(func(_ string, in Input) {
		if !in.IsRef() {
			return
		}
		dep := in.Ref().Node
		if !seen[dep.id] {
			seen[dep.id] = true
			deps = append(deps, dep)
		}
	})
	return deps
}

// EachInput calls fn for every input; name is empty for positional inputs.
func (n *Node) EachInput(fn func(name string, in Input)) {
	for _, in := range n.positional {
		fn("", in)
	}
	if n.named != nil {
		for pair := n.named.Oldest(); pair != nil; pair = pair.Next() {
			fn(pair.Key, pair.Value)
		}
	}
}

func (n *Node) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d %s(", n.id, n.op)
	i := 0
	n.EachInput(func(name string, in Input) {
		if i > 0 {
			sb.WriteString(", ")
		}
		i++
		if name != "" {
			sb.WriteString(name + "=")
		}
		if in.IsRef() {
			fmt.Fprintf(&sb, "#%d", in.Ref().Node.id)
			if in.Ref().Node.output == TypeMultiReturn {
				fmt.Fprintf(&sb, "[%d]", in.Ref().Index)
			}
		} else {
			fmt.Fprintf(&sb, "%v", in.Literal())
		}
	})
	fmt.Fprintf(&sb, ") -> %s", n.output)
	return sb.String()
}

// State returns the materialization state.
func (n *Node) State() State { return n.state }

// Vars returns the script variables bound to the outputs, once assigned.
func (n *Node) Vars() []string { return n.vars }

// Err returns the failure of a Failed node.
func (n *Node) Err() error { return n.err }

// Done is closed when the submission that claimed an InFlight node returns.
func (n *Node) Done() <-chan struct{} { return n.done }

// Result returns the cached decoded value of output index.
func (n *Node) Result(index int) (any, bool) {
	if index < 0 || index >= len(n.results) || n.results[index] == nil {
		return nil, false
	}
	return n.results[index], true
}

// Bind assigns script variables to the outputs.
func (n *Node) Bind(vars []string) {
	n.vars = vars
}

// Claim moves a Pending node to InFlight.
func (n *Node) Claim(done <-chan struct{}) bool {
	if n.state != Pending {
		return false
	}
	n.state = InFlight
	n.done = done
	return true
}

// Materialize marks the node as computed.
func (n *Node) Materialize() {
	n.state = Materialized
	n.done = nil
	n.err = nil
}

// Fail marks the node as failed with err.
func (n *Node) Fail(err error) {
	n.state = Failed
	n.done = nil
	n.err = err
}

// Release returns an InFlight node to Pending.
func (n *Node) Release() {
	if n.state == InFlight {
		n.state = Pending
		n.done = nil
	}
}

// SetResult caches the decoded value of output index.
func (n *Node) SetResult(index int, v any) {
	if n.results == nil {
		n.results = make([]any, max(len(n.outputs), 1))
	}
	if index >= 0 && index < len(n.results) {
		n.results[index] = v
	}
}
