// Package compiler - Uebersetzung eines Teilgraphen in ein Skript
//
// Ablauf von Compile:
// - Tiefensuche ab den Zielknoten ueber alle nicht materialisierten Knoten
// - Materialisierte Knoten sind Blaetter mit bereits gebundener Variable
// - Kahn-Sortierung mit Prioritaet nach Erstellungsreihenfolge
// - Ein Statement pro Knoten, Multi-Return als ein Statement mit mehreren Variablen
package compiler

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/emirpasic/gods/v2/queues/priorityqueue"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/graph"
)

// NodeTable resolves node ids to registered nodes.
type NodeTable interface {
	Node(id graph.NodeID) (*graph.Node, bool)
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

var infixOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "^": true, "%*%": true, "%%": true,
	"<": true, ">": true, "<=": true, ">=": true, "==": true, "!=": true,
	"&": true, "|": true,
}

// IsInfix reports whether op is rendered as a binary infix operator.
func IsInfix(op string) bool {
	return infixOps[op]
}

// Reachable returns the non-materialized nodes reachable from targets, in
// creation order. Materialized nodes are not traversed.
func Reachable(table NodeTable, targets []graph.Ref) ([]*graph.Node, error) {
	var reached []*graph.Node
	seen := make(map[graph.NodeID]bool)

	stack := make([]*graph.Node, 0, len(targets))
	for _, t := range targets {
		if err := registered(table, t.Node, nil); err != nil {
			return nil, err
		}
		stack = append(stack, t.Node)
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n.ID()] || n.State() == graph.Materialized {
			continue
		}
		seen[n.ID()] = true
		reached = append(reached, n)

		for _, dep := range n.Deps() {
			if err := registered(table, dep, n); err != nil {
				return nil, err
			}
			if dep.Output() == graph.TypeNone {
				return nil, &api.CompileError{NodeID: uint64(n.ID()), Op: n.Op(), Reason: fmt.Sprintf("operator %s of node %d has no outputs and cannot be used as a value", dep.Op(), dep.ID())}
			}
			if !seen[dep.ID()] {
				stack = append(stack, dep)
			}
		}
	}

	slices.SortFunc(reached, func(a, b *graph.Node) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	return reached, nil
}

func registered(table NodeTable, n, user *graph.Node) error {
	if n == nil {
		return &api.CompileError{Reason: "nil node"}
	}
	if found, ok := table.Node(n.ID()); !ok || found != n {
		e := &api.CompileError{NodeID: uint64(n.ID()), Op: n.Op(), Reason: "dangling reference: node is not in the node table"}
		if user != nil {
			e.Reason = fmt.Sprintf("dangling reference from node %d", user.ID())
		}
		return e
	}
	return nil
}

// Compile emits one statement per non-materialized node reachable from
// targets, dependencies first and ties broken by creation order, plus an
// output manifest for the requested targets. Targets of type TypeNone are
// executed but produce no manifest entry.
func Compile(table NodeTable, names Namer, targets []graph.Ref) (*Program, error) {
	pending, err := Reachable(table, targets)
	if err != nil {
		return nil, err
	}

	order, err := topoSort(pending)
	if err != nil {
		return nil, err
	}

	p := &Program{}
	for _, n := range order {
		text, err := emit(n, names)
		if err != nil {
			return nil, err
		}
		p.Statements = append(p.Statements, Statement{Node: n, Text: text})

		if src := n.Source(); src != nil {
			frame := src.Frame
			frame.Name = InputName(n)
			p.Inputs = append(p.Inputs, frame)
		}
	}

	requested := make(map[string]bool)
	for _, t := range targets {
		if t.Node.Output() == graph.TypeNone {
			continue
		}
		if t.Node.State() == graph.Materialized && t.Node.Vars() == nil {
			return nil, &api.CompileError{NodeID: uint64(t.Node.ID()), Op: t.Node.Op(), Reason: "materialized node has no variable binding"}
		}
		vars := names.Vars(t.Node)
		if t.Index < 0 || t.Index >= len(vars) {
			return nil, &api.CompileError{NodeID: uint64(t.Node.ID()), Op: t.Node.Op(), Reason: fmt.Sprintf("output %d of %d requested", t.Index, len(vars))}
		}
		v := vars[t.Index]
		if requested[v] {
			continue
		}
		requested[v] = true
		p.Outputs = append(p.Outputs, Output{Var: v, Type: t.Node.OutputType(t.Index), Node: t.Node, Index: t.Index})
	}

	return p, nil
}

// topoSort orders nodes with Kahn's algorithm, always emitting the ready
// node with the smallest id.
func topoSort(nodes []*graph.Node) ([]*graph.Node, error) {
	inSet := make(map[graph.NodeID]bool, len(nodes))
	for _, n := range nodes {
		inSet[n.ID()] = true
	}

	indegree := make(map[graph.NodeID]int, len(nodes))
	users := make(map[graph.NodeID][]*graph.Node, len(nodes))
	for _, n := range nodes {
		for _, dep := range n.Deps() {
			if inSet[dep.ID()] {
				indegree[n.ID()]++
				users[dep.ID()] = append(users[dep.ID()], n)
			}
		}
	}

	ready := priorityqueue.NewWith(func(a, b *graph.Node) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	for _, n := range nodes {
		if indegree[n.ID()] == 0 {
			ready.Enqueue(n)
		}
	}

	order := make([]*graph.Node, 0, len(nodes))
	for !ready.Empty() {
		n, _ := ready.Dequeue()
		order = append(order, n)
		for _, u := range users[n.ID()] {
			indegree[u.ID()]--
			if indegree[u.ID()] == 0 {
				ready.Enqueue(u)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, &api.CompileError{Reason: fmt.Sprintf("graph has a cycle: ordered %d of %d nodes", len(order), len(nodes))}
	}
	return order, nil
}

func emit(n *graph.Node, names Namer) (string, error) {
	lhs := names.Vars(n)

	var rhs string
	switch {
	case n.Source() != nil:
		rhs = fmt.Sprintf("%s($%s)", graph.OpRead, InputName(n))
	case n.Op() == graph.OpLiteral:
		if len(n.Positional()) != 1 || n.Positional()[0].IsRef() {
			return "", &api.CompileError{NodeID: uint64(n.ID()), Op: n.Op(), Reason: "literal node needs exactly one literal input"}
		}
		rhs = FormatLiteral(n.Positional()[0].Literal())
	case IsInfix(n.Op()) && len(n.Positional()) == 2 && (n.Named() == nil || n.Named().Len() == 0):
		a, err := arg(n, n.Positional()[0], names)
		if err != nil {
			return "", err
		}
		b, err := arg(n, n.Positional()[1], names)
		if err != nil {
			return "", err
		}
		rhs = fmt.Sprintf("(%s %s %s)", a, n.Op(), b)
	default:
		if !identRE.MatchString(n.Op()) {
			return "", &api.CompileError{NodeID: uint64(n.ID()), Op: n.Op(), Reason: "invalid operator name"}
		}
		var args []string
		var argErr error
		n.EachInput(func(name string, in graph.Input) {
			if argErr != nil {
				return
			}
			if name != "" && !identRE.MatchString(name) {
				argErr = &api.CompileError{NodeID: uint64(n.ID()), Op: n.Op(), Reason: fmt.Sprintf("invalid argument name %q", name)}
				return
			}
			s, err := arg(n, in, names)
			if err != nil {
				argErr = err
				return
			}
			if name != "" {
				s = name + "=" + s
			}
			args = append(args, s)
		})
		if argErr != nil {
			return "", argErr
		}
		rhs = fmt.Sprintf("%s(%s)", n.Op(), strings.Join(args, ", "))
	}

	switch len(lhs) {
	case 0:
		return rhs + ";", nil
	case 1:
		if n.Output() != graph.TypeMultiReturn {
			return fmt.Sprintf("%s = %s;", lhs[0], rhs), nil
		}
	}
	return fmt.Sprintf("[%s] = %s;", strings.Join(lhs, ", "), rhs), nil
}

func arg(n *graph.Node, in graph.Input, names Namer) (string, error) {
	if !in.IsRef() {
		return FormatLiteral(in.Literal()), nil
	}
	ref := in.Ref()
	if ref.Node.Output() == graph.TypeNone {
		return "", &api.CompileError{NodeID: uint64(n.ID()), Op: n.Op(), Reason: fmt.Sprintf("operator %s of node %d has no outputs and cannot be used as a value", ref.Node.Op(), ref.Node.ID())}
	}
	vars := names.Vars(ref.Node)
	if ref.Index < 0 || ref.Index >= len(vars) {
		return "", &api.CompileError{NodeID: uint64(n.ID()), Op: n.Op(), Reason: fmt.Sprintf("input references output %d of node %d", ref.Index, ref.Node.ID())}
	}
	return vars[ref.Index], nil
}
