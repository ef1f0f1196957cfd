// program.go - Kompiliertes Programm
// Dieses Modul definiert Program, Statement, Output und Symbols.
package compiler

import (
	"fmt"
	"strings"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/graph"
)

// Statement is one line of the emitted script.
type Statement struct {
	Node *graph.Node
	Text string
}

// Output is one entry of the output manifest.
type Output struct {
	Var   string
	Type  graph.ValueType
	Node  *graph.Node
	Index int
}

// Program is a compiled subgraph. It is produced once, submitted once and
// then discarded.
type Program struct {
	Statements []Statement
	Inputs     []api.Frame
	Outputs    []Output
}

// Nodes returns the nodes emitted by the program in statement order.
func (p *Program) Nodes() []*graph.Node {
	nodes := make([]*graph.Node, len(p.Statements))
	for i, s := range p.Statements {
		nodes[i] = s.Node
	}
	return nodes
}

// Script returns the program text, one statement per line.
func (p *Program) Script() string {
	var sb strings.Builder
	for _, s := range p.Statements {
		sb.WriteString(s.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Request builds the wire request for the program.
func (p *Program) Request() *api.ExecuteRequest {
	req := &api.ExecuteRequest{
		Script:     p.Script(),
		Inputs:     p.Inputs,
		Outputs:    make([]string, len(p.Outputs)),
		Statements: make([]api.StatementInfo, len(p.Statements)),
	}
	for i, o := range p.Outputs {
		req.Outputs[i] = o.Var
	}
	for i, s := range p.Statements {
		req.Statements[i] = api.StatementInfo{NodeID: uint64(s.Node.ID()), Op: s.Node.Op()}
	}
	return req
}

// Namer assigns script variables to node outputs.
type Namer interface {
	Vars(n *graph.Node) []string
}

// Symbols is a Namer backed by a monotonically increasing counter. It is
// not safe for concurrent use; callers serialize access.
type Symbols struct {
	next int
}

// Vars returns the variables bound to n, assigning fresh ones on first use.
func (s *Symbols) Vars(n *graph.Node) []string {
	if vars := n.Vars(); vars != nil {
		return vars
	}

	vars := make([]string, n.NumOutputs())
	for i := range vars {
		s.next++
		vars[i] = fmt.Sprintf("V%d", s.next)
	}
	n.Bind(vars)
	return vars
}

// InputName is the program input name of an inline upload node.
func InputName(n *graph.Node) string {
	return fmt.Sprintf("in%d", n.ID())
}
