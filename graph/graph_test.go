package graph

import (
	"errors"
	"math"
	"sync"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sysds/sysds/api"
)

func TestNewNodeAssignsIDsInCreationOrder(t *testing.T) {
	g := New()
	a, err := g.NewNode(NodeSpec{Op: OpLiteral, Positional: []Input{Lit(1)}, Output: TypeScalar})
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.NewNode(NodeSpec{Op: "sign", Positional: []Input{RefTo(a, 0)}, Output: TypeScalar})
	if err != nil {
		t.Fatal(err)
	}

	if a.ID() != 1 || b.ID() != 2 {
		t.Errorf("IDs = %d, %d, erwartet 1, 2", a.ID(), b.ID())
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d, erwartet 2", g.Len())
	}
	if deps := b.Deps(); len(deps) != 1 || deps[0] != a {
		t.Errorf("Deps() = %v, erwartet [%v]", deps, a)
	}
	if a.State() != Pending {
		t.Errorf("State() = %v, erwartet pending", a.State())
	}
	if lit := a.Positional()[0].Literal(); lit != int64(1) {
		t.Errorf("Literal = %#v, erwartet int64(1)", lit)
	}
}

func TestNewNodeRejectsForeignReference(t *testing.T) {
	g1, g2 := New(), New()
	a, _ := g1.NewNode(NodeSpec{Op: OpLiteral, Positional: []Input{Lit(1.0)}, Output: TypeScalar})

	_, err := g2.NewNode(NodeSpec{Op: "abs", Positional: []Input{RefTo(a, 0)}, Output: TypeScalar})
	if !errors.Is(err, api.ErrContextMismatch) {
		t.Fatalf("err = %v, erwartet ErrContextMismatch", err)
	}
	if g2.Len() != 0 {
		t.Errorf("fehlerhafter Knoten wurde registriert")
	}
}

func TestNewNodeValidation(t *testing.T) {
	g := New()
	svd, err := g.NewNode(NodeSpec{Op: "svd", Output: TypeMultiReturn, Outputs: []ValueType{TypeMatrix, TypeMatrix, TypeMatrix}})
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		spec NodeSpec
	}{
		{"multireturn ohne outputs", NodeSpec{Op: "svd", Output: TypeMultiReturn}},
		{"index ausserhalb", NodeSpec{Op: "t", Positional: []Input{RefTo(svd, 3)}, Output: TypeMatrix}},
		{"nil referenz", NodeSpec{Op: "t", Positional: []Input{RefTo(nil, 0)}, Output: TypeMatrix}},
		{"dangling", NodeSpec{Op: "t", Positional: []Input{RefTo(&Node{id: 99, graph: g}, 0)}, Output: TypeMatrix}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.NewNode(tt.spec)
			var cerr *api.CompileError
			if !errors.As(err, &cerr) {
				t.Errorf("err = %v, erwartet CompileError", err)
			}
		})
	}

	if _, err := g.NewNode(NodeSpec{Op: "t", Positional: []Input{Lit(struct{}{})}, Output: TypeMatrix}); err == nil {
		t.Error("erwartet Fehler fuer nicht unterstuetztes Literal")
	}
}

func TestNamedInputsKeepOrder(t *testing.T) {
	g := New()
	named := orderedmap.New[string, Input]()
	named.Set("rows", Lit(2))
	named.Set("cols", Lit(3))
	named.Set("data", Lit(0.5))

	n, err := g.NewNode(NodeSpec{Op: "matrix", Named: named, Output: TypeMatrix})
	if err != nil {
		t.Fatal(err)
	}

	var keys []string
	n.EachInput(func(name string, _ Input) { keys = append(keys, name) })
	want := []string{"rows", "cols", "data"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Reihenfolge = %v, erwartet %v", keys, want)
		}
	}
	if got := n.String(); got != "#1 matrix(rows=2, cols=3, data=0.5) -> matrix" {
		t.Errorf("String() = %q", got)
	}
}

func TestNodeStateTransitions(t *testing.T) {
	g := New()
	n, _ := g.NewNode(NodeSpec{Op: OpLiteral, Positional: []Input{Lit(1.0)}, Output: TypeScalar})

	done := make(chan struct{})
	if !n.Claim(done) {
		t.Fatal("Claim auf pending Knoten fehlgeschlagen")
	}
	if n.Claim(make(chan struct{})) {
		t.Error("zweiter Claim darf nicht gelingen")
	}
	if n.State() != InFlight || n.Done() == nil {
		t.Errorf("State() = %v, erwartet in-flight mit done-Channel", n.State())
	}

	n.Release()
	if n.State() != Pending {
		t.Errorf("State() = %v nach Release, erwartet pending", n.State())
	}

	n.Claim(done)
	n.Bind([]string{"V1"})
	n.Materialize()
	n.SetResult(0, 42.0)
	if v, ok := n.Result(0); !ok || v != 42.0 {
		t.Errorf("Result(0) = %v, %v", v, ok)
	}
	if n.Vars()[0] != "V1" {
		t.Errorf("Vars() = %v", n.Vars())
	}

	m, _ := g.NewNode(NodeSpec{Op: "abs", Positional: []Input{RefTo(n, 0)}, Output: TypeScalar})
	boom := errors.New("boom")
	m.Claim(done)
	m.Fail(boom)
	if m.State() != Failed || !errors.Is(m.Err(), boom) {
		t.Errorf("State() = %v, Err() = %v", m.State(), m.Err())
	}
}

func TestConcurrentNodeCreation(t *testing.T) {
	g := New()
	root, _ := g.NewNode(NodeSpec{Op: OpLiteral, Positional: []Input{Lit(1.0)}, Output: TypeScalar})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := g.NewNode(NodeSpec{Op: "abs", Positional: []Input{RefTo(root, 0)}, Output: TypeScalar}); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	if g.Len() != 1+16*50 {
		t.Fatalf("Len() = %d, erwartet %d", g.Len(), 1+16*50)
	}
	seen := make(map[NodeID]bool)
	for _, n := range g.Nodes() {
		if seen[n.ID()] {
			t.Fatalf("doppelte ID %d", n.ID())
		}
		seen[n.ID()] = true
	}
}

func TestLiteralUnsignedOverflow(t *testing.T) {
	g := New()
	n, err := g.NewNode(NodeSpec{Op: OpLiteral, Positional: []Input{Lit(uint64(7))}, Output: TypeScalar})
	if err != nil {
		t.Fatal(err)
	}
	if lit := n.Positional()[0].Literal(); lit != int64(7) {
		t.Errorf("Literal = %#v, erwartet int64(7)", lit)
	}

	for _, v := range []any{uint64(math.MaxUint64), uint64(math.MaxInt64) + 1} {
		if _, err := g.NewNode(NodeSpec{Op: OpLiteral, Positional: []Input{Lit(v)}, Output: TypeScalar}); err == nil {
			t.Errorf("Literal %v: erwartet Ueberlauf-Fehler", v)
		}
	}
}
