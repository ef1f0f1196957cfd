package compiler

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/graph"
)

func mustNode(t *testing.T, g *graph.Graph, spec graph.NodeSpec) *graph.Node {
	t.Helper()
	n, err := g.NewNode(spec)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func upload(t *testing.T, g *graph.Graph) *graph.Node {
	return mustNode(t, g, graph.NodeSpec{
		Op:     graph.OpRead,
		Output: graph.TypeMatrix,
		Source: &graph.Source{Frame: api.Frame{Kind: api.KindMatrix, Rows: 1, Cols: 1}},
	})
}

func named(kv ...any) *orderedmap.OrderedMap[string, graph.Input] {
	m := orderedmap.New[string, graph.Input]()
	for i := 0; i < len(kv); i += 2 {
		in, ok := kv[i+1].(graph.Input)
		if !ok {
			in = graph.Lit(kv[i+1])
		}
		m.Set(kv[i].(string), in)
	}
	return m
}

func TestCompileOrder(t *testing.T) {
	g := graph.New()
	x := upload(t, g)
	// b wird vor a erzeugt, haengt aber nicht von a ab
	b := mustNode(t, g, graph.NodeSpec{Op: "abs", Positional: []graph.Input{graph.RefTo(x, 0)}, Output: graph.TypeMatrix})
	a := mustNode(t, g, graph.NodeSpec{Op: "sigmoid", Named: named("X", graph.RefTo(x, 0)), Output: graph.TypeMatrix})
	sum := mustNode(t, g, graph.NodeSpec{Op: "+", Positional: []graph.Input{graph.RefTo(a, 0), graph.RefTo(b, 0)}, Output: graph.TypeMatrix})

	var syms Symbols
	p, err := Compile(g, &syms, []graph.Ref{{Node: sum}})
	if err != nil {
		t.Fatal(err)
	}

	want := "V1 = read($in1);\nV2 = abs(V1);\nV3 = sigmoid(X=V1);\nV4 = (V3 + V2);\n"
	if diff := cmp.Diff(want, p.Script()); diff != "" {
		t.Errorf("Skript unterscheidet sich (-erwartet +erhalten):\n%s", diff)
	}
	if len(p.Inputs) != 1 || p.Inputs[0].Name != "in1" {
		t.Errorf("Inputs = %v, erwartet [in1]", p.Inputs)
	}
	if len(p.Outputs) != 1 || p.Outputs[0].Var != "V4" {
		t.Errorf("Outputs = %v, erwartet [V4]", p.Outputs)
	}

	req := p.Request()
	if len(req.Statements) != 4 || req.Statements[3].NodeID != uint64(sum.ID()) {
		t.Errorf("Statements = %v", req.Statements)
	}
}

func TestCompileSkipsMaterialized(t *testing.T) {
	g := graph.New()
	x := upload(t, g)
	y := mustNode(t, g, graph.NodeSpec{Op: "t", Positional: []graph.Input{graph.RefTo(x, 0)}, Output: graph.TypeMatrix})

	var syms Symbols
	if _, err := Compile(g, &syms, []graph.Ref{{Node: y}}); err != nil {
		t.Fatal(err)
	}
	x.Materialize()
	y.Materialize()

	z := mustNode(t, g, graph.NodeSpec{Op: "%*%", Positional: []graph.Input{graph.RefTo(y, 0), graph.RefTo(x, 0)}, Output: graph.TypeMatrix})
	p, err := Compile(g, &syms, []graph.Ref{{Node: z}, {Node: x}})
	if err != nil {
		t.Fatal(err)
	}

	if got, want := p.Script(), "V3 = (V2 %*% V1);\n"; got != want {
		t.Errorf("Script() = %q, erwartet %q", got, want)
	}
	if len(p.Inputs) != 0 {
		t.Errorf("materialisierte Uploads duerfen nicht erneut gesendet werden")
	}
	vars := []string{p.Outputs[0].Var, p.Outputs[1].Var}
	if diff := cmp.Diff([]string{"V3", "V1"}, vars); diff != "" {
		t.Errorf("Outputs (-erwartet +erhalten):\n%s", diff)
	}
}

func TestCompileMultiReturnAndVoid(t *testing.T) {
	g := graph.New()
	x := upload(t, g)
	svd := mustNode(t, g, graph.NodeSpec{Op: "svd", Named: named("A", graph.RefTo(x, 0)), Output: graph.TypeMultiReturn, Outputs: []graph.ValueType{graph.TypeMatrix, graph.TypeMatrix, graph.TypeMatrix}})
	pr := mustNode(t, g, graph.NodeSpec{Op: "print", Positional: []graph.Input{graph.RefTo(svd, 1)}, Output: graph.TypeNone})

	var syms Symbols
	p, err := Compile(g, &syms, []graph.Ref{{Node: pr}, {Node: svd, Index: 2}})
	if err != nil {
		t.Fatal(err)
	}

	want := "V1 = read($in1);\n[V2, V3, V4] = svd(A=V1);\nprint(V3);\n"
	if diff := cmp.Diff(want, p.Script()); diff != "" {
		t.Errorf("Skript unterscheidet sich (-erwartet +erhalten):\n%s", diff)
	}
	if len(p.Outputs) != 1 || p.Outputs[0].Var != "V4" || p.Outputs[0].Type != graph.TypeMatrix {
		t.Errorf("Outputs = %+v, erwartet nur V4", p.Outputs)
	}
}

func TestCompileVoidAsValue(t *testing.T) {
	g := graph.New()
	x := upload(t, g)
	pr := mustNode(t, g, graph.NodeSpec{Op: "print", Positional: []graph.Input{graph.RefTo(x, 0)}, Output: graph.TypeNone})
	bad := mustNode(t, g, graph.NodeSpec{Op: "abs", Positional: []graph.Input{graph.RefTo(pr, 0)}, Output: graph.TypeMatrix})

	var syms Symbols
	_, err := Compile(g, &syms, []graph.Ref{{Node: bad}})
	var cerr *api.CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, erwartet CompileError", err)
	}
	if cerr.NodeID != uint64(bad.ID()) {
		t.Errorf("NodeID = %d, erwartet %d", cerr.NodeID, bad.ID())
	}
}

func TestCompileForeignTarget(t *testing.T) {
	g1, g2 := graph.New(), graph.New()
	x := upload(t, g1)
	upload(t, g2)

	var syms Symbols
	_, err := Compile(g2, &syms, []graph.Ref{{Node: x}})
	var cerr *api.CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, erwartet CompileError", err)
	}
}

func TestCompileInvalidNames(t *testing.T) {
	g := graph.New()
	x := upload(t, g)

	for _, op := range []string{"rm -rf", "a;b", ""} {
		n := mustNode(t, g, graph.NodeSpec{Op: op, Positional: []graph.Input{graph.RefTo(x, 0)}, Output: graph.TypeMatrix})
		var syms Symbols
		if _, err := Compile(g, &syms, []graph.Ref{{Node: n}}); err == nil {
			t.Errorf("Operator %q: erwartet Fehler", op)
		}
	}

	n := mustNode(t, g, graph.NodeSpec{Op: "abs", Named: named("x y", 1), Output: graph.TypeMatrix})
	var syms Symbols
	if _, err := Compile(g, &syms, []graph.Ref{{Node: n}}); err == nil {
		t.Error("ungueltiger Argumentname: erwartet Fehler")
	}
}

func TestFormatLiteral(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{1.0, "1.0"},
		{-2.5, "-2.5"},
		{1e21, "1e+21"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Inf"},
		{math.Inf(-1), "-Inf"},
		{int64(3), "3"},
		{true, "TRUE"},
		{false, "FALSE"},
		{"a\"b\\c\n", `"a\"b\\c\n"`},
		{"\x01", `"\u0001"`},
	}
	for _, tt := range cases {
		if got := FormatLiteral(tt.in); got != tt.want {
			t.Errorf("FormatLiteral(%#v) = %q, erwartet %q", tt.in, got, tt.want)
		}
	}
}
