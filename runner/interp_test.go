package runner

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sysds/sysds/ml"
)

func newInterp(t *testing.T) (*interp, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &interp{
		vars:    make(map[string]ml.Value),
		staged:  make(map[string]ml.Value),
		inputs:  make(map[string]ml.Value),
		stdout:  &out,
		workdir: t.TempDir(),
	}, &out
}

func run(t *testing.T, in *interp, script string) {
	t.Helper()
	stmts, err := parse(script)
	require.NoError(t, err)
	require.NoError(t, in.run(stmts))
	in.commit()
}

func matrixVar(t *testing.T, in *interp, name string) *ml.Matrix {
	t.Helper()
	v, ok := in.lookup(name)
	require.True(t, ok, "Variable %s fehlt", name)
	m, ok := v.(*ml.Matrix)
	require.True(t, ok, "%s ist %T", name, v)
	return m
}

func TestSigmoid(t *testing.T) {
	in, _ := newInterp(t)
	in.inputs["in1"] = ml.NewMatrix(4, 1, []float64{1, -2, 3, 4})
	run(t, in, "V1 = read($in1);\nV2 = sigmoid(X=V1);\n")

	got := matrixVar(t, in, "V2").RawData()
	for i, x := range []float64{1, -2, 3, 4} {
		require.InDelta(t, 1/(1+math.Exp(-x)), got[i], 1e-12)
	}
}

func TestArithmetic(t *testing.T) {
	in, _ := newInterp(t)
	run(t, in, `
A = matrix(2, rows=2, cols=2);
B = seq(1, 4);
C = matrix(B, 2, 2);
D = (A * C) - 1;
E = A %*% C;
s = 1 + 2;
f = 7 / 2;
g = "a" + 1;
h = 3 > 2;
`)
	require.Equal(t, []float64{1, 3, 5, 7}, matrixVar(t, in, "D").RawData())
	require.Equal(t, []float64{8, 12, 8, 12}, matrixVar(t, in, "E").RawData())

	for name, want := range map[string]any{"s": int64(3), "f": 3.5, "g": "a1", "h": true} {
		v, _ := in.lookup(name)
		require.Equal(t, ml.Scalar{V: want}, v, name)
	}
}

func TestBroadcast(t *testing.T) {
	in, _ := newInterp(t)
	in.inputs["m"] = ml.NewMatrix(2, 3, []float64{1, 2, 3, 4, 5, 6})
	in.inputs["row"] = ml.NewMatrix(1, 3, []float64{10, 20, 30})
	run(t, in, "X = $m + $row;")
	require.Equal(t, []float64{11, 22, 33, 14, 25, 36}, matrixVar(t, in, "X").RawData())

	stmts, err := parse("Y = $m + matrix(1, 3, 3);")
	require.NoError(t, err)
	require.Error(t, in.run(stmts))
}

func TestSVD(t *testing.T) {
	in, _ := newInterp(t)
	in.inputs["a"] = ml.NewMatrix(3, 2, []float64{1, 2, 3, 4, 5, 6})
	run(t, in, "[U, S, V] = svd($a);\nR = U %*% S %*% t(V);")

	require.True(t, mat.EqualApprox(matrixVar(t, in, "R").Dense(), in.inputs["a"].(*ml.Matrix).Dense(), 1e-9))
	r, c := matrixVar(t, in, "S").Dims()
	require.Equal(t, 2, r)
	require.Equal(t, 2, c)
}

func TestImageBuiltins(t *testing.T) {
	in, _ := newInterp(t)
	in.inputs["img"] = ml.NewMatrix(1, 4, []float64{0, 100, 200, 250})
	run(t, in, `
B = img_brightness_linearized(img_in=$img, value=30, channel_max=255);
P = img_posterize_linearized(img_in=$img, bits=1);
`)
	require.Equal(t, []float64{30, 130, 230, 255}, matrixVar(t, in, "B").RawData())
	require.Equal(t, []float64{0, 0, 128, 128}, matrixVar(t, in, "P").RawData())
}

func TestDiscoverFD(t *testing.T) {
	in, _ := newInterp(t)
	// Spalte 0 bestimmt Spalte 1, aber nicht umgekehrt
	in.inputs["x"] = ml.NewMatrix(4, 2, []float64{
		1, 5,
		2, 5,
		3, 6,
		1, 5,
	})
	run(t, in, "FD = discoverFD(X=$x, Mask=matrix(1, 1, 2), threshold=0.8);")

	fd := matrixVar(t, in, "FD")
	require.Equal(t, 1.0, fd.At(0, 1))
	require.Equal(t, 0.0, fd.At(1, 0))
	require.Equal(t, 0.0, fd.At(0, 0))
}

func TestSign(t *testing.T) {
	in, _ := newInterp(t)
	in.inputs["x"] = ml.NewMatrix(1, 4, []float64{1, -2, 0, 4})
	run(t, in, "S = sign($x);\ns = sign(-0.5);")
	require.Equal(t, []float64{1, -1, 0, 1}, matrixVar(t, in, "S").RawData())
	v, _ := in.lookup("s")
	require.Equal(t, ml.Scalar{V: -1.0}, v)
}

func TestFrames(t *testing.T) {
	in, _ := newInterp(t)
	in.inputs["m"] = ml.NewMatrix(2, 2, []float64{1, 2, 3, 4})
	run(t, in, "F = as.frame($m);\nM = as.matrix(F);\nn = ncol(F);")

	v, _ := in.lookup("F")
	f := v.(*ml.Frame)
	require.Equal(t, []string{"C1", "C2"}, f.Names)
	require.Equal(t, []float64{1, 2, 3, 4}, matrixVar(t, in, "M").RawData())
	n, _ := in.lookup("n")
	require.Equal(t, ml.Scalar{V: int64(2)}, n)
}

func TestPrintWriteRead(t *testing.T) {
	in, out := newInterp(t)
	in.inputs["m"] = ml.NewMatrix(2, 2, []float64{1, 2, 3, 4})
	run(t, in, `print("hallo");
write($m, "m.csv");
X = read("m.csv", format="csv");
`)
	require.Equal(t, "hallo\n", out.String())

	data, err := os.ReadFile(filepath.Join(in.workdir, "m.csv"))
	require.NoError(t, err)
	require.Equal(t, "1,2\n3,4\n", string(data))
	require.Equal(t, []float64{1, 2, 3, 4}, matrixVar(t, in, "X").RawData())
}

func TestRuntimeErrorDoesNotCommit(t *testing.T) {
	in, _ := newInterp(t)
	run(t, in, "A = 1;")

	stmts, err := parse("B = 2;\nC = sigmod(B);\nD = 3;")
	require.NoError(t, err)
	err = in.run(stmts)

	ee, ok := err.(*execError)
	require.True(t, ok)
	require.Equal(t, 1, ee.statement)
	require.Equal(t, "sigmod", ee.op)
	require.True(t, strings.Contains(ee.Error(), `did you mean "sigmoid"`), ee.Error())

	// staged bindings are dropped by the caller
	clear(in.staged)
	_, ok = in.lookup("B")
	require.False(t, ok)
	_, ok = in.lookup("A")
	require.True(t, ok)
}

func TestMemoryBudget(t *testing.T) {
	in, _ := newInterp(t)
	in.memory = 64
	stmts, err := parse("X = rand(rows=10, cols=10, seed=1);")
	require.NoError(t, err)
	err = in.run(stmts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "memory budget")
}

func TestArgumentBinding(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"fehlender Parameter", "X = matrix(1, rows=2);"},
		{"unbekannter Parameter", "X = sigmoid(Y=1);"},
		{"doppelter Parameter", "X = seq(1, 2, from=3);"},
		{"zu viele Argumente", "X = sigmoid(1, 2);"},
		{"zu viele Ziele", "[A, B] = sigmoid(1);"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := newInterp(t)
			stmts, err := parse(tt.script)
			require.NoError(t, err)
			require.Error(t, in.run(stmts))
		})
	}
}
