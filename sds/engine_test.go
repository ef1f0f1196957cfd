package sds

import (
	"context"
	"image"
	"image/color"
	"io"
	"math"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/backend"
	"github.com/sysds/sysds/ml"
	"github.com/sysds/sysds/runner"
)

// openEngine hosts the reference engine in-process and opens a Context on it.
func openEngine(t *testing.T, cfg Config) *Context {
	t.Helper()
	srv := httptest.NewServer(runner.NewServer(runner.Options{WorkDir: t.TempDir(), Stdout: io.Discard}).Handler())
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	b, err := backend.NewRemoteServer(context.Background(), base, backend.Options{HTTPClient: srv.Client()})
	require.NoError(t, err)

	c, err := OpenWithBackend(b, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestEngineSigmoid(t *testing.T) {
	for _, compression := range []string{api.CompressionNone, api.CompressionZstd} {
		t.Run(compression, func(t *testing.T) {
			c := openEngine(t, Config{Compression: compression})

			in := []float64{1, -2, 3, 4}
			got, err := Sigmoid(c.FromSlice(1, 4, in)).Compute(context.Background())
			require.NoError(t, err)

			rows, cols := got.Dims()
			require.Equal(t, 1, rows)
			require.Equal(t, 4, cols)
			for j, x := range in {
				require.InDelta(t, 1/(1+math.Exp(-x)), got.At(0, j), 1e-12, "spalte %d", j)
			}
		})
	}
}

func TestEngineSVD(t *testing.T) {
	c := openEngine(t, Config{})
	ctx := context.Background()

	a := mat.NewDense(3, 2, []float64{3, 1, 1, 3, 0, 2})
	svd := SVD(c.FromDense(a))

	s, err := svd.Matrix(1).Compute(ctx)
	require.NoError(t, err)
	rows, cols := s.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 2, cols)
	require.Zero(t, s.At(0, 1))
	require.GreaterOrEqual(t, s.At(0, 0), s.At(1, 1))

	// U und V wurden in derselben Submission berechnet
	r := svd.Matrix(0).MatMul(svd.Matrix(1)).MatMul(svd.Matrix(2).T())
	got, err := r.Compute(ctx)
	require.NoError(t, err)
	require.True(t, mat.EqualApprox(a, got.Dense(), 1e-9), "rekonstruktion:\n%v", got)

	vals, err := svd.Compute(ctx)
	require.NoError(t, err)
	require.Len(t, vals, 3)
}

func TestEngineStateAcrossSubmissions(t *testing.T) {
	c := openEngine(t, Config{})
	ctx := context.Background()

	a := c.FromSlice(2, 2, []float64{1, 2, 3, 4})
	b := a.Mul(2.0)
	_, err := b.Compute(ctx)
	require.NoError(t, err)

	// b ist nur noch eine Variable in der Engine
	sum, err := b.Add(a).Sum().Compute(ctx)
	require.NoError(t, err)
	f, ok := sum.Float()
	require.True(t, ok)
	require.InDelta(t, 30.0, f, 1e-12)

	n, err := a.Nrow().Compute(ctx)
	require.NoError(t, err)
	nf, _ := n.Float()
	require.Equal(t, 2.0, nf)
}

func TestEngineRuntimeError(t *testing.T) {
	c := openEngine(t, Config{})
	ctx := context.Background()

	m := c.Read("missing.csv").Sigmoid()
	_, err := m.Compute(ctx)
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, "read", rerr.Op)
	require.Equal(t, 0, rerr.Statement)

	// die Engine bleibt nutzbar
	got, err := c.Full(2, 2, 3).Sum().Compute(ctx)
	require.NoError(t, err)
	f, _ := got.Float()
	require.Equal(t, 12.0, f)
}

func TestEngineWriteRead(t *testing.T) {
	c := openEngine(t, Config{})
	ctx := context.Background()

	m := c.Seq(1, 6, 1)
	require.NoError(t, m.Write("seq.csv").Compute(ctx))

	got, err := c.Read("seq.csv").Compute(ctx)
	require.NoError(t, err)
	require.True(t, got.Equal(ml.NewMatrix(6, 1, []float64{1, 2, 3, 4, 5, 6})), "erhalten:\n%v", got)
}

func TestEngineFrameRoundTrip(t *testing.T) {
	c := openEngine(t, Config{})
	ctx := context.Background()

	f := &ml.Frame{}
	require.NoError(t, f.AddColumn("a", []float64{1.5, 2.5}))
	require.NoError(t, f.AddColumn("b", []int64{3, 4}))

	m, err := c.FromFrame(f).AsMatrix().Compute(ctx)
	require.NoError(t, err)
	require.True(t, m.Equal(ml.NewMatrix(2, 2, []float64{1.5, 3, 2.5, 4})), "erhalten:\n%v", m)

	back, err := c.FromSlice(1, 2, []float64{7, 8}).AsFrame().Compute(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, back.Rows())
	require.Equal(t, 2, back.Cols())
}

func TestEngineImages(t *testing.T) {
	c := openEngine(t, Config{})
	ctx := context.Background()

	gray := func(v uint8) image.Image {
		img := image.NewGray(image.Rect(0, 0, 4, 4))
		for y := range 4 {
			for x := range 4 {
				img.SetGray(x, y, color.Gray{Y: v})
			}
		}
		return img
	}

	imgs := c.FromImages([]image.Image{gray(100), gray(200)}, 2, 2)
	got, err := ImgBrightnessLinearized(imgs, 80, 255).Compute(ctx)
	require.NoError(t, err)
	require.True(t, got.Equal(ml.NewMatrix(2, 4, []float64{180, 180, 180, 180, 255, 255, 255, 255})), "erhalten:\n%v", got)

	poster, err := ImgPosterizeLinearized(imgs, 1).Compute(ctx)
	require.NoError(t, err)
	rows, cols := poster.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 4, cols)
}

func TestEngineDiscoverFD(t *testing.T) {
	c := openEngine(t, Config{})

	// Spalte 1 ist eine Funktion von Spalte 0
	x := c.FromSlice(4, 2, []float64{1, 10, 1, 10, 2, 20, 3, 30})
	mask := c.FromSlice(1, 2, []float64{1, 1})
	fd, err := DiscoverFD(x, mask, 0.9).Compute(context.Background())
	require.NoError(t, err)

	rows, cols := fd.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 2, cols)
	require.Equal(t, 1.0, fd.At(0, 1))
}

func TestEngineConcurrentCompute(t *testing.T) {
	c := openEngine(t, Config{NumParallel: 4})
	ctx := context.Background()

	seed := int64(42)
	root := c.Rand(10, 10, RandOptions{Min: -1, Max: 1, Seed: &seed})

	g, ctx := errgroup.WithContext(ctx)
	sums := make([]float64, 8)
	for i := range sums {
		g.Go(func() error {
			s, err := root.Add(float64(i)).Sum().Compute(ctx)
			if err != nil {
				return err
			}
			sums[i], _ = s.Float()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// jede Summe verschiebt sich um 100 pro Schritt
	for i := 1; i < len(sums); i++ {
		require.InDelta(t, 100.0, sums[i]-sums[i-1], 1e-9)
	}
}

func TestEngineExec(t *testing.T) {
	c := openEngine(t, Config{})
	ctx := context.Background()

	vals, err := c.Exec(ctx, "X = seq(1, 4, 1);\ns = sum(X);\n", "X", "s")
	require.NoError(t, err)
	require.Len(t, vals, 2)

	m, ok := vals[0].(*ml.Matrix)
	require.True(t, ok, "erwartet Matrix, erhalten %T", vals[0])
	rows, _ := m.Dims()
	require.Equal(t, 4, rows)

	s, ok := vals[1].(ml.Scalar)
	require.True(t, ok, "erwartet Skalar, erhalten %T", vals[1])
	f, _ := s.Float()
	require.Equal(t, 10.0, f)

	_, err = c.Exec(ctx, "X = seq(1, 4, 1);\n", "X; rm")
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)

	_, err = c.Exec(ctx, "Y = read(\"missing.csv\");\n", "Y")
	var rerr *RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, 0, rerr.Statement)
}

func TestEngineExecKeepsGraphBindings(t *testing.T) {
	c := openEngine(t, Config{})
	ctx := context.Background()

	x := c.Seq(1, 4, 1)
	sum, err := x.Sum().Compute(ctx)
	require.NoError(t, err)
	f, _ := sum.Float()
	require.Equal(t, 10.0, f)
	require.Equal(t, []string{"V1"}, x.Node().Vars())

	// das Skript verwendet denselben Namen wie der Graph
	_, err = c.Exec(ctx, "V1 = seq(1, 100, 1);\n")
	require.NoError(t, err)

	sum, err = x.Sum().Compute(ctx)
	require.NoError(t, err)
	f, _ = sum.Float()
	require.Equal(t, 10.0, f)
}

func TestEngineSigmoidColumn(t *testing.T) {
	c := openEngine(t, Config{})

	got, err := Sigmoid(c.FromSlice(4, 1, []float64{1, -2, 3, 4})).Compute(context.Background())
	require.NoError(t, err)

	rows, cols := got.Dims()
	require.Equal(t, 4, rows)
	require.Equal(t, 1, cols)
	for i := range rows {
		v := got.At(i, 0)
		require.Greater(t, v, 0.0, "zeile %d", i)
		require.Less(t, v, 1.0, "zeile %d", i)
	}
	// sigmoid ist monoton: Reihenfolge der Eingaben bleibt erhalten
	require.Less(t, got.At(1, 0), got.At(0, 0))
	require.Less(t, got.At(0, 0), got.At(2, 0))
	require.Less(t, got.At(2, 0), got.At(3, 0))
}
