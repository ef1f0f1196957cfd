// builtins.go - Eingebaute Operatoren der Referenz-Engine
//
// Jeder Operator deklariert seine Parameternamen; positionale und benannte
// Argumente werden darauf abgebildet. Operatoren ohne Rueckgabewert (print,
// write) liefern eine leere Liste.
package runner

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"gonum.org/v1/gonum/mat"

	"github.com/sysds/sysds/ml"
)

type builtin struct {
	params   []string
	required int
	variadic bool
	fn       func(in *interp, args []ml.Value) ([]ml.Value, error)
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"sigmoid": cells(func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }),
		"sign": cells(func(x float64) float64 {
			switch {
			case x > 0:
				return 1
			case x < 0:
				return -1
			}
			return x
		}),
		"abs":   cells(math.Abs),
		"exp":   cells(math.Exp),
		"log":   cells(math.Log),
		"sqrt":  cells(math.Sqrt),
		"round": cells(math.Round),
		"floor": cells(math.Floor),
		"ceil":  cells(math.Ceil),

		"sum":  aggregate(func(xs []float64) float64 { return floatsSum(xs) }),
		"mean": aggregate(func(xs []float64) float64 { return floatsSum(xs) / float64(len(xs)) }),
		"min":  aggregate(func(xs []float64) float64 { return slices.Min(xs) }),
		"max":  aggregate(func(xs []float64) float64 { return slices.Max(xs) }),

		"nrow": {params: []string{"X"}, required: 1, fn: dim(0)},
		"ncol": {params: []string{"X"}, required: 1, fn: dim(1)},
		"t":    {params: []string{"X"}, required: 1, fn: transpose},

		"matrix": {params: []string{"data", "rows", "cols"}, required: 3, fn: matrixFn},
		"rand":   {params: []string{"rows", "cols", "min", "max", "sparsity", "seed"}, required: 2, fn: randFn},
		"seq":    {params: []string{"from", "to", "incr"}, required: 2, fn: seqFn},
		"svd":    {params: []string{"A"}, required: 1, fn: svdFn},
		"cbind":  {params: []string{"X", "Y"}, required: 2, fn: bind(false)},
		"rbind":  {params: []string{"X", "Y"}, required: 2, fn: bind(true)},

		"discoverFD":                {params: []string{"X", "Mask", "threshold"}, required: 1, fn: discoverFD},
		"img_brightness_linearized": {params: []string{"img_in", "value", "channel_max"}, required: 3, fn: imgBrightness},
		"img_posterize_linearized":  {params: []string{"img_in", "bits"}, required: 2, fn: imgPosterize},

		"as.frame":  {params: []string{"X"}, required: 1, fn: asFrame},
		"as.matrix": {params: []string{"X"}, required: 1, fn: asMatrixFn},
		"as.scalar": {params: []string{"X"}, required: 1, fn: asScalar},
		"list":      {variadic: true, fn: func(_ *interp, args []ml.Value) ([]ml.Value, error) { return []ml.Value{ml.List(args)}, nil }},

		"print": {params: []string{"x"}, required: 1, fn: printFn},
		"write": {params: []string{"x", "file", "format"}, required: 2, fn: writeFn},
		"read":  {params: []string{"src", "format", "header"}, required: 1, fn: readFn},
	}
}

// lookupBuiltin returns the builtin or an error suggesting the closest name.
func lookupBuiltin(name string) (builtin, error) {
	if b, ok := builtins[name]; ok {
		return b, nil
	}

	best, score := "", math.MaxInt
	for candidate := range builtins {
		if d := levenshtein.ComputeDistance(name, candidate); d < score || (d == score && candidate < best) {
			best, score = candidate, d
		}
	}
	if score <= max(2, len(name)/3) {
		return builtin{}, fmt.Errorf("unknown builtin function %q, did you mean %q?", name, best)
	}
	return builtin{}, fmt.Errorf("unknown builtin function %q", name)
}

// bindArgs maps positional and named arguments onto parameter slots.
func (b builtin) bindArgs(name string, positional []ml.Value, named map[string]ml.Value) ([]ml.Value, error) {
	if b.variadic {
		if len(named) > 0 {
			return nil, fmt.Errorf("%s does not take named arguments", name)
		}
		return positional, nil
	}

	if len(positional) > len(b.params) {
		return nil, fmt.Errorf("%s takes at most %d arguments, got %d", name, len(b.params), len(positional))
	}
	args := make([]ml.Value, len(b.params))
	copy(args, positional)
	for k, v := range named {
		i := slices.Index(b.params, k)
		if i < 0 {
			return nil, fmt.Errorf("%s has no parameter %q", name, k)
		}
		if args[i] != nil {
			return nil, fmt.Errorf("%s: parameter %q given twice", name, k)
		}
		args[i] = v
	}
	for i := 0; i < b.required; i++ {
		if args[i] == nil {
			return nil, fmt.Errorf("%s: missing required parameter %q", name, b.params[i])
		}
	}
	return args, nil
}

func one(v ml.Value) []ml.Value { return []ml.Value{v} }

func matrixArg(args []ml.Value, i int, name string) (*ml.Matrix, error) {
	m, err := asMatrix(args[i])
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", name, err)
	}
	return m, nil
}

func floatArg(args []ml.Value, i int, name string, def float64) (float64, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	s, ok := args[i].(ml.Scalar)
	if !ok {
		return 0, fmt.Errorf("parameter %s: expected a scalar, got %s", name, args[i].Kind())
	}
	f, ok := s.Float()
	if !ok {
		return 0, fmt.Errorf("parameter %s: expected a number, got %T", name, s.V)
	}
	return f, nil
}

func stringArg(args []ml.Value, i int, name, def string) (string, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	s, ok := args[i].(ml.Scalar)
	if !ok {
		return "", fmt.Errorf("parameter %s: expected a string, got %s", name, args[i].Kind())
	}
	str, ok := s.V.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s: expected a string, got %T", name, s.V)
	}
	return str, nil
}

func cells(f func(float64) float64) builtin {
	return builtin{params: []string{"X"}, required: 1, fn: func(_ *interp, args []ml.Value) ([]ml.Value, error) {
		switch x := args[0].(type) {
		case ml.Scalar:
			v, ok := x.Float()
			if !ok {
				return nil, fmt.Errorf("expected a number, got %T", x.V)
			}
			return one(ml.Scalar{V: f(v)}), nil
		case *ml.Matrix:
			return one(mapCells(x, f)), nil
		default:
			return nil, fmt.Errorf("expected a matrix, got %s", x.Kind())
		}
	}}
}

func floatsSum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func aggregate(f func([]float64) float64) builtin {
	return builtin{params: []string{"X"}, required: 1, fn: func(_ *interp, args []ml.Value) ([]ml.Value, error) {
		m, err := matrixArg(args, 0, "X")
		if err != nil {
			return nil, err
		}
		xs := m.RawData()
		if len(xs) == 0 {
			return nil, fmt.Errorf("aggregate of an empty matrix")
		}
		return one(ml.Scalar{V: f(xs)}), nil
	}}
}

func dim(axis int) func(*interp, []ml.Value) ([]ml.Value, error) {
	return func(_ *interp, args []ml.Value) ([]ml.Value, error) {
		var r, c int
		switch x := args[0].(type) {
		case *ml.Matrix:
			r, c = x.Dims()
		case *ml.Frame:
			r, c = x.Rows(), x.Cols()
		case ml.Scalar:
			r, c = 1, 1
		default:
			return nil, fmt.Errorf("expected a matrix or frame, got %s", x.Kind())
		}
		if axis == 0 {
			return one(ml.Scalar{V: int64(r)}), nil
		}
		return one(ml.Scalar{V: int64(c)}), nil
	}
}

func transpose(_ *interp, args []ml.Value) ([]ml.Value, error) {
	m, err := matrixArg(args, 0, "X")
	if err != nil {
		return nil, err
	}
	r, c := m.Dims()
	if m.Dense() == nil {
		return one(ml.NewMatrix(c, r, nil)), nil
	}
	return one(ml.FromDense(mat.DenseCopyOf(m.Dense().T()))), nil
}

func matrixFn(_ *interp, args []ml.Value) ([]ml.Value, error) {
	rows, err := floatArg(args, 1, "rows", 0)
	if err != nil {
		return nil, err
	}
	cols, err := floatArg(args, 2, "cols", 0)
	if err != nil {
		return nil, err
	}
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid dimensions %vx%v", rows, cols)
	}
	r, c := int(rows), int(cols)

	switch data := args[0].(type) {
	case ml.Scalar:
		v, ok := data.Float()
		if !ok {
			return nil, fmt.Errorf("parameter data: expected a number, got %T", data.V)
		}
		out := ml.NewMatrix(r, c, nil)
		if out.Dense() != nil && v != 0 {
			out.Dense().Apply(func(_, _ int, _ float64) float64 { return v }, out.Dense())
		}
		return one(out), nil
	case *ml.Matrix:
		values := data.RawData()
		if len(values) != r*c {
			return nil, fmt.Errorf("cannot reshape %d cells into %dx%d", len(values), r, c)
		}
		return one(ml.NewMatrix(r, c, values)), nil
	default:
		return nil, fmt.Errorf("parameter data: expected a matrix or scalar, got %s", data.Kind())
	}
}

func randFn(_ *interp, args []ml.Value) ([]ml.Value, error) {
	var p [6]float64
	defaults := [6]float64{0, 0, 0, 1, 1, -1}
	names := builtins["rand"].params
	for i := range p {
		var err error
		if p[i], err = floatArg(args, i, names[i], defaults[i]); err != nil {
			return nil, err
		}
	}
	rows, cols, lo, hi, sparsity, seed := int(p[0]), int(p[1]), p[2], p[3], p[4], p[5]
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", rows, cols)
	}
	if sparsity < 0 || sparsity > 1 {
		return nil, fmt.Errorf("sparsity %v out of range [0, 1]", sparsity)
	}

	s := uint64(seed)
	if seed < 0 {
		s = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))

	out := ml.NewMatrix(rows, cols, nil)
	if out.Dense() != nil {
		out.Dense().Apply(func(_, _ int, _ float64) float64 {
			if rng.Float64() >= sparsity {
				return 0
			}
			return lo + rng.Float64()*(hi-lo)
		}, out.Dense())
	}
	return one(out), nil
}

func seqFn(_ *interp, args []ml.Value) ([]ml.Value, error) {
	from, err := floatArg(args, 0, "from", 0)
	if err != nil {
		return nil, err
	}
	to, err := floatArg(args, 1, "to", 0)
	if err != nil {
		return nil, err
	}
	incr, err := floatArg(args, 2, "incr", 1)
	if err != nil {
		return nil, err
	}
	if args[2] == nil && to < from {
		incr = -1
	}
	if incr == 0 || (to-from)/incr < 0 {
		return nil, fmt.Errorf("wrong sign for increment %v in seq(%v, %v)", incr, from, to)
	}

	n := int(math.Floor((to-from)/incr+1e-9)) + 1
	values := make([]float64, n)
	for i := range values {
		values[i] = from + float64(i)*incr
	}
	return one(ml.NewMatrix(n, 1, values)), nil
}

func svdFn(_ *interp, args []ml.Value) ([]ml.Value, error) {
	a, err := matrixArg(args, 0, "A")
	if err != nil {
		return nil, err
	}
	if a.Dense() == nil {
		return nil, fmt.Errorf("svd of an empty matrix")
	}

	var svd mat.SVD
	if !svd.Factorize(a.Dense(), mat.SVDThin) {
		return nil, fmt.Errorf("svd did not converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	s := mat.NewDense(len(values), len(values), nil)
	for i, x := range values {
		s.Set(i, i, x)
	}
	return []ml.Value{ml.FromDense(&u), ml.FromDense(s), ml.FromDense(&v)}, nil
}

func bind(rows bool) func(*interp, []ml.Value) ([]ml.Value, error) {
	return func(_ *interp, args []ml.Value) ([]ml.Value, error) {
		a, err := matrixArg(args, 0, "X")
		if err != nil {
			return nil, err
		}
		b, err := matrixArg(args, 1, "Y")
		if err != nil {
			return nil, err
		}
		ar, ac := a.Dims()
		br, bc := b.Dims()
		if a.Dense() == nil {
			return one(b), nil
		}
		if b.Dense() == nil {
			return one(a), nil
		}

		var out mat.Dense
		if rows {
			if ac != bc {
				return nil, fmt.Errorf("rbind: %d and %d columns", ac, bc)
			}
			out.Stack(a.Dense(), b.Dense())
		} else {
			if ar != br {
				return nil, fmt.Errorf("cbind: %d and %d rows", ar, br)
			}
			out.Augment(a.Dense(), b.Dense())
		}
		return one(ml.FromDense(&out)), nil
	}
}

// discoverFD scores the functional dependency i -> j as the number of
// distinct values of column i over the number of distinct (i, j) pairs.
// Scores below threshold and unmasked columns are zero.
func discoverFD(_ *interp, args []ml.Value) ([]ml.Value, error) {
	x, err := matrixArg(args, 0, "X")
	if err != nil {
		return nil, err
	}
	threshold, err := floatArg(args, 2, "threshold", 0)
	if err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v out of range [0, 1]", threshold)
	}

	rows, cols := x.Dims()
	mask := make([]bool, cols)
	for j := range mask {
		mask[j] = true
	}
	if args[1] != nil {
		m, err := matrixArg(args, 1, "Mask")
		if err != nil {
			return nil, err
		}
		mr, mc := m.Dims()
		if mr*mc != cols {
			return nil, fmt.Errorf("mask has %d entries for %d columns", mr*mc, cols)
		}
		for j, v := range m.RawData() {
			mask[j] = v != 0
		}
	}

	distinct := make([]int, cols)
	for j := 0; j < cols; j++ {
		seen := make(map[float64]bool)
		for i := 0; i < rows; i++ {
			seen[x.At(i, j)] = true
		}
		distinct[j] = len(seen)
	}

	out := ml.NewMatrix(cols, cols, nil)
	for a := 0; a < cols; a++ {
		for b := 0; b < cols; b++ {
			if a == b || !mask[a] || !mask[b] {
				continue
			}
			pairs := make(map[[2]float64]bool)
			for i := 0; i < rows; i++ {
				pairs[[2]float64{x.At(i, a), x.At(i, b)}] = true
			}
			if score := float64(distinct[a]) / float64(len(pairs)); score >= threshold {
				out.Dense().Set(a, b, score)
			}
		}
	}
	return one(out), nil
}

func imgBrightness(_ *interp, args []ml.Value) ([]ml.Value, error) {
	img, err := matrixArg(args, 0, "img_in")
	if err != nil {
		return nil, err
	}
	value, err := floatArg(args, 1, "value", 0)
	if err != nil {
		return nil, err
	}
	channelMax, err := floatArg(args, 2, "channel_max", 255)
	if err != nil {
		return nil, err
	}
	return one(mapCells(img, func(x float64) float64 {
		return min(max(x+value, 0), channelMax)
	})), nil
}

func imgPosterize(_ *interp, args []ml.Value) ([]ml.Value, error) {
	img, err := matrixArg(args, 0, "img_in")
	if err != nil {
		return nil, err
	}
	bits, err := floatArg(args, 1, "bits", 8)
	if err != nil {
		return nil, err
	}
	if bits < 1 || bits > 8 {
		return nil, fmt.Errorf("bits %v out of range [1, 8]", bits)
	}
	step := math.Pow(2, 8-math.Floor(bits))
	return one(mapCells(img, func(x float64) float64 {
		return math.Floor(x/step) * step
	})), nil
}

func asFrame(_ *interp, args []ml.Value) ([]ml.Value, error) {
	if f, ok := args[0].(*ml.Frame); ok {
		return one(f), nil
	}
	m, err := matrixArg(args, 0, "X")
	if err != nil {
		return nil, err
	}
	rows, cols := m.Dims()
	f := &ml.Frame{}
	for j := 0; j < cols; j++ {
		col := make([]float64, rows)
		for i := range col {
			col[i] = m.At(i, j)
		}
		if err := f.AddColumn("C"+strconv.Itoa(j+1), col); err != nil {
			return nil, err
		}
	}
	return one(f), nil
}

func asMatrixFn(_ *interp, args []ml.Value) ([]ml.Value, error) {
	f, ok := args[0].(*ml.Frame)
	if !ok {
		m, err := matrixArg(args, 0, "X")
		if err != nil {
			return nil, err
		}
		return one(m), nil
	}

	out := ml.NewMatrix(f.Rows(), f.Cols(), nil)
	for j, col := range f.Columns {
		for i := 0; i < f.Rows(); i++ {
			var v float64
			switch c := col.(type) {
			case []float64:
				v = c[i]
			case []int64:
				v = float64(c[i])
			case []bool:
				v = b2f(c[i])
			case []string:
				var err error
				if v, err = strconv.ParseFloat(strings.TrimSpace(c[i]), 64); err != nil {
					return nil, fmt.Errorf("column %q row %d: %q is not numeric", f.Names[j], i+1, c[i])
				}
			}
			out.Dense().Set(i, j, v)
		}
	}
	return one(out), nil
}

func asScalar(_ *interp, args []ml.Value) ([]ml.Value, error) {
	switch x := args[0].(type) {
	case ml.Scalar:
		return one(x), nil
	case *ml.Matrix:
		if r, c := x.Dims(); r != 1 || c != 1 {
			return nil, fmt.Errorf("as.scalar needs a 1x1 matrix, got %dx%d", r, c)
		}
		return one(ml.Scalar{V: x.At(0, 0)}), nil
	default:
		return nil, fmt.Errorf("as.scalar needs a matrix, got %s", x.Kind())
	}
}

func printFn(in *interp, args []ml.Value) ([]ml.Value, error) {
	switch x := args[0].(type) {
	case *ml.Matrix:
		fmt.Fprintln(in.stdout, ml.Dump(x))
	case ml.Scalar:
		fmt.Fprintln(in.stdout, x.String())
	default:
		fmt.Fprintln(in.stdout, x)
	}
	return nil, nil
}

func (in *interp) path(file string) string {
	if filepath.IsAbs(file) || in.workdir == "" {
		return file
	}
	return filepath.Join(in.workdir, file)
}

func writeFn(in *interp, args []ml.Value) ([]ml.Value, error) {
	file, err := stringArg(args, 1, "file", "")
	if err != nil {
		return nil, err
	}
	format, err := stringArg(args, 2, "format", "csv")
	if err != nil {
		return nil, err
	}
	if format != "csv" {
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	f, err := os.Create(in.path(file))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	switch x := args[0].(type) {
	case *ml.Matrix:
		rows, cols := x.Dims()
		for i := 0; i < rows; i++ {
			record := make([]string, cols)
			for j := range record {
				record[j] = strconv.FormatFloat(x.At(i, j), 'g', -1, 64)
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	case *ml.Frame:
		if err := w.Write(x.Names); err != nil {
			return nil, err
		}
		for i := 0; i < x.Rows(); i++ {
			record := make([]string, x.Cols())
			for j, col := range x.Columns {
				switch c := col.(type) {
				case []float64:
					record[j] = strconv.FormatFloat(c[i], 'g', -1, 64)
				case []int64:
					record[j] = strconv.FormatInt(c[i], 10)
				case []bool:
					record[j] = strconv.FormatBool(c[i])
				case []string:
					record[j] = c[i]
				}
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	case ml.Scalar:
		if err := w.Write([]string{x.String()}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("cannot write %s", x.Kind())
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return nil, f.Close()
}

func readFn(in *interp, args []ml.Value) ([]ml.Value, error) {
	s, ok := args[0].(ml.Scalar)
	if !ok {
		// inline uploads are already decoded
		return one(args[0]), nil
	}
	file, ok := s.V.(string)
	if !ok {
		return nil, fmt.Errorf("read needs a file name, got %T", s.V)
	}
	format, err := stringArg(args, 1, "format", "csv")
	if err != nil {
		return nil, err
	}
	if format != "csv" {
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	header := false
	if len(args) > 2 && args[2] != nil {
		hs, ok := args[2].(ml.Scalar)
		if b, isBool := hs.V.(bool); ok && isBool {
			header = b
		} else {
			return nil, fmt.Errorf("parameter header: expected a boolean")
		}
	}

	f, err := os.Open(in.path(file))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	if header && len(records) > 0 {
		records = records[1:]
	}
	if len(records) == 0 {
		return one(ml.NewMatrix(0, 0, nil)), nil
	}

	rows, cols := len(records), len(records[0])
	values := make([]float64, 0, rows*cols)
	for i, record := range records {
		if len(record) != cols {
			return nil, fmt.Errorf("read %s: row %d has %d fields, want %d", file, i+1, len(record), cols)
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("read %s: row %d column %d: %q is not numeric", file, i+1, j+1, field)
			}
			values = append(values, v)
		}
	}
	return one(ml.NewMatrix(rows, cols, values)), nil
}
