// source.go - Datenquellen eines Contexts
//
// Lokale Daten werden als Inline-Upload an den Knoten gehaengt und erst
// mit der naechsten Submission uebertragen. Gleiche Daten teilen sich
// einen Knoten (BLAKE3-Digest des kodierten Frames).
package sds

import (
	"encoding/hex"
	"fmt"
	"image"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"
	"lukechampine.com/blake3"

	"github.com/sysds/sysds/graph"
	"github.com/sysds/sysds/ml"
)

// FromSlice uploads a rows x cols matrix given in row-major order.
func (c *Context) FromSlice(rows, cols int, data []float64) Matrix {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return Matrix{handle{ctx: c, err: fmt.Errorf("from slice: %d values for a %dx%d matrix", len(data), rows, cols)}}
	}
	return Matrix{c.upload(ml.NewMatrix(rows, cols, append([]float64(nil), data...)), graph.TypeMatrix)}
}

// FromDense uploads a gonum matrix.
func (c *Context) FromDense(d mat.Matrix) Matrix {
	return Matrix{c.upload(ml.FromDense(mat.DenseCopyOf(d)), graph.TypeMatrix)}
}

// FromMatrix uploads a local matrix, for example the result of an earlier
// Compute.
func (c *Context) FromMatrix(m *ml.Matrix) Matrix {
	return Matrix{c.upload(m, graph.TypeMatrix)}
}

// FromFrame uploads a local frame.
func (c *Context) FromFrame(f *ml.Frame) Frame {
	return Frame{c.upload(f, graph.TypeFrame)}
}

func (c *Context) upload(v ml.Value, t graph.ValueType) handle {
	h := handle{ctx: c}

	frame, err := ml.Encode(v, ml.EncodeOptions{ForceDense: c.cfg.ForceDense, Compression: c.cfg.Compression})
	if err != nil {
		return h.withErr(fmt.Errorf("upload: %w", err))
	}
	b, err := msgpack.Marshal(&frame)
	if err != nil {
		return h.withErr(fmt.Errorf("upload: %w", err))
	}
	sum := blake3.Sum256(b)
	digest := hex.EncodeToString(sum[:])

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return h.withErr(err)
	}
	if n, ok := c.uploads[digest]; ok {
		h.node = n
		return h
	}

	n, err := c.graph.NewNode(graph.NodeSpec{
		Op:     graph.OpRead,
		Output: t,
		Source: &graph.Source{Frame: frame, Digest: digest},
	})
	if err != nil {
		return h.withErr(err)
	}
	c.uploads[digest] = n
	h.node = n
	return h
}

// Scalar binds a literal: float64, int, int64, bool or string.
func (c *Context) Scalar(v any) Scalar {
	return Scalar{c.node(graph.OpLiteral, graph.TypeScalar, nil, v)}
}

// Full returns a rows x cols matrix with every cell set to v.
func (c *Context) Full(v float64, rows, cols int) Matrix {
	return Matrix{c.node("matrix", graph.TypeMatrix, nil, v, P("rows", rows), P("cols", cols))}
}

// RandOptions configures Rand. The zero value draws uniform values in
// [0, 1) with a time-based seed.
type RandOptions struct {
	Min, Max float64
	// Sparsity is the fraction of non-zero cells, 1 if zero.
	Sparsity float64
	// Seed makes the matrix reproducible when it is non-negative.
	Seed *int64
}

// Rand returns a random matrix generated by the engine.
func (c *Context) Rand(rows, cols int, opts RandOptions) Matrix {
	if opts.Min == 0 && opts.Max == 0 {
		opts.Max = 1
	}
	if opts.Sparsity == 0 {
		opts.Sparsity = 1
	}
	args := []any{P("rows", rows), P("cols", cols), P("min", opts.Min), P("max", opts.Max), P("sparsity", opts.Sparsity)}
	if opts.Seed != nil {
		args = append(args, P("seed", *opts.Seed))
	}
	return Matrix{c.node("rand", graph.TypeMatrix, nil, args...)}
}

// Seq returns the column vector from, from+incr, ..., to.
func (c *Context) Seq(from, to, incr float64) Matrix {
	return Matrix{c.node("seq", graph.TypeMatrix, nil, from, to, incr)}
}

// Read reads a CSV file on the engine side. Extra params are passed as
// named arguments, e.g. P("format", "csv").
func (c *Context) Read(path string, params ...Param) Matrix {
	return Matrix{c.node(graph.OpRead, graph.TypeMatrix, nil, readArgs(path, params)...)}
}

// ReadFrame reads a CSV file with a header row as a frame.
func (c *Context) ReadFrame(path string, params ...Param) Frame {
	params = append([]Param{P("header", true)}, params...)
	return Frame{c.node(graph.OpRead, graph.TypeFrame, nil, readArgs(path, params)...)}
}

func readArgs(path string, params []Param) []any {
	args := []any{path}
	for _, p := range params {
		args = append(args, p)
	}
	return args
}

// FromImages scales every image to width x height grayscale and uploads
// them as one matrix with one linearized image per row, pixel values in
// [0, 255].
func (c *Context) FromImages(imgs []image.Image, width, height int) Matrix {
	if width <= 0 || height <= 0 {
		return Matrix{handle{ctx: c, err: fmt.Errorf("from images: invalid size %dx%d", width, height)}}
	}

	data := make([]float64, 0, len(imgs)*width*height)
	dst := image.NewGray(image.Rect(0, 0, width, height))
	for i, img := range imgs {
		if img == nil {
			return Matrix{handle{ctx: c, err: fmt.Errorf("from images: image %d is nil", i)}}
		}
		draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		for y := 0; y < height; y++ {
			for _, p := range dst.Pix[y*dst.Stride : y*dst.Stride+width] {
				data = append(data, float64(p))
			}
		}
	}
	return c.FromSlice(len(imgs), width*height, data)
}
