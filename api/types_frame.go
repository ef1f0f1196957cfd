// types_frame.go - Wire-Typen fuer Programme und Ergebnis-Frames
// Enthaelt: ExecuteRequest, StatementInfo, Frame, Column, Kind, Layout, Encoding
package api

import "fmt"

// Kind discriminates the payload carried by a Frame.
type Kind string

const (
	KindMatrix Kind = "matrix"
	KindFrame  Kind = "frame"
	KindScalar Kind = "scalar"
	KindList   Kind = "list"
)

// Layout is the storage layout of a matrix payload.
type Layout string

const (
	LayoutDense Layout = "dense"
	// LayoutSparse is compressed sparse column: ColPtr has Cols+1 entries,
	// RowIdx and Data hold NNZ entries.
	LayoutSparse Layout = "sparse"
)

// Encoding is the element encoding of a payload. Numeric encodings are
// little endian.
type Encoding string

const (
	EncodingF64  Encoding = "f64"
	EncodingF32  Encoding = "f32"
	EncodingF16  Encoding = "f16"
	EncodingBF16 Encoding = "bf16"
	EncodingI64  Encoding = "i64"
	EncodingBool Encoding = "bool"
	EncodingStr  Encoding = "str"
)

// Size returns the number of bytes per element, or 0 for variable size
// encodings.
func (e Encoding) Size() int {
	switch e {
	case EncodingF64, EncodingI64:
		return 8
	case EncodingF32:
		return 4
	case EncodingF16, EncodingBF16:
		return 2
	case EncodingBool:
		return 1
	default:
		return 0
	}
}

const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Frame is one framed payload in a result stream or an inline program
// input.
type Frame struct {
	Name        string   `json:"name" msgpack:"name"`
	Kind        Kind     `json:"kind" msgpack:"kind"`
	Layout      Layout   `json:"layout,omitempty" msgpack:"layout,omitempty"`
	Encoding    Encoding `json:"encoding,omitempty" msgpack:"encoding,omitempty"`
	Compression string   `json:"compression,omitempty" msgpack:"compression,omitempty"`

	Rows int `json:"rows,omitempty" msgpack:"rows,omitempty"`
	Cols int `json:"cols,omitempty" msgpack:"cols,omitempty"`
	NNZ  int `json:"nnz,omitempty" msgpack:"nnz,omitempty"`

	Data   []byte  `json:"data,omitempty" msgpack:"data,omitempty"`
	ColPtr []int32 `json:"colptr,omitempty" msgpack:"colptr,omitempty"`
	RowIdx []int32 `json:"rowidx,omitempty" msgpack:"rowidx,omitempty"`

	// Text carries string scalars.
	Text string `json:"text,omitempty" msgpack:"text,omitempty"`

	Columns []Column `json:"columns,omitempty" msgpack:"columns,omitempty"`
	Items   []Frame  `json:"items,omitempty" msgpack:"items,omitempty"`
}

func (f Frame) String() string {
	switch f.Kind {
	case KindMatrix:
		return fmt.Sprintf("%s[%s %s %dx%d]", f.Name, f.Kind, f.Layout, f.Rows, f.Cols)
	case KindFrame:
		return fmt.Sprintf("%s[%s %dx%d]", f.Name, f.Kind, f.Rows, len(f.Columns))
	case KindList:
		return fmt.Sprintf("%s[%s %d]", f.Name, f.Kind, len(f.Items))
	default:
		return fmt.Sprintf("%s[%s %s]", f.Name, f.Kind, f.Encoding)
	}
}

// Column is one typed column of a tabular frame payload.
type Column struct {
	Name     string   `json:"name" msgpack:"name"`
	Encoding Encoding `json:"encoding" msgpack:"encoding"`
	Data     []byte   `json:"data,omitempty" msgpack:"data,omitempty"`
	Strings  []string `json:"strings,omitempty" msgpack:"strings,omitempty"`
}

// StatementInfo maps a statement of the script back to the graph node that
// produced it.
type StatementInfo struct {
	NodeID uint64 `json:"node"`
	Op     string `json:"op"`
}

// ExecuteRequest is posted to the engine's /execute endpoint.
type ExecuteRequest struct {
	// Script is the program text, one statement per line.
	Script string `json:"script"`
	// Inputs are inline data bindings referenced as $name in the script.
	Inputs []Frame `json:"inputs,omitempty"`
	// Outputs are the variables to return, in order.
	Outputs []string `json:"outputs"`
	// Statements has one entry per script statement.
	Statements []StatementInfo `json:"statements,omitempty"`
	// Compression requested for result payloads.
	Compression string `json:"compression,omitempty"`
	// ForceDense disables sparse result layouts.
	ForceDense bool `json:"force_dense,omitempty"`
	// Isolated runs the script in a scratch environment: it reads the
	// engine's variables but its own bindings are dropped afterwards.
	Isolated bool `json:"isolated,omitempty"`
}
