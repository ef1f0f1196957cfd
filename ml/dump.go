// dump.go - Dump-Funktionen fuer Matrix-Debugging und Visualisierung
// Dieses Modul stellt Hilfsfunktionen zum Ausgeben von Matrix-Inhalten bereit.
package ml

import (
	"math"
	"strconv"
	"strings"
)

// DumpOptions configures matrix dump output format.
type DumpOptions func(*dumpOptions)

// DumpWithPrecision sets the number of decimal places to print.
func DumpWithPrecision(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.Precision = n
	}
}

// DumpWithThreshold sets the threshold for printing the entire matrix. If the number of cells
// is less than or equal to this value, the entire matrix will be printed. Otherwise, only the
// beginning and end of each dimension will be printed.
func DumpWithThreshold(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.Threshold = n
	}
}

// DumpWithEdgeItems sets the number of elements to print at the beginning and end of each dimension.
func DumpWithEdgeItems(n int) DumpOptions {
	return func(opts *dumpOptions) {
		opts.EdgeItems = n
	}
}

type dumpOptions struct {
	Precision, Threshold, EdgeItems int
}

// Dump converts a matrix to a human-readable string representation.
func Dump(m *Matrix, optsFuncs ...DumpOptions) string {
	opts := dumpOptions{Precision: 4, Threshold: 1000, EdgeItems: 3}
	for _, optsFunc := range optsFuncs {
		optsFunc(&opts)
	}

	if m.rows*m.cols <= opts.Threshold {
		opts.EdgeItems = math.MaxInt
	}
	if m.dense == nil {
		return "[]"
	}

	format := func(f float64) string {
		return strconv.FormatFloat(f, 'f', opts.Precision, 64)
	}

	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < m.rows; i++ {
		if i >= opts.EdgeItems && i < m.rows-opts.EdgeItems {
			sb.WriteString("...,\n ")
			// skip to next printable row
			i = m.rows - opts.EdgeItems - 1
			continue
		}

		sb.WriteString("[")
		for j := 0; j < m.cols; j++ {
			if j >= opts.EdgeItems && j < m.cols-opts.EdgeItems {
				sb.WriteString("..., ")
				j = m.cols - opts.EdgeItems - 1
				continue
			}
			text := format(m.dense.At(i, j))
			if len(text) > 0 && text[0] != '-' {
				sb.WriteString(" ")
			}
			sb.WriteString(text)
			if j < m.cols-1 {
				sb.WriteString(", ")
			}
		}
		sb.WriteString("]")
		if i < m.rows-1 {
			sb.WriteString(",\n ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
