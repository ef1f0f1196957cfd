// cmd_display.go - Ausgabe von Ergebniswerten
// Hauptfunktionen: printValue, renderTable
package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/sysds/sysds/ml"
)

// isTerminal - Prueft ob w ein Terminal ist
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderTable - Schreibt eine Tabelle im Stil von "sysds env"
func renderTable(w io.Writer, header []string, data [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	table.AppendBulk(data)
	table.Render()
}

// printValue - Gibt einen berechneten Wert unter seinem Namen aus
// Auf einem Terminal werden grosse Matrizen gekuerzt, sonst vollstaendig.
func printValue(w io.Writer, name string, v ml.Value) {
	switch v := v.(type) {
	case nil:
	case *ml.Matrix:
		var opts []ml.DumpOptions
		if !isTerminal(w) {
			opts = append(opts, ml.DumpWithThreshold(math.MaxInt))
		}
		rows, cols := v.Dims()
		fmt.Fprintf(w, "%s (%dx%d) =\n%s\n", name, rows, cols, ml.Dump(v, opts...))
	case *ml.Frame:
		fmt.Fprintf(w, "%s (%dx%d) =\n", name, v.Rows(), v.Cols())
		renderTable(w, v.Names, frameCells(v))
	case ml.Scalar:
		fmt.Fprintf(w, "%s = %s\n", name, v)
	case ml.List:
		for i, item := range v {
			printValue(w, fmt.Sprintf("%s[%d]", name, i+1), item)
		}
	default:
		fmt.Fprintf(w, "%s = %v\n", name, v)
	}
}

func frameCells(f *ml.Frame) [][]string {
	data := make([][]string, f.Rows())
	for i := range data {
		data[i] = make([]string, f.Cols())
	}
	for j, col := range f.Columns {
		for i := range data {
			switch c := col.(type) {
			case []float64:
				data[i][j] = strconv.FormatFloat(c[i], 'g', -1, 64)
			case []int64:
				data[i][j] = strconv.FormatInt(c[i], 10)
			case []bool:
				data[i][j] = strconv.FormatBool(c[i])
			case []string:
				data[i][j] = c[i]
			}
		}
	}
	return data
}
