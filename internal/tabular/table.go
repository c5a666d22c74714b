package tabular

import (
	"math"
	"strconv"
	"strings"
)

// CellKind tells what a raw cell holds.
type CellKind uint8

const (
	Blank CellKind = iota
	Number
	Text
)

// Cell is one raw table value. Raw keeps the source text so labels can be
// reproduced exactly as written.
type Cell struct {
	Kind CellKind
	Num  float64
	Raw  string
}

// TextCell classifies s: empty is Blank, anything ParseNumber accepts is a
// Number, the rest is Text.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{Kind: Blank, Raw: s}
	}
	if v, ok := ParseNumber(s); ok {
		return Cell{Kind: Number, Num: v, Raw: s}
	}
	return Cell{Kind: Text, Raw: s}
}

// NumberCell wraps a numeric value
func NumberCell(v float64) Cell {
	return Cell{Kind: Number, Num: v}
}

// String returns the label form of the cell.
func (c Cell) String() string {
	switch c.Kind {
	case Blank:
		return ""
	case Number:
		if c.Raw != "" {
			return strings.TrimSpace(c.Raw)
		}
		return FormatNumber(c.Num)
	default:
		return c.Raw
	}
}

// FormatNumber writes v without trailing zeros, using exponent form only for
// very large or very small magnitudes.
func FormatNumber(v float64) string {
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Table is a rectangular, headerless grid of cells.
type Table struct {
	cells [][]Cell
	cols  int
}

// NewTable builds a table from ragged rows, padding short rows with blanks.
func NewTable(rows [][]Cell) *Table {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	cells := make([][]Cell, len(rows))
	for i, row := range rows {
		if len(row) == width {
			cells[i] = row
			continue
		}
		padded := make([]Cell, width)
		copy(padded, row)
		cells[i] = padded
	}
	return &Table{cells: cells, cols: width}
}

// NewTextTable builds a table from string records.
func NewTextTable(records [][]string) *Table {
	rows := make([][]Cell, len(records))
	for i, rec := range records {
		row := make([]Cell, len(rec))
		for j, s := range rec {
			row[j] = TextCell(s)
		}
		rows[i] = row
	}
	return NewTable(rows)
}

// Dims returns the table shape
func (t *Table) Dims() (rows, cols int) {
	return len(t.cells), t.cols
}

// At returns the cell at (r, c). Out-of-range positions read as Blank.
func (t *Table) At(r, c int) Cell {
	if r < 0 || r >= len(t.cells) || c < 0 || c >= t.cols {
		return Cell{}
	}
	return t.cells[r][c]
}

// Bounds returns the rectangle covering the whole table
func (t *Table) Bounds() Rect {
	return Rect{EndRow: len(t.cells), EndCol: t.cols}
}

// Region returns the cells of r in row-major order. r must fit the table.
func (t *Table) Region(r Rect) [][]Cell {
	out := make([][]Cell, 0, r.Rows())
	for i := r.StartRow; i < r.EndRow; i++ {
		out = append(out, t.cells[i][r.StartCol:r.EndCol])
	}
	return out
}
