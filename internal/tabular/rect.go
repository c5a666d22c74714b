package tabular

import "fmt"

// Rect is a zero-based, half-open region of a table.
type Rect struct {
	StartRow int `json:"start_row"`
	EndRow   int `json:"end_row"`
	StartCol int `json:"start_col"`
	EndCol   int `json:"end_col"`
}

// Rows returns the number of rows covered
func (r Rect) Rows() int { return r.EndRow - r.StartRow }

// Cols returns the number of columns covered
func (r Rect) Cols() int { return r.EndCol - r.StartCol }

// Area returns Rows()*Cols()
func (r Rect) Area() int { return r.Rows() * r.Cols() }

// Empty reports whether the rectangle covers no cells
func (r Rect) Empty() bool { return r.Area() == 0 }

// FitsIn reports whether r lies inside a rows×cols table
func (r Rect) FitsIn(rows, cols int) bool {
	return r.StartRow >= 0 && r.StartCol >= 0 && r.EndRow <= rows && r.EndCol <= cols
}

// String renders r in spreadsheet notation when it is non-empty.
func (r Rect) String() string {
	if r.Empty() {
		return fmt.Sprintf("[%d:%d, %d:%d]", r.StartRow, r.EndRow, r.StartCol, r.EndCol)
	}
	return FormatRange(r)
}
