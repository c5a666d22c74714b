package tabular

import "strings"

// IsNumericLike reports whether c counts as numeric for auto-detection.
// Besides real numbers this accepts text that is all digits once '.' and '-'
// are removed, e.g. "2024-01-05".
func IsNumericLike(c Cell) bool {
	switch c.Kind {
	case Number:
		return true
	case Text:
		s := strings.TrimSpace(c.Raw)
		s = strings.NewReplacer(".", "", "-", "").Replace(s)
		if s == "" {
			return false
		}
		for _, ch := range s {
			if ch < '0' || ch > '9' {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// AutoDetectMatrix returns the largest all-numeric rectangle in t. From every
// numeric cell it takes the widest run to the right, then extends downward
// while that whole width stays numeric. Larger area wins; on ties the first
// candidate in row-major order is kept. A table without numeric cells yields
// its full bounds.
func AutoDetectMatrix(t *Table) Rect {
	rows, cols := t.Dims()
	if rows == 0 || cols == 0 {
		return t.Bounds()
	}

	mask := make([][]bool, rows)
	for i := range mask {
		mask[i] = make([]bool, cols)
		for j := range mask[i] {
			mask[i][j] = IsNumericLike(t.At(i, j))
		}
	}

	best, bestArea := t.Bounds(), 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if !mask[i][j] {
				continue
			}

			width := 0
			for j+width < cols && mask[i][j+width] {
				width++
			}

			height := 1
			for i+height < rows && rowNumeric(mask[i+height], j, j+width) {
				height++
			}

			if area := width * height; area > bestArea {
				bestArea = area
				best = Rect{StartRow: i, EndRow: i + height, StartCol: j, EndCol: j + width}
			}
		}
	}
	return best
}

func rowNumeric(row []bool, from, to int) bool {
	for k := from; k < to; k++ {
		if !row[k] {
			return false
		}
	}
	return true
}
