package artifacts

import (
	"math"
	"strconv"
)

// formatValue renders a matrix value for CSV output. NaN becomes an empty
// field so spreadsheet tools read it as missing.
func formatValue(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}
