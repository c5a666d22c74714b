package tabular

import (
	"math"
	"strconv"
	"strings"

	apperrors "neuropipe/internal/errors"
)

// CoerceMode selects how non-numeric cells are treated.
type CoerceMode int

const (
	// Permissive turns anything unparsable into NaN.
	Permissive CoerceMode = iota
	// Strict rejects blanks, text and NaN.
	Strict
)

func (m CoerceMode) String() string {
	if m == Strict {
		return "strict"
	}
	return "permissive"
}

// ParseNumber parses s as a float after trimming whitespace. Thousands
// separators are not accepted.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Coerce converts one cell.
func Coerce(c Cell, mode CoerceMode) (float64, bool) {
	var (
		v  float64
		ok bool
	)
	switch c.Kind {
	case Number:
		v, ok = c.Num, true
	case Text:
		v, ok = ParseNumber(c.Raw)
	}
	if ok && mode == Strict && math.IsNaN(v) {
		ok = false
	}
	if !ok {
		return math.NaN(), false
	}
	return v, true
}

// CoerceAll converts cells in order. Permissive mode never fails and returns
// how many cells became NaN. Strict mode fails on the first bad cell, naming
// its position.
func CoerceAll(cells []Cell, mode CoerceMode) ([]float64, int, error) {
	out := make([]float64, len(cells))
	nan := 0
	for i, c := range cells {
		v, ok := Coerce(c, mode)
		if !ok && mode == Strict {
			return nil, 0, apperrors.NewValidationError("non-numeric value %q at row %d", c.String(), i)
		}
		if math.IsNaN(v) {
			nan++
		}
		out[i] = v
	}
	return out, nan, nil
}

// CoerceStrings is CoerceAll over raw text values.
func CoerceStrings(values []string, mode CoerceMode) ([]float64, int, error) {
	cells := make([]Cell, len(values))
	for i, s := range values {
		cells[i] = TextCell(s)
	}
	return CoerceAll(cells, mode)
}
