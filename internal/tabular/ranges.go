package tabular

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "neuropipe/internal/errors"
)

// ColumnLettersToIndex converts a bijective base-26 column name to a
// zero-based index: "A" is 0, "Z" is 25, "AA" is 26. Case-insensitive.
func ColumnLettersToIndex(s string) (int, error) {
	if s == "" {
		return 0, apperrors.NewValidationError("empty column reference")
	}
	for _, ch := range s {
		if !isASCIILetter(ch) {
			return 0, apperrors.NewValidationError("invalid column reference %q: letters only", s)
		}
	}
	n, err := excelize.ColumnNameToNumber(s)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid column reference %q: %v", s, err)
	}
	return n - 1, nil
}

// IndexToColumnLetters is the inverse of ColumnLettersToIndex.
func IndexToColumnLetters(idx int) (string, error) {
	name, err := excelize.ColumnNumberToName(idx + 1)
	if err != nil {
		return "", apperrors.NewValidationError("column index %d out of range: %v", idx, err)
	}
	return name, nil
}

// CellRef is a parsed reference such as "AJW1217", zero-based.
type CellRef struct {
	Row int
	Col int
}

// ParseCellRef splits a reference into its leading letter run and trailing
// digit run.
func ParseCellRef(ref string) (CellRef, error) {
	i := 0
	for i < len(ref) && isASCIILetter(rune(ref[i])) {
		i++
	}
	letters, digits := ref[:i], ref[i:]
	if letters == "" || digits == "" {
		return CellRef{}, apperrors.NewValidationError("invalid cell reference %q: expected letters followed by a row number", ref)
	}
	for _, ch := range digits {
		if ch < '0' || ch > '9' {
			return CellRef{}, apperrors.NewValidationError("invalid cell reference %q: expected letters followed by a row number", ref)
		}
	}

	col, err := ColumnLettersToIndex(letters)
	if err != nil {
		return CellRef{}, err
	}
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 {
		return CellRef{}, apperrors.NewValidationError("invalid row number in cell reference %q", ref)
	}
	return CellRef{Row: row - 1, Col: col}, nil
}

// ParseRange converts "B3:AJW1217" into a half-open Rect. Both corners are
// inclusive in the input.
func ParseRange(s string) (Rect, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Rect{}, apperrors.NewValidationError("invalid range format %q: expected two cell references separated by ':'", s)
	}

	start, err := ParseCellRef(strings.TrimSpace(parts[0]))
	if err != nil {
		return Rect{}, fmt.Errorf("range %q start: %w", s, err)
	}
	end, err := ParseCellRef(strings.TrimSpace(parts[1]))
	if err != nil {
		return Rect{}, fmt.Errorf("range %q end: %w", s, err)
	}
	if end.Row < start.Row || end.Col < start.Col {
		return Rect{}, apperrors.NewValidationError("invalid range %q: end cell precedes start cell", s)
	}

	return Rect{
		StartRow: start.Row,
		EndRow:   end.Row + 1,
		StartCol: start.Col,
		EndCol:   end.Col + 1,
	}, nil
}

// FormatRange renders a non-empty Rect back to "B3:AJW1217" form.
func FormatRange(r Rect) string {
	first, err1 := IndexToColumnLetters(r.StartCol)
	last, err2 := IndexToColumnLetters(r.EndCol - 1)
	if err1 != nil || err2 != nil || r.StartRow < 0 || r.EndRow < 1 {
		return fmt.Sprintf("R%dC%d:R%dC%d", r.StartRow+1, r.StartCol+1, r.EndRow, r.EndCol)
	}
	return fmt.Sprintf("%s%d:%s%d", first, r.StartRow+1, last, r.EndRow)
}

func isASCIILetter(ch rune) bool {
	return (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z')
}
