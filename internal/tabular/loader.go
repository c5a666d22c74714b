package tabular

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "neuropipe/internal/errors"
)

// Supported raw file formats
const (
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatTXT  = "txt"
	FormatXLSX = "xlsx"
	FormatXLSM = "xlsm"
	FormatJSON = "json"
)

// sniffCandidates are tried in order; earlier wins on equal score.
var sniffCandidates = []rune{',', '\t', ';', '|'}

const sniffLines = 20

// LoadOptions tunes Load.
type LoadOptions struct {
	// Format overrides detection from the file extension.
	Format string
	// Sheet selects a workbook sheet; the first sheet when empty.
	Sheet string
	// Delimiter overrides sniffing for delimited text.
	Delimiter rune
}

// Loader reads raw tables from disk.
type Loader struct{}

// NewLoader creates a Loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads path into a headerless table. Every row of the file, including
// what a spreadsheet user would call a header, becomes a table row.
func (l *Loader) Load(ctx context.Context, path string, opts LoadOptions) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("source file %s", path))
		}
		return nil, apperrors.NewStorageError(fmt.Sprintf("cannot access %s", path), err)
	}

	format := NormalizeFormat(opts.Format)
	if format == "" {
		format = NormalizeFormat(filepath.Ext(path))
	}

	switch format {
	case FormatCSV, FormatTSV, FormatTXT:
		return l.loadDelimited(ctx, path, format, opts.Delimiter)
	case FormatXLSX, FormatXLSM:
		return l.loadWorkbook(ctx, path, opts.Sheet)
	case FormatJSON:
		return l.loadJSON(path)
	default:
		return nil, apperrors.NewValidationError("unsupported file format %q for %s", format, filepath.Base(path))
	}
}

// NormalizeFormat lower-cases a format name or extension and drops the dot.
func NormalizeFormat(f string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
}

// IsSupportedFormat reports whether Load can read format.
func IsSupportedFormat(format string) bool {
	switch NormalizeFormat(format) {
	case FormatCSV, FormatTSV, FormatTXT, FormatXLSX, FormatXLSM, FormatJSON:
		return true
	}
	return false
}

func (l *Loader) loadDelimited(ctx context.Context, path, format string, delim rune) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	if delim == 0 {
		if format == FormatTSV {
			delim = '\t'
		} else {
			delim = SniffDelimiter(data)
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse %s", filepath.Base(path)), err)
		}
		records = append(records, rec)
		if len(records)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	return NewTextTable(records), nil
}

// SniffDelimiter picks the candidate that splits the first lines into the
// same, largest number of fields. Comma is the fallback.
func SniffDelimiter(data []byte) rune {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() && len(lines) < sniffLines {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ','
	}

	best, bestScore := ',', 0
	for _, cand := range sniffCandidates {
		first := strings.Count(lines[0], string(cand))
		if first == 0 {
			continue
		}
		consistent := 0
		for _, line := range lines {
			if strings.Count(line, string(cand)) == first {
				consistent++
			}
		}
		// consistency dominates, field count breaks ties
		score := consistent*1000 + first
		if score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}

func (l *Loader) loadWorkbook(ctx context.Context, path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to open workbook %s", filepath.Base(path)), err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewValidationError("workbook %s has no sheets", filepath.Base(path))
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("sheet %q in %s", sheet, filepath.Base(path)))
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read row %d of sheet %q", len(records)+1, sheet), err)
		}
		records = append(records, cols)
		if len(records)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	if err := rows.Error(); err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}
	return NewTextTable(records), nil
}

// loadJSON accepts an array of arrays of scalars.
func (l *Loader) loadJSON(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}

	var raw [][]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("%s is not an array of arrays", filepath.Base(path)), err)
	}

	rows := make([][]Cell, len(raw))
	for i, rec := range raw {
		row := make([]Cell, len(rec))
		for j, v := range rec {
			switch val := v.(type) {
			case nil:
				row[j] = Cell{}
			case json.Number:
				row[j] = TextCell(val.String())
			case string:
				row[j] = TextCell(val)
			default:
				row[j] = Cell{Kind: Text, Raw: fmt.Sprint(val)}
			}
		}
		rows[i] = row
	}
	return NewTable(rows), nil
}
