package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/xuri/excelize/v2"
)

// NeuronRecords builds a raw recording laid out like the lab exports: row 1
// holds neuron ids from column B, row 2 a units line, and every following
// row a frame label in column A and one value per neuron. Value (i, j) is
// i*cols + j, so a matrix cut from B3 is easy to check.
func NeuronRecords(rows, cols int) [][]string {
	records := make([][]string, 0, rows+2)

	header := []string{""}
	units := []string{"frame"}
	for j := 0; j < cols; j++ {
		header = append(header, fmt.Sprintf("N%03d", j))
		units = append(units, "dF/F")
	}
	records = append(records, header, units)

	for i := 0; i < rows; i++ {
		rec := []string{fmt.Sprintf("F%04d", i)}
		for j := 0; j < cols; j++ {
			rec = append(rec, strconv.Itoa(i*cols+j))
		}
		records = append(records, rec)
	}
	return records
}

// WriteCSV writes records with the given delimiter and returns the path.
func WriteCSV(t *testing.T, dir, name string, records [][]string, delim rune) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = delim
	if err := w.WriteAll(records); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteWorkbook writes records to the named sheet of a new workbook. Cells
// that parse as numbers are stored as numbers.
func WriteWorkbook(t *testing.T, dir, name, sheet string, records [][]string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "" && sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		if err := f.DeleteSheet("Sheet1"); err != nil {
			t.Fatalf("delete default sheet: %v", err)
		}
	} else {
		sheet = "Sheet1"
	}

	for i, rec := range records {
		for j, s := range rec {
			if s == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			var value interface{} = s
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				value = v
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				t.Fatalf("set %s: %v", cell, err)
			}
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
	return path
}
