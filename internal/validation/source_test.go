package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/shared/testutil"
)

func TestSourceValidator_Validate(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewSourceValidator(logger)
	dir := t.TempDir()

	csvPath := testutil.WriteCSV(t, dir, "rec.csv", testutil.NeuronRecords(3, 2), ',')
	tsvAsTxt := testutil.WriteCSV(t, dir, "rec.txt", testutil.NeuronRecords(3, 2), '\t')
	workbook := testutil.WriteWorkbook(t, dir, "rec.xlsx", "Raw", testutil.NeuronRecords(3, 2))

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}
	empty := write("empty.csv", "")
	corrupt := write("broken.xlsx", "not a zip archive")
	parquet := write("scan.parquet", "PAR1")
	lockFile := write("~$rec.xlsx", "lock")

	tests := []struct {
		name       string
		path       string
		format     string
		wantFormat string
		errType    apperrors.ErrorType
	}{
		{name: "csv from extension", path: csvPath, wantFormat: "csv"},
		{name: "explicit format wins", path: tsvAsTxt, format: ".TSV", wantFormat: "tsv"},
		{name: "workbook", path: workbook, wantFormat: "xlsx"},
		{name: "missing", path: filepath.Join(dir, "ghost.csv"), errType: apperrors.ErrTypeNotFound},
		{name: "directory", path: dir, errType: apperrors.ErrTypeValidation},
		{name: "empty", path: empty, errType: apperrors.ErrTypeValidation},
		{name: "unsupported", path: parquet, errType: apperrors.ErrTypeValidation},
		{name: "corrupt workbook", path: corrupt, errType: apperrors.ErrTypeParsing},
		{name: "excel lock file", path: lockFile, errType: apperrors.ErrTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := v.Validate(tt.path, tt.format)
			if tt.errType != "" {
				require.Error(t, err)
				assert.True(t, apperrors.Is(err, tt.errType), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, src.Format)
			assert.True(t, filepath.IsAbs(src.Path))
			assert.Positive(t, src.Size)
		})
	}
}
