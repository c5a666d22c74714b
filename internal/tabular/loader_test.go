package tabular

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/shared/testutil"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		data string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3\n", ','},
		{"tab", "a\tb\tc\n1\t2\t3\n", '\t'},
		{"semicolon with decimal commas", "a;b\n1,5;2,5\n3,0;4,0\n", ';'},
		{"pipe", "a|b\n1|2\n", '|'},
		{"single column", "a\n1\n2\n", ','},
		{"empty", "", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SniffDelimiter([]byte(tt.data)))
		})
	}
}

func TestLoader_Delimited(t *testing.T) {
	dir := t.TempDir()
	records := testutil.NeuronRecords(3, 4)

	for _, tc := range []struct {
		name  string
		delim rune
	}{
		{"raw.csv", ','},
		{"raw.tsv", '\t'},
		{"raw.txt", ';'},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := testutil.WriteCSV(t, dir, tc.name, records, tc.delim)

			table, err := NewLoader().Load(context.Background(), path, LoadOptions{})
			require.NoError(t, err)

			rows, cols := table.Dims()
			assert.Equal(t, 5, rows)
			assert.Equal(t, 5, cols)
			assert.Equal(t, "N000", table.At(0, 1).String())
			assert.Equal(t, Number, table.At(2, 1).Kind)
			assert.Equal(t, 0.0, table.At(2, 1).Num)
			assert.Equal(t, 11.0, table.At(4, 4).Num)
		})
	}
}

func TestLoader_StripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.csv")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbf1,2\n3,4\n"), 0644))

	table, err := NewLoader().Load(context.Background(), path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, Number, table.At(0, 0).Kind)
}

func TestLoader_Workbook(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteWorkbook(t, dir, "raw.xlsx", "Recording", testutil.NeuronRecords(4, 3))

	table, err := NewLoader().Load(context.Background(), path, LoadOptions{})
	require.NoError(t, err)

	rows, cols := table.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 4, cols)
	assert.Equal(t, Blank, table.At(0, 0).Kind)
	assert.Equal(t, "N002", table.At(0, 3).String())
	assert.Equal(t, 11.0, table.At(5, 3).Num)

	_, err = NewLoader().Load(context.Background(), path, LoadOptions{Sheet: "Missing"})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeNotFound))
}

func TestLoader_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.json")
	require.NoError(t, os.WriteFile(path, []byte(`[["", "a", "b"], ["r0", 1, 2.5], ["r1", null, "3"]]`), 0644))

	table, err := NewLoader().Load(context.Background(), path, LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2.5, table.At(1, 2).Num)
	assert.Equal(t, Blank, table.At(2, 1).Kind)
	assert.Equal(t, 3.0, table.At(2, 2).Num)
}

func TestLoader_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewLoader().Load(context.Background(), filepath.Join(dir, "missing.csv"), LoadOptions{})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeNotFound))

	odd := filepath.Join(dir, "raw.parquet")
	require.NoError(t, os.WriteFile(odd, []byte("x"), 0644))
	_, err = NewLoader().Load(context.Background(), odd, LoadOptions{})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeValidation))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"a": 1}`), 0644))
	_, err = NewLoader().Load(context.Background(), bad, LoadOptions{})
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeParsing))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewLoader().Load(ctx, bad, LoadOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsSupportedFormat(t *testing.T) {
	for _, f := range []string{"csv", ".CSV", "tsv", "txt", "xlsx", ".xlsm", "json"} {
		assert.True(t, IsSupportedFormat(f), f)
	}
	for _, f := range []string{"", "xls", "parquet", ".npy"} {
		assert.False(t, IsSupportedFormat(f), f)
	}
}
