package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "neuropipe/internal/errors"
)

func TestColumnLettersToIndex(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"A", 0},
		{"Z", 25},
		{"AA", 26},
		{"AZ", 51},
		{"BA", 52},
		{"az", 51},
		{"AJW", 958},
		{"XFD", 16383},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ColumnLettersToIndex(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumnLettersToIndex_Invalid(t *testing.T) {
	for _, in := range []string{"", "A1", "$A", "Ä"} {
		_, err := ColumnLettersToIndex(in)
		assert.Error(t, err, in)
		assert.True(t, apperrors.Is(err, apperrors.ErrTypeValidation), in)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in   string
		want Rect
	}{
		{"B3:AJW1217", Rect{StartRow: 2, EndRow: 1217, StartCol: 1, EndCol: 959}},
		{"B1:AJW1", Rect{StartRow: 0, EndRow: 1, StartCol: 1, EndCol: 959}},
		{"A3:A1217", Rect{StartRow: 2, EndRow: 1217, StartCol: 0, EndCol: 1}},
		{"a1:c2", Rect{StartRow: 0, EndRow: 2, StartCol: 0, EndCol: 3}},
		{" C5 : C5 ", Rect{StartRow: 4, EndRow: 5, StartCol: 2, EndCol: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRange_Errors(t *testing.T) {
	tests := []string{
		"",
		"B3",
		"B3:C4:D5",
		"3B:C4",
		"B:C4",
		"B0:C4",
		"$B$3:$C$4",
		"C4:B3",
		"B3:C-4",
	}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := ParseRange(in)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
		})
	}
}

func TestParseRange_InverseConsistent(t *testing.T) {
	for _, in := range []string{"B3:AJW1217", "A1:A1", "Z10:AA11", "b2:zz99"} {
		r, err := ParseRange(in)
		require.NoError(t, err)

		again, err := ParseRange(FormatRange(r))
		require.NoError(t, err)
		assert.Equal(t, r, again, in)
	}
	assert.Equal(t, "B2:ZZ99", FormatRange(mustRange(t, "b2:zz99")))
}

func TestIndexToColumnLetters(t *testing.T) {
	for idx, want := range map[int]string{0: "A", 25: "Z", 26: "AA", 701: "ZZ", 950: "AJO"} {
		got, err := IndexToColumnLetters(idx)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		back, err := ColumnLettersToIndex(got)
		require.NoError(t, err)
		assert.Equal(t, idx, back)
	}

	_, err := IndexToColumnLetters(-1)
	assert.True(t, apperrors.Is(err, apperrors.ErrTypeValidation))
}

func TestFormatRange_OutOfSheet(t *testing.T) {
	assert.Equal(t, "A2000000:B2000001", FormatRange(Rect{StartRow: 1999999, EndRow: 2000001, StartCol: 0, EndCol: 2}))
	assert.Equal(t, "R1C1:R0C0", FormatRange(Rect{}))
}

func TestRect(t *testing.T) {
	r := mustRange(t, "B3:D7")
	assert.Equal(t, 5, r.Rows())
	assert.Equal(t, 3, r.Cols())
	assert.Equal(t, 15, r.Area())
	assert.True(t, r.FitsIn(7, 4))
	assert.False(t, r.FitsIn(6, 4))
	assert.False(t, r.FitsIn(7, 3))
	assert.Equal(t, "B3:D7", r.String())
}

func mustRange(t *testing.T, s string) Rect {
	t.Helper()
	r, err := ParseRange(s)
	require.NoError(t, err)
	return r
}
