package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "message only",
			err:  NewValidationError("row labels count (%d) does not match matrix rows (%d)", 3, 4),
			want: "row labels count (3) does not match matrix rows (4)",
		},
		{
			name: "message with cause",
			err:  NewStorageError("failed to write matrix", fmt.Errorf("disk full")),
			want: "failed to write matrix: disk full",
		},
		{
			name: "not found resource",
			err:  NewNotFoundError("dataset 7"),
			want: "dataset 7 not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("extract: %w", NewValidationError("bad range"))

	assert.Equal(t, ErrorType(""), TypeOf(nil))
	assert.Equal(t, ErrTypeValidation, TypeOf(wrapped))
	assert.Equal(t, ErrTypeNotFound, TypeOf(NewNotFoundError("matrix")))
	assert.Equal(t, ErrTypeInternal, TypeOf(errors.New("boom")))
	assert.True(t, Is(wrapped, ErrTypeValidation))
	assert.False(t, Is(wrapped, ErrTypeStorage))
}

func TestAppError_UnwrapAndContext(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewStorageError("create directory", cause).WithContext("path", "/tmp/x")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "/tmp/x", err.Context["path"])

	var target *AppError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &target))
	assert.Equal(t, ErrTypeStorage, target.Type)
}
