// Package validation checks raw source files before they are registered as
// datasets.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/tabular"
)

// SourceFile is a validated raw table file
type SourceFile struct {
	Path   string
	Format string
	Size   int64
}

// SourceValidator checks that a dataset's raw file can be loaded later
type SourceValidator struct {
	logger *slog.Logger
}

// NewSourceValidator creates a new source validator
func NewSourceValidator(logger *slog.Logger) *SourceValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceValidator{
		logger: logger.With(slog.String("component", "source_validator")),
	}
}

// Validate resolves path to an absolute file and its format. An empty format
// is taken from the file extension. Workbooks are opened once to make sure
// they are not corrupt.
func (v *SourceValidator) Validate(path, format string) (*SourceFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid file path %q", path)
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("source file %s", abs))
	}
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("cannot access %s", abs), err)
	}
	if info.IsDir() {
		return nil, apperrors.NewValidationError("%s is a directory", abs)
	}
	if info.Size() == 0 {
		return nil, apperrors.NewValidationError("source file %s is empty", abs)
	}

	format = tabular.NormalizeFormat(format)
	if format == "" {
		format = tabular.NormalizeFormat(filepath.Ext(abs))
	}
	if !tabular.IsSupportedFormat(format) {
		return nil, apperrors.NewValidationError("unsupported file format %q", format)
	}

	file, err := os.Open(abs)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("source file %s is not readable", abs), err)
	}
	file.Close()

	if format == tabular.FormatXLSX || format == tabular.FormatXLSM {
		if err := v.checkWorkbook(abs); err != nil {
			return nil, err
		}
	}

	v.logger.Debug("source file validated",
		slog.String("file", abs),
		slog.String("format", format),
		slog.Int64("size", info.Size()))
	return &SourceFile{Path: abs, Format: format, Size: info.Size()}, nil
}

func (v *SourceValidator) checkWorkbook(path string) error {
	if strings.HasPrefix(filepath.Base(path), "~$") {
		return apperrors.NewValidationError("%s is a temporary Excel lock file", path)
	}
	wb, err := excelize.OpenFile(path)
	if err != nil {
		v.logger.Warn("workbook rejected", slog.String("file", path), slog.String("error", err.Error()))
		return apperrors.NewParsingError(fmt.Sprintf("%s is not a readable workbook", path), err)
	}
	defer wb.Close()
	if len(wb.GetSheetList()) == 0 {
		return apperrors.NewValidationError("workbook %s has no sheets", path)
	}
	return nil
}
