package processing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"neuropipe/internal/artifacts"
	apperrors "neuropipe/internal/errors"
	"neuropipe/internal/tabular"
)

// IndexingParams configures the indexer.
type IndexingParams struct {
	IndexingType string `json:"indexing_type" validate:"required"`
	SelectedFile string `json:"selected_file" validate:"required"`
	VectorColumn string `json:"vector_column" validate:"required"`
	ColumnName   string `json:"column_name"`
}

// ParseIndexingType reports whether s selects row indexing.
func ParseIndexingType(s string) (rows bool, err error) {
	switch normalizeName(s) {
	case "row indexing", "row", "rows":
		return true, nil
	case "column indexing", "column", "columns":
		return false, nil
	}
	return false, apperrors.NewValidationError("indexing_type must be %q or %q, got %q", "Row Indexing", "Column Indexing", s)
}

// RankDescending ranks values from 1 (largest) to len(values). Equal values
// keep their input order.
func RankDescending(values []float64) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})
	ranks := make([]int, len(values))
	for pos, idx := range order {
		ranks[idx] = pos + 1
	}
	return ranks
}

// RankRow is one line of the indexer's preview.
type RankRow struct {
	OriginalValue     float64 `json:"original_value"`
	Rank              int     `json:"rank"`
	ValueSortedByRank float64 `json:"value_sorted_by_rank"`
}

// Indexer ranks a vector and merges the ranks into the dataset's shared
// row or column index file.
type Indexer struct {
	logger      *slog.Logger
	previewSize int
}

// NewIndexer creates an indexer. previewSize bounds the preview rows in
// the result; <= 0 uses DefaultPreviewSize.
func NewIndexer(logger *slog.Logger, previewSize int) *Indexer {
	if previewSize <= 0 {
		previewSize = DefaultPreviewSize
	}
	return &Indexer{logger: logger, previewSize: previewSize}
}

// Kind implements Processor
func (x *Indexer) Kind() Kind { return KindIndexing }

// Process implements Processor
func (x *Indexer) Process(_ context.Context, in Input, progress ProgressFunc) (*Result, error) {
	var params IndexingParams
	if err := Decode(in.Params, &params); err != nil {
		return nil, err
	}
	rowIndexing, err := ParseIndexingType(params.IndexingType)
	if err != nil {
		return nil, err
	}
	if in.Store == nil {
		return nil, apperrors.NewInternalError("indexing has no artifact store", nil)
	}
	column := strings.TrimSpace(params.ColumnName)
	if column == "" {
		column = params.VectorColumn
	}

	source := params.SelectedFile
	if !filepath.IsAbs(source) {
		source = in.Store.Path(source)
	}
	frame, err := artifacts.ReadFrame(source)
	if err != nil {
		return nil, err
	}
	raw, ok := frame.Column(params.VectorColumn)
	if !ok {
		return nil, apperrors.NewValidationError("column %q not found in %s (columns: %s)",
			params.VectorColumn, filepath.Base(source), strings.Join(frame.Header, ", "))
	}
	values, _, err := tabular.CoerceStrings(raw, tabular.Strict)
	if err != nil {
		return nil, fmt.Errorf("column %q of %s: %w", params.VectorColumn, filepath.Base(source), err)
	}
	progress.report(20)

	ranks := RankDescending(values)
	progress.report(50)

	target := in.Store.IndexPath(rowIndexing)
	index, err := loadIndex(target, rowIndexing, len(ranks))
	if err != nil {
		return nil, err
	}
	rankText := make([]string, len(ranks))
	for i, r := range ranks {
		rankText[i] = strconv.Itoa(r)
	}
	overwritten, err := index.SetColumn(column, rankText)
	if err != nil {
		return nil, err
	}
	if err := in.Store.Ensure(); err != nil {
		return nil, err
	}
	if err := artifacts.WriteFrame(target, index); err != nil {
		return nil, err
	}
	progress.report(80)

	x.logger.Info("index_updated",
		slog.String("target", target),
		slog.String("column", column),
		slog.Int("entries", len(ranks)),
		slog.Bool("overwritten", overwritten))
	progress.report(100)

	return &Result{
		Success: true,
		Data: map[string]any{
			"preview":     x.preview(values, ranks),
			"target_path": target,
			"column_name": column,
			"overwritten": overwritten,
		},
		Statistics: map[string]any{
			"entries":       len(ranks),
			"indexing_type": indexingLabel(rowIndexing),
			"source_file":   filepath.Base(source),
			"vector_column": params.VectorColumn,
			"column_name":   column,
			"overwritten":   overwritten,
		},
		OutputPath: target,
		Message:    fmt.Sprintf("%s written to column %q of %s", indexingLabel(rowIndexing), column, filepath.Base(target)),
	}, nil
}

func (x *Indexer) preview(values []float64, ranks []int) []RankRow {
	byRank := make([]float64, len(values))
	for i, r := range ranks {
		byRank[r-1] = values[i]
	}
	n := min(x.previewSize, len(values))
	rows := make([]RankRow, n)
	for i := 0; i < n; i++ {
		rows[i] = RankRow{OriginalValue: values[i], Rank: ranks[i], ValueSortedByRank: byRank[i]}
	}
	return rows
}

// loadIndex reads the shared index file, or starts one with a synthetic
// label column when it does not exist yet.
func loadIndex(path string, rows bool, n int) (*artifacts.Frame, error) {
	frame, err := artifacts.ReadFrame(path)
	if err == nil {
		if frame.Len() != n {
			return nil, apperrors.NewValidationError(
				"%s has %d entries but the ranked vector has %d", filepath.Base(path), frame.Len(), n)
		}
		return frame, nil
	}
	if !apperrors.Is(err, apperrors.ErrTypeNotFound) {
		return nil, err
	}

	frame = &artifacts.Frame{Rows: make([][]string, n)}
	if rows {
		frame.Header = []string{artifacts.RowLabelsColumn}
		for i := range frame.Rows {
			frame.Rows[i] = []string{fmt.Sprintf("C%03d", i)}
		}
	} else {
		frame.Header = []string{artifacts.ColumnLabelsColumn}
		for i := range frame.Rows {
			frame.Rows[i] = []string{strconv.Itoa(i)}
		}
	}
	return frame, nil
}

func indexingLabel(rows bool) string {
	if rows {
		return "Row Indexing"
	}
	return "Column Indexing"
}
