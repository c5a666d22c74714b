package processing

import (
	"path/filepath"
	"testing"

	"neuropipe/internal/artifacts"
	"neuropipe/internal/config"
	"neuropipe/internal/shared/testutil"
	"neuropipe/internal/tabular"
)

func newTestStore(t *testing.T) *artifacts.Store {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return artifacts.NewStore(config.NewDatasetLayout(filepath.Join(t.TempDir(), "dataset")), logger)
}

func neuronTable(rows, cols int) *tabular.Table {
	return tabular.NewTextTable(testutil.NeuronRecords(rows, cols))
}

// progressLog records every reported percentage.
type progressLog struct {
	values []float64
}

func (p *progressLog) fn() ProgressFunc {
	return func(v float64) { p.values = append(p.values, v) }
}
