package operations

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"neuropipe/internal/config"
	"neuropipe/internal/processing"
	"neuropipe/internal/registry"
	"neuropipe/internal/shared/testutil"
)

const waitTimeout = 5 * time.Second

type fixture struct {
	coord *Coordinator
	repo  *registry.Memory
	paths *config.Paths
	ds    *registry.Dataset
	logs  *testutil.BufferedSlogHandler
	dir   string
}

// newFixture builds a started coordinator over an in-memory registry with
// one registered CSV dataset.
func newFixture(t *testing.T, tweaks ...func(*Options)) *fixture {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	dir := t.TempDir()

	paths, err := config.NewPaths(config.PathsConfig{
		DataDir:    filepath.Join(dir, "data"),
		LogsDir:    filepath.Join(dir, "logs"),
		RegistryDB: filepath.Join(dir, "data", "registry.db"),
	})
	require.NoError(t, err)

	repo := registry.NewMemory()
	opts := Options{
		Repository: repo,
		Processors: processing.NewDefaultRegistry(logger, 0),
		Paths:      paths,
		Pipeline:   config.PipelineConfig{Workers: 2, QueueSize: 8, EventBuffer: 64},
		Logger:     logger,
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}

	coord, err := NewCoordinator(opts)
	require.NoError(t, err)
	require.NoError(t, coord.Start(context.Background()))
	t.Cleanup(func() { coord.Shutdown(context.Background(), waitTimeout) })

	f := &fixture{coord: coord, repo: repo, paths: paths, logs: logs, dir: dir}
	f.ds = f.addDataset(t, "session 1")
	return f
}

func (f *fixture) addDataset(t *testing.T, name string) *registry.Dataset {
	t.Helper()
	src := testutil.WriteCSV(t, f.dir, name+".csv", testutil.NeuronRecords(6, 4), ',')
	ds := &registry.Dataset{Name: name, FilePath: src}
	require.NoError(t, f.coord.RegisterDataset(context.Background(), ds))
	return ds
}

func extractionParams() processing.Params {
	return processing.Params{
		"matrix_name":         "raster",
		"matrix_range":        "B3:E8",
		"column_labels_range": "B1:E1",
		"row_labels_range":    "A3:A8",
	}
}

// withProcessors swaps the processor registry for one holding ps.
func withProcessors(t *testing.T, ps ...processing.Processor) func(*Options) {
	return func(o *Options) {
		r := processing.NewRegistry()
		for _, p := range ps {
			require.NoError(t, r.Register(p))
		}
		o.Processors = r
	}
}

func withWorkers(workers, queueSize int) func(*Options) {
	return func(o *Options) {
		o.Pipeline.Workers = workers
		o.Pipeline.QueueSize = queueSize
	}
}

// stubProcessor announces every call on started and, when release is set,
// blocks until it is closed.
type stubProcessor struct {
	kind    processing.Kind
	started chan processing.Input
	release chan struct{}
	run     func(in processing.Input, progress processing.ProgressFunc) (*processing.Result, error)
}

func newStub(kind processing.Kind) *stubProcessor {
	return &stubProcessor{kind: kind, started: make(chan processing.Input, 16)}
}

func (s *stubProcessor) Kind() processing.Kind { return s.kind }

func (s *stubProcessor) Process(_ context.Context, in processing.Input, progress processing.ProgressFunc) (*processing.Result, error) {
	s.started <- in
	if s.release != nil {
		<-s.release
	}
	if s.run != nil {
		return s.run(in, progress)
	}
	return &processing.Result{Success: true, Message: "done"}, nil
}

func waitStarted(t *testing.T, s *stubProcessor) processing.Input {
	t.Helper()
	select {
	case in := <-s.started:
		return in
	case <-time.After(waitTimeout):
		t.Fatal("processor did not start")
		return processing.Input{}
	}
}

func waitResult(t *testing.T, task *Task) *processing.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	res, err := task.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}
