// Package operations runs processors against registered datasets.
//
// The Coordinator is the single entry point. It resolves the dataset and the
// processor, prepares the processor input (artifact store, injected dataset
// parameters, the raw table when the processor needs it) and turns every
// outcome into a processing.Result. Nothing escapes as a panic.
//
// Two execution styles are offered:
//
//   - Run executes synchronously on the caller's goroutine.
//   - Submit records a pending job in the registry and hands it to the
//     JobQueue. The returned Task streams progress events followed by exactly
//     one result event, and can be cancelled while the job is still pending.
//
// Jobs on the same dataset are serialised; jobs on different datasets run
// concurrently, one goroutine per job.
//
// Example usage:
//
//	coord, err := operations.NewCoordinator(operations.Options{
//		Repository: repo,
//		Processors: processing.NewDefaultRegistry(logger, 10),
//		Paths:      paths,
//		Logger:     logger,
//	})
//	coord.Start(ctx)
//	task, err := coord.Submit(ctx, operations.SubmitRequest{
//		DatasetID: 1,
//		Processor: "Matrix Extraction",
//		Parameters: processing.Params{"matrix_name": "raster"},
//	})
//	for ev := range task.Events() {
//		...
//	}
package operations
