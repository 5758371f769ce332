// Package tasks orchestrates the listening history pipeline with real-time progress reporting.
//
// # Pipeline
//
// [PipelineEngine.Run] performs one run:
//
//  1. fetching : ask the [HistoryProvider] for up to 50 recently played items
//  2. transforming : normalize the items into plays, tracks and artists datasets
//  3. loading : append the datasets through the [Loader], plays first
//
// A run moves idle → fetching → transforming → loading → done. Any stage error moves it to
// failed and is returned as a [*StageError]; [errors.Is] still matches the underlying sentinel.
// Nothing is retried.
//
// The load is not atomic across relations. A run that fails while loading may leave plays
// appended without their tracks or artists; the run log makes such runs visible.
//
// # Progress Reporting
//
// Each transition emits a [ProgressUpdate] on the caller's channel. Updates use select with
// default so a full or missing channel never blocks the run.
//
// # Run Log
//
// The optional [RunRecorder] (repositories.RunRepository) receives the run when it starts
// and again when it finishes. Recording errors are logged and ignored.
package tasks
