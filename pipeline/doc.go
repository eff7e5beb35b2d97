// Package pipeline turns a dequeued job descriptor into its result.
//
// A Runner owns an extraction engine and applies the per-job processing
// options: extract, then optionally chunk. Single-document jobs yield a
// core.JobResult directly; batch jobs run every file in submission order
// and aggregate per-file outcomes, so one bad file never aborts its
// siblings.
package pipeline
