// Package progress reports job lifecycle events of harvest runs. Emit never
// blocks the orchestrator: events are batched on a background goroutine and
// fanned out to sinks such as the run store or the log.
package progress
