// Package workflow drives queued job versions through execution.
//
// A Worker discovers the first queued, unclaimed version in lexical order,
// claims it through the queue store's exclusive marker, runs the configured
// stage handler, and marks the version completed. Every status change is
// written to the version's metadata first and then mirrored into the manifest
// and the journal; metadata stays authoritative if either mirror fails.
//
// RunOnce performs at most one claim-and-execute cycle. RunLoop repeats it
// until the context is cancelled, waiting the poll interval whenever the
// queue is idle and the error retry interval after failures.
package workflow
