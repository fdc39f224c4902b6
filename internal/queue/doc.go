// Package queue owns the on-disk job store: the INTAKE and JOBS trees, the
// per-version metadata.json files, and the claim markers workers use to take
// exclusive ownership of a queued version.
//
// Per-version metadata is the source of truth for job state. Every version
// moves forward through queued, running, and completed; CanTransition guards
// each step and nothing moves a version backwards. Writes replace files
// atomically so readers never observe a half-written document, and reads are
// tagged (ok, missing, corrupt) so scanners can skip damaged entries without
// aborting.
//
// Claiming is at-most-once: the first worker to create a version's .claim
// marker with O_EXCL owns it, and every other worker sees ErrAlreadyClaimed.
package queue
