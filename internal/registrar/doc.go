// Package registrar turns intake requests into queued job versions.
//
// Register validates every input before touching the filesystem, serializes
// registrations per job with an advisory lock so concurrent callers never
// compute the same version, writes the version's metadata and placeholder
// artifact, and records the version in the manifest.
package registrar
