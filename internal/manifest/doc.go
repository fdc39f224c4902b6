// Package manifest maintains _JOBS_MANIFEST.json, the single document that
// summarizes every registered job and its versions.
//
// The manifest mirrors per-version metadata and can be regenerated from it
// with Rebuild. All read-modify-write cycles go through Update, which holds an
// advisory flock on <manifest>.lock so registrars and workers in separate
// processes never lose each other's changes. A manifest that cannot be parsed
// is treated as empty; before it is overwritten its bytes are preserved next
// to it as <manifest>.corrupt-<stamp>.
package manifest
