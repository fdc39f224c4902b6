// Package journal records job lifecycle transitions in a SQLite database.
//
// The journal is an audit trail, not a source of truth: per-version metadata
// files own job state, and a missing or unreadable journal never blocks
// registration or execution. Writers retry on SQLITE_BUSY so a registrar and
// several workers can share one database file under WAL mode.
package journal
