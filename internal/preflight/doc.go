// Package preflight provides readiness and consistency checks for the job
// store.
//
// The CLI "jobspine doctor" command runs RunAll; the worker command runs the
// directory checks before it starts polling. Checks only read: they report
// stuck versions, stale claim markers, and manifest drift, and leave repair
// to the operator.
package preflight
