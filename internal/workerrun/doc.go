// Package workerrun hosts a job worker as a process: it wires the stores,
// stub executor, and journal from configuration and ties the poll loop to
// SIGINT and SIGTERM.
package workerrun
