// Package logs reads daemon logs for the CLI, either live from the daemon's
// /api/logs stream or straight from a daemon log file on disk.
//
// The file helpers keep memory bounded when taking the last N lines of a
// large file and return byte offsets so follow mode can resume where the
// previous read stopped.
package logs
