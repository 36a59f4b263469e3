// Package logstream picks the best available source for `gatewarden logs`:
// the daemon's structured event stream, or the daemon log file when the API
// cannot be reached.
package logstream
