// Package daemonctl starts, stops and inspects the gatewarden daemon process
// on behalf of the CLI.
//
// The daemon records its PID under the state directory; liveness is the PID
// answering signal 0, and readiness is the HTTP API answering /api/status.
// When the daemon is down, BuildStatusSnapshot falls back to reading the
// journal and running preflight checks locally.
package daemonctl
