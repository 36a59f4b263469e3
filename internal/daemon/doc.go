// Package daemon coordinates the long-running gatewarden process and its
// system integration points.
//
// It wires configuration, the access journal, the gate orchestrator, the
// detector poller and the barrier relay into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon serves the
// guard HTTP API, sweeps expired approvals, and forwards gate events to the
// relay and to notifications.
//
// Keep orchestration logic here: gate semantics live in internal/gate while
// the daemon focuses on startup, shutdown and high level coordination.
package daemon
