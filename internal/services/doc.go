// Package services defines shared utilities consumed by the gate core, the
// HTTP API, and the external integrations (detector feed, relay actuator).
//
// Key responsibilities:
//   - Context helpers that stamp camera IDs, plates, operators, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can classify a
//     failure (not found, invalid input, upstream, storage) without parsing
//     strings.
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability) stays uniform across the daemon.
package services
