// Package api defines the wire-format types and converters shared by the
// daemon's HTTP server and the CLI client.
//
// # Key Types
//
// PendingItem, BarrierView, LogEntryView: transport forms of the gate's
// pending approvals, barrier snapshot and access log entries.
//
// ResolveRequest, DetectionRequest, CredentialRequest: POST bodies accepted by
// the guard and input endpoints.
//
// DaemonStatus: aggregated runtime information including camera lanes,
// relay state and preflight checks.
//
// LogEvent/LogStreamResponse: structured daemon log payloads for live tailing.
//
// # Design Notes
//
// JSON keys are snake_case to match the dashboard. Timestamps use RFC3339
// with milliseconds in UTC. Optional barrier fields are omitted rather than
// sent as null.
package api
