// Package ipc ships the HTTP client the CLI uses to talk to a running
// gatewarden daemon.
//
// Every guard operation exposed by the daemon API has a typed method here.
// Non-2xx responses decode into *APIError so callers can tell a missing
// pending plate (404) from a bad request or an unreachable daemon. Requests
// carry the configured bearer token and an X-Request-ID header that the daemon
// echoes into its logs.
package ipc
