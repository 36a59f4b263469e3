// Package main implements the gatewarden CLI.
//
// The CLI is a thin client over the daemon's HTTP API: it launches and stops
// the daemon process, lists and resolves pending approvals, overrides the
// barrier, pushes readings and credentials, and tails daemon logs. Most
// commands accept --json for machine-readable output. Configuration is loaded
// once per invocation and --api overrides the configured bind address.
package main
