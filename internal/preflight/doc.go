// Package preflight provides readiness checks for the devices, services and
// filesystem paths gatewarden depends on.
//
// The daemon runs RunAll at startup and logs failures without refusing to
// start, since the gate core stays usable through the API when the camera
// sidecar or relay board is missing. The CLI "gatewarden status" command uses
// the individual checks to display hardware health.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
