// Package daemonrun is the process entrypoint shared by `gatewarden run` and
// the gatewardend binary. It builds the logger, journal, gate and optional
// integrations from configuration and hands them to the daemon.
package daemonrun
