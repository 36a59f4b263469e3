// Package config loads, normalizes and validates the gatewarden TOML
// configuration.
//
// Load applies defaults, expands ~ in paths, reads secrets such as the API
// token from the environment when the file leaves them empty, and rejects
// combinations the daemon cannot run with. CreateSample writes the annotated
// sample embedded in the binary.
package config
