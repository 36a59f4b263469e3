// Package logging assembles the structured slog loggers used by the gate
// daemon and CLI.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers so request handlers and camera lanes tag their lines
// with camera, plate, operator and correlation IDs. The daemon additionally
// tees every record into a StreamHub so operators can tail the daemon log
// over the HTTP API.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits the same field names.
package logging
