// Package detector polls the plate-reading sidecar for each configured camera
// and feeds one raw reading per tick into the gate.
//
// The sidecar keeps only the latest OCR result per stream. Failed requests,
// empty text and results older than the configured maximum age are all
// delivered as null readings so a camera that loses its feed cannot leave a
// half-built streak behind.
package detector
