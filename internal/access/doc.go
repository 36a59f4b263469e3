// Package access defines the value types shared by every part of the gate
// controller: plate readings, stable detections, pending approvals, barrier
// states, and the entries of the access log.
//
// The types are plain values. Ownership and synchronization rules live with
// the packages that mutate them (stabilizer, pending, barrier, tracking, gate);
// this package only names things and validates the enumerations that arrive
// from outside the process.
package access
