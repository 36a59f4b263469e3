// Package gate wires the access-control core together.
//
// An Orchestrator owns one lane per camera, each holding that camera's
// stabilizer behind its own mutex, plus the shared pending queue, barrier
// controller and access-log tracker behind a single orchestrator mutex. Every
// mutation of shared state (enqueue, resolve, manual open/close, auto-close
// fire, pending expiry) runs under that mutex so the first resolver wins and
// stale timers cannot act.
//
// A state change is committed only after its log entry is appended. When the
// append fails the pending entry stays, the barrier stays where it was, and
// the error is returned.
//
// Observers registered with OnBarrierChange, OnPending and OnLogEntry run
// after the mutex is released, on the goroutine that made the change.
package gate
