// Package pending holds stable detections until an operator or policy
// resolves them.
//
// The queue is keyed by plate: there is never more than one outstanding
// approval for a plate, and a repeated detection of a plate that is still
// waiting leaves the original entry (and its timestamp) untouched. Entries are
// listed in insertion order so every dashboard shows the same sequence.
//
// Queue is not safe for concurrent use; the gate orchestrator serializes all
// access behind its mutex.
package pending

import (
	"fmt"
	"time"

	"gatewarden/internal/access"
	"gatewarden/internal/services"
)

// Queue is an insertion-ordered set of pending approvals keyed by plate.
type Queue struct {
	order   []string
	entries map[string]access.PendingApproval
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{entries: make(map[string]access.PendingApproval)}
}

// Enqueue inserts a pending approval for det.Plate unless one already exists.
// It reports whether a new entry was created.
func (q *Queue) Enqueue(det access.StableDetection) bool {
	if det.Plate == "" {
		return false
	}
	if _, exists := q.entries[det.Plate]; exists {
		return false
	}
	q.entries[det.Plate] = access.PendingApproval{
		Plate:      det.Plate,
		Direction:  det.Direction,
		CameraID:   det.CameraID,
		DetectedAt: det.DetectedAt,
	}
	q.order = append(q.order, det.Plate)
	return true
}

// Get returns the pending approval for plate.
func (q *Queue) Get(plate string) (access.PendingApproval, error) {
	entry, ok := q.entries[plate]
	if !ok {
		return access.PendingApproval{}, fmt.Errorf("pending plate %q: %w", plate, services.ErrNotFound)
	}
	return entry, nil
}

// Remove deletes the entry for plate and returns it. Removing a plate that is
// not pending fails with services.ErrNotFound and changes nothing.
func (q *Queue) Remove(plate string) (access.PendingApproval, error) {
	entry, err := q.Get(plate)
	if err != nil {
		return access.PendingApproval{}, err
	}
	delete(q.entries, plate)
	for i, p := range q.order {
		if p == plate {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return entry, nil
}

// List returns the pending approvals in insertion order.
func (q *Queue) List() []access.PendingApproval {
	out := make([]access.PendingApproval, 0, len(q.order))
	for _, p := range q.order {
		out = append(out, q.entries[p])
	}
	return out
}

// Len returns the number of pending approvals.
func (q *Queue) Len() int { return len(q.order) }

// Expired returns the entries detected more than timeout before now, in
// insertion order. A non-positive timeout never expires anything.
func (q *Queue) Expired(now time.Time, timeout time.Duration) []access.PendingApproval {
	if timeout <= 0 {
		return nil
	}
	var out []access.PendingApproval
	for _, p := range q.order {
		entry := q.entries[p]
		if now.Sub(entry.DetectedAt) >= timeout {
			out = append(out, entry)
		}
	}
	return out
}

// FirstOf returns the earliest-inserted pending approval whose plate is in
// plates and that was detected no earlier than since.
func (q *Queue) FirstOf(plates []string, since time.Time) (access.PendingApproval, bool) {
	wanted := make(map[string]struct{}, len(plates))
	for _, p := range plates {
		wanted[p] = struct{}{}
	}
	for _, p := range q.order {
		if _, ok := wanted[p]; !ok {
			continue
		}
		entry := q.entries[p]
		if entry.DetectedAt.Before(since) {
			continue
		}
		return entry, true
	}
	return access.PendingApproval{}, false
}
