// Package tracking keeps the append-only access log and the occupancy derived
// from it.
//
// Occupancy is never written directly. It changes only when an ENTER or EXIT
// entry is appended, so folding the full log with Replay always reproduces
// the tracker's current view. When a Journal is attached every entry is
// persisted before it becomes visible in memory; a failed write leaves the
// tracker exactly as it was.
package tracking

import (
	"context"
	"fmt"
	"time"

	"gatewarden/internal/access"
	"gatewarden/internal/services"
)

// Journal persists log entries. Load returns entries in append order.
type Journal interface {
	Append(ctx context.Context, entry access.LogEntry) error
	Load(ctx context.Context) ([]access.LogEntry, error)
}

// Tracker is the in-memory log and occupancy view. It is not safe for
// concurrent use.
type Tracker struct {
	journal   Journal
	now       func() time.Time
	entries   []access.LogEntry
	occupancy map[string]access.Occupancy
	nextID    int64
}

// New returns an empty tracker. journal may be nil for a memory-only log.
func New(journal Journal, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		journal:   journal,
		now:       now,
		occupancy: make(map[string]access.Occupancy),
		nextID:    1,
	}
}

// Append assigns the next ID (and a timestamp when unset), persists the entry
// and commits it. Occupancy follows ENTER and EXIT entries.
func (t *Tracker) Append(ctx context.Context, entry access.LogEntry) (access.LogEntry, error) {
	if entry.Action == "" {
		return access.LogEntry{}, fmt.Errorf("append log entry: missing action: %w", services.ErrValidation)
	}
	entry.ID = t.nextID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = t.now()
	}
	if t.journal != nil {
		if err := t.journal.Append(ctx, entry); err != nil {
			return access.LogEntry{}, fmt.Errorf("append log entry %d: %w", entry.ID, err)
		}
	}
	t.commit(entry)
	return entry, nil
}

func (t *Tracker) commit(entry access.LogEntry) {
	t.entries = append(t.entries, entry)
	if entry.ID >= t.nextID {
		t.nextID = entry.ID + 1
	}
	if entry.MovesOccupancy() {
		t.occupancy[entry.Plate] = entry.OccupancyAfter()
	}
}

// OccupancyOf returns the plate's state, OUTSIDE when never seen.
func (t *Tracker) OccupancyOf(plate string) access.Occupancy {
	if state, ok := t.occupancy[plate]; ok {
		return state
	}
	return access.Outside
}

// Occupancy returns a copy of every plate's known state.
func (t *Tracker) Occupancy() map[string]access.Occupancy {
	out := make(map[string]access.Occupancy, len(t.occupancy))
	for plate, state := range t.occupancy {
		out[plate] = state
	}
	return out
}

// Inside returns the plates currently inside.
func (t *Tracker) Inside() []string {
	var out []string
	for plate, state := range t.occupancy {
		if state == access.Inside {
			out = append(out, plate)
		}
	}
	return out
}

// Recent returns up to limit entries, most recent first. A non-positive
// limit returns the whole log.
func (t *Tracker) Recent(limit int) []access.LogEntry {
	n := len(t.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]access.LogEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, t.entries[i])
	}
	return out
}

// Entries returns the full log in append order.
func (t *Tracker) Entries() []access.LogEntry {
	out := make([]access.LogEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Tracker) Len() int { return len(t.entries) }

// Restore replaces the in-memory state with the journal's contents.
func (t *Tracker) Restore(ctx context.Context) error {
	if t.journal == nil {
		return nil
	}
	entries, err := t.journal.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore access log: %w", err)
	}
	t.entries = nil
	t.occupancy = make(map[string]access.Occupancy)
	t.nextID = 1
	for _, entry := range entries {
		t.commit(entry)
	}
	return nil
}

// Replay folds entries into an occupancy map using the same rules as Append.
func Replay(entries []access.LogEntry) map[string]access.Occupancy {
	out := make(map[string]access.Occupancy)
	for _, entry := range entries {
		if entry.MovesOccupancy() {
			out[entry.Plate] = entry.OccupancyAfter()
		}
	}
	return out
}
