package api

import (
	"time"

	"gatewarden/internal/access"
	"gatewarden/internal/actuator"
	"gatewarden/internal/gate"
	"gatewarden/internal/preflight"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses an API timestamp; empty yields the zero time.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateTimeFormat, value)
}

// FromPending converts a pending approval.
func FromPending(p access.PendingApproval) PendingItem {
	return PendingItem{
		Plate:      p.Plate,
		Direction:  string(p.Direction),
		CameraID:   p.CameraID,
		DetectedAt: formatTime(p.DetectedAt),
	}
}

// FromPendingList converts the queue snapshot. The result is never nil so it
// encodes as [].
func FromPendingList(items []access.PendingApproval) PendingListResponse {
	out := make([]PendingItem, 0, len(items))
	for _, p := range items {
		out = append(out, FromPending(p))
	}
	return PendingListResponse{Items: out}
}

// FromBarrier converts a barrier snapshot.
func FromBarrier(b access.BarrierStatus) BarrierView {
	view := BarrierView{
		State:     string(b.State),
		OpenedFor: b.OpenedFor,
		ChangedAt: formatTime(b.ChangedAt),
		Revision:  b.Revision,
	}
	if b.AutoCloseAt != nil {
		view.AutoCloseAt = formatTime(*b.AutoCloseAt)
	}
	return view
}

// FromLogEntry converts an access log record.
func FromLogEntry(e access.LogEntry) LogEntryView {
	return LogEntryView{
		ID:         e.ID,
		Timestamp:  formatTime(e.Timestamp),
		Plate:      e.Plate,
		Direction:  string(e.Direction),
		Action:     string(e.Action),
		ResolvedBy: e.ResolvedBy,
		CameraID:   e.CameraID,
		Reason:     e.Reason,
	}
}

// FromLogEntries converts a slice of log records.
func FromLogEntries(entries []access.LogEntry) LogsResponse {
	out := make([]LogEntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromLogEntry(e))
	}
	return LogsResponse{Entries: out}
}

// FromOccupancy converts the occupancy map.
func FromOccupancy(m map[string]access.Occupancy) OccupancyResponse {
	out := make(map[string]string, len(m))
	for plate, occ := range m {
		out[plate] = string(occ)
	}
	return OccupancyResponse{Plates: out}
}

// FromIngest converts an ingest result.
func FromIngest(r gate.IngestResult) DetectionResponse {
	resp := DetectionResponse{CameraID: r.CameraID, Emitted: r.Emitted, Enqueued: r.Enqueued}
	if r.Emitted {
		item := FromPending(access.PendingApproval(r.Detection))
		resp.Pending = &item
	}
	return resp
}

// FromLanes converts lane snapshots.
func FromLanes(lanes []gate.LaneStatus) []LaneView {
	out := make([]LaneView, 0, len(lanes))
	for _, l := range lanes {
		out = append(out, LaneView{
			CameraID:  l.CameraID,
			Direction: string(l.Direction),
			LastPlate: l.State.LastPlate,
			Count:     l.State.Count,
			Threshold: l.State.Threshold,
			Emitted:   l.State.Emitted,
		})
	}
	return out
}

// FromRelay converts a relay driver snapshot.
func FromRelay(s actuator.Status) *RelayStatus {
	return &RelayStatus{
		Device:    s.Device,
		Online:    s.Online,
		Desired:   string(s.Desired),
		Applied:   string(s.Applied),
		LastError: s.LastError,
	}
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}
