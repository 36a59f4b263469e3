package api

import "gatewarden/internal/logging"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// PendingItem is a plate awaiting operator approval.
type PendingItem struct {
	Plate      string `json:"plate"`
	Direction  string `json:"direction"`
	CameraID   string `json:"camera_id,omitempty"`
	DetectedAt string `json:"detected_at"`
}

// PendingListResponse wraps the pending queue in arrival order.
type PendingListResponse struct {
	Items []PendingItem `json:"items"`
}

// BarrierView is the barrier snapshot.
type BarrierView struct {
	State       string `json:"state"`
	OpenedFor   string `json:"opened_for,omitempty"`
	AutoCloseAt string `json:"auto_close_at,omitempty"`
	ChangedAt   string `json:"changed_at,omitempty"`
	Revision    uint64 `json:"revision"`
}

// OccupancyResponse maps plate to INSIDE or OUTSIDE.
type OccupancyResponse struct {
	Plates map[string]string `json:"plates"`
}

// LogEntryView is one access log record.
type LogEntryView struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"timestamp"`
	Plate      string `json:"plate,omitempty"`
	Direction  string `json:"direction,omitempty"`
	Action     string `json:"action"`
	ResolvedBy string `json:"resolved_by,omitempty"`
	CameraID   string `json:"camera_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// LogsResponse lists access log entries, most recent first.
type LogsResponse struct {
	Entries []LogEntryView `json:"entries"`
}

// ResolveRequest is the body of POST /api/guard/resolve.
type ResolveRequest struct {
	Plate    string `json:"plate"`
	Decision string `json:"decision"`
	Operator string `json:"operator,omitempty"`
}

// ResolveResponse reports the log entry a resolution produced.
type ResolveResponse struct {
	Entry   LogEntryView `json:"entry"`
	Barrier BarrierView  `json:"barrier"`
}

// BarrierActionResponse reports the barrier after a manual override.
type BarrierActionResponse struct {
	Barrier BarrierView `json:"barrier"`
}

// DetectionRequest is the body of POST /api/input/detection.
type DetectionRequest struct {
	CameraID  string `json:"camera_id,omitempty"`
	Plate     string `json:"plate"`
	Direction string `json:"direction,omitempty"`
}

// DetectionResponse reports what a pushed reading produced.
type DetectionResponse struct {
	CameraID string       `json:"camera_id"`
	Emitted  bool         `json:"emitted"`
	Enqueued bool         `json:"enqueued"`
	Pending  *PendingItem `json:"pending,omitempty"`
}

// CredentialRequest is the body of POST /api/input/credential.
type CredentialRequest struct {
	UserID string `json:"user_id"`
}

// LaneView reports one camera's stabilizer state.
type LaneView struct {
	CameraID  string `json:"camera_id"`
	Direction string `json:"direction"`
	LastPlate string `json:"last_plate,omitempty"`
	Count     int    `json:"count"`
	Threshold int    `json:"threshold"`
	Emitted   bool   `json:"emitted"`
}

// RelayStatus mirrors the barrier relay driver.
type RelayStatus struct {
	Device    string `json:"device"`
	Online    bool   `json:"online"`
	Desired   string `json:"desired,omitempty"`
	Applied   string `json:"applied,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// CheckResult is one readiness check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool          `json:"running"`
	PID           int           `json:"pid"`
	StartedAt     string        `json:"started_at,omitempty"`
	JournalPath   string        `json:"journal_path"`
	SchemaVersion uint          `json:"schema_version"`
	LockFilePath  string        `json:"lock_file_path"`
	LogPath       string        `json:"log_path,omitempty"`
	Barrier       BarrierView   `json:"barrier"`
	PendingCount  int           `json:"pending_count"`
	InsideCount   int           `json:"inside_count"`
	LogEntries    int           `json:"log_entries"`
	Lanes         []LaneView    `json:"lanes"`
	Relay         *RelayStatus  `json:"relay,omitempty"`
	Checks        []CheckResult `json:"checks,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// LogEvent is a daemon log line.
type LogEvent = logging.LogEvent

// LogStreamResponse carries a batch of log events and the cursor to resume from.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}
