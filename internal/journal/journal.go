package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"gatewarden/internal/access"
	"gatewarden/internal/logging"
	"gatewarden/internal/services"
)

// FileName is the journal database name inside the state directory.
const FileName = "journal.db"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	timestampLayout         = time.RFC3339Nano
)

// Journal is the SQLite-backed access log.
type Journal struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates or opens the journal at path and applies pending migrations.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "journal", "open", "create state directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "journal", "open", "open sqlite db", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrStorage, "journal", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	j := &Journal{db: db, path: path, logger: logging.NewComponentLogger(logger, "journal")}
	if err := j.migrateUp(); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrStorage, "journal", "migrate", "", err)
	}
	return j, nil
}

// OpenInDir opens FileName inside dir.
func OpenInDir(dir string, logger *slog.Logger) (*Journal, error) {
	return Open(PathInDir(dir), logger)
}

// PathInDir returns the journal path inside a state directory.
func PathInDir(dir string) string { return filepath.Join(dir, FileName) }

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Close closes the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append inserts entry. The entry ID is assigned by the tracker and must be
// unique; re-using an ID fails.
func (j *Journal) Append(ctx context.Context, entry access.LogEntry) error {
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, func() error {
		_, execErr := j.db.ExecContext(ctx,
			`INSERT INTO access_log (id, ts, plate, direction, action, resolved_by, camera_id, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID,
			entry.Timestamp.UTC().Format(timestampLayout),
			entry.Plate,
			string(entry.Direction),
			string(entry.Action),
			entry.ResolvedBy,
			entry.CameraID,
			entry.Reason,
		)
		return execErr
	})
	if err != nil {
		return services.Wrap(services.ErrStorage, "journal", "append", fmt.Sprintf("entry %d", entry.ID), err)
	}
	return nil
}

// Load returns every entry in ID order.
func (j *Journal) Load(ctx context.Context) ([]access.LogEntry, error) {
	return j.query(ctx, `SELECT id, ts, plate, direction, action, resolved_by, camera_id, reason
		FROM access_log ORDER BY id`)
}

// Filter narrows Recent.
type Filter struct {
	Plate  string
	Action access.Action
	Limit  int
}

// Recent returns matching entries, most recent first.
func (j *Journal) Recent(ctx context.Context, f Filter) ([]access.LogEntry, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Plate != "" {
		clauses = append(clauses, "plate = ?")
		args = append(args, f.Plate)
	}
	if f.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, string(f.Action))
	}
	query := `SELECT id, ts, plate, direction, action, resolved_by, camera_id, reason FROM access_log`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return j.query(ctx, query, args...)
}

// Count returns the number of stored entries.
func (j *Journal) Count(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM access_log").Scan(&n); err != nil {
		return 0, services.Wrap(services.ErrStorage, "journal", "count", "", err)
	}
	return n, nil
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]access.LogEntry, error) {
	ctx = ensureContext(ctx)
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "journal", "query", "", err)
	}
	defer rows.Close()

	var out []access.LogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "journal", "scan", "", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "journal", "query", "", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (access.LogEntry, error) {
	var (
		entry              access.LogEntry
		ts, direction, act string
	)
	if err := row.Scan(&entry.ID, &ts, &entry.Plate, &direction, &act, &entry.ResolvedBy, &entry.CameraID, &entry.Reason); err != nil {
		return access.LogEntry{}, err
	}
	parsed, err := time.Parse(timestampLayout, ts)
	if err != nil {
		return access.LogEntry{}, fmt.Errorf("parse timestamp of entry %d: %w", entry.ID, err)
	}
	entry.Timestamp = parsed
	entry.Direction = access.Direction(direction)
	entry.Action = access.Action(act)
	return entry, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
