package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DaemonLogPattern matches the files produced by DaemonLogPath.
const DaemonLogPattern = "gatewardend-*.log"

// CleanupOldLogs removes files in dir matching pattern whose modification
// time is older than retentionDays. keep is never removed, so the active log
// survives even on a clock jump. retentionDays <= 0 disables pruning. It
// returns the number of files removed.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, dir, pattern, keep string) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	keepAbs, _ := filepath.Abs(keep)

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	removed := 0
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil && abs == keepAbs {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on log_dir"),
				String(FieldImpact, "old log file stays on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Info("old log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
