package journal_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewarden/internal/access"
	"gatewarden/internal/journal"
	"gatewarden/internal/services"
	"gatewarden/internal/tracking"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.OpenInDir(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestOpenAppliesMigrations(t *testing.T) {
	j := openJournal(t)
	version, dirty, err := j.SchemaVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
	assert.Equal(t, journal.FileName, filepath.Base(j.Path()))
}

func TestReopenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	first, err := journal.OpenInDir(dir, nil)
	require.NoError(t, err)
	require.NoError(t, first.Append(context.Background(), access.LogEntry{ID: 1, Timestamp: epoch, Action: access.ActionForcedOpen}))
	require.NoError(t, first.Close())

	second, err := journal.OpenInDir(dir, nil)
	require.NoError(t, err)
	defer second.Close()
	n, err := second.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppendAndLoadRoundTrip(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	want := []access.LogEntry{
		{ID: 1, Timestamp: epoch, Plate: "123TUN45", Direction: access.DirectionEnter, Action: access.ActionEnter, ResolvedBy: "guard1", CameraID: "gate-in"},
		{ID: 2, Timestamp: epoch.Add(1500 * time.Millisecond), Action: access.ActionAutoClose, Plate: "123TUN45", Reason: "auto-close delay elapsed"},
		{ID: 3, Timestamp: epoch.Add(time.Minute), Action: access.ActionForcedClose, ResolvedBy: "guard2"},
	}
	for _, entry := range want {
		require.NoError(t, j.Append(ctx, entry))
	}

	got, err := j.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("loaded entries mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendDuplicateIDFails(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	entry := access.LogEntry{ID: 7, Timestamp: epoch, Action: access.ActionForcedOpen}
	require.NoError(t, j.Append(ctx, entry))

	err := j.Append(ctx, entry)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrStorage))
}

func TestRecentFilters(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	entries := []access.LogEntry{
		{ID: 1, Timestamp: epoch, Plate: "A1", Action: access.ActionEnter},
		{ID: 2, Timestamp: epoch, Plate: "B2", Action: access.ActionRejected},
		{ID: 3, Timestamp: epoch, Plate: "A1", Action: access.ActionExit},
		{ID: 4, Timestamp: epoch, Action: access.ActionForcedOpen},
	}
	for _, entry := range entries {
		require.NoError(t, j.Append(ctx, entry))
	}

	byPlate, err := j.Recent(ctx, journal.Filter{Plate: "A1"})
	require.NoError(t, err)
	require.Len(t, byPlate, 2)
	assert.Equal(t, int64(3), byPlate[0].ID)
	assert.Equal(t, int64(1), byPlate[1].ID)

	limited, err := j.Recent(ctx, journal.Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, access.ActionForcedOpen, limited[0].Action)

	rejected, err := j.Recent(ctx, journal.Filter{Action: access.ActionRejected})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "B2", rejected[0].Plate)
}

func TestTrackerRestoresFromJournal(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	now := func() time.Time { return epoch }

	j, err := journal.OpenInDir(dir, nil)
	require.NoError(t, err)
	live := tracking.New(j, now)
	for _, entry := range []access.LogEntry{
		{Plate: "A1", Direction: access.DirectionEnter, Action: access.ActionEnter},
		{Plate: "B2", Direction: access.DirectionEnter, Action: access.ActionEnter},
		{Plate: "A1", Direction: access.DirectionExit, Action: access.ActionExit},
	} {
		_, err := live.Append(ctx, entry)
		require.NoError(t, err)
	}
	require.NoError(t, j.Close())

	reopened, err := journal.OpenInDir(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()
	restored := tracking.New(reopened, now)
	require.NoError(t, restored.Restore(ctx))

	assert.Equal(t, live.Occupancy(), restored.Occupancy())
	assert.Equal(t, access.Inside, restored.OccupancyOf("B2"))
	assert.Equal(t, access.Outside, restored.OccupancyOf("A1"))
}
