package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "habit.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "habit.db")
	st, err := Open(path)
	require.NoError(t, err)
	defer st.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenInMemory(t *testing.T) {
	st, err := Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.AppendEvent(ctx, time.Now()))
	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppendAndReadInInsertionOrder(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 14, 9, 0, 0, 123456789, time.UTC)
	want := []time.Time{base, base.Add(time.Hour), base.Add(48 * time.Hour)}
	for _, ts := range want {
		require.NoError(t, st.AppendEvent(ctx, ts))
	}

	got, err := st.AllTimestamps(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "entry %d: want %v, got %v", i, want[i], got[i])
	}
}

func TestAllTimestampsEmpty(t *testing.T) {
	st := openTestStore(t)

	got, err := st.AllTimestamps(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTimestampsKeepZone(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	loc := time.FixedZone("CEST", 2*60*60)
	ts := time.Date(2026, 10, 18, 23, 30, 0, 0, loc)
	require.NoError(t, st.AppendEvent(ctx, ts))

	got, err := st.AllTimestamps(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, off := got[0].Zone()
	assert.Equal(t, 2*60*60, off)
	assert.True(t, ts.Equal(got[0]))
}

func TestOffset(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	n, err := st.Offset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "unset offset reads as zero")

	require.NoError(t, st.SetOffset(ctx, 42))
	require.NoError(t, st.SetOffset(ctx, 57))
	n, err = st.Offset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 57, n)

	assert.Error(t, st.SetOffset(ctx, -1))
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "habit.db")
	ctx := context.Background()

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.AppendEvent(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, st.SetOffset(ctx, 3))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	off, err := st.Offset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, off)
}

func TestAppendCancelledContext(t *testing.T) {
	st := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, st.AppendEvent(ctx, time.Now()))
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-10-14T09:00:00Z", time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)},
		{"2026-10-14T09:00:00.5+02:00", time.Date(2026, 10, 14, 7, 0, 0, 500000000, time.UTC)},
		{"2026-10-14T09:00:00.123456", time.Date(2026, 10, 14, 9, 0, 0, 123456000, time.Local)},
		{"2026-10-14T09:00:00", time.Date(2026, 10, 14, 9, 0, 0, 0, time.Local)},
		{"2026-10-14 09:00:00", time.Date(2026, 10, 14, 9, 0, 0, 0, time.Local)},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.in)
		if assert.NoError(t, err, c.in) {
			assert.True(t, c.want.Equal(got), "%s: want %v, got %v", c.in, c.want, got)
		}
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func writeLegacy(t *testing.T, v any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats.json")
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestImportLegacyHistoryAndOffset(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	path := writeLegacy(t, map[string]any{
		"history": []string{"2026-10-01T08:00:00.000001", "2026-10-08T08:00:00"},
		"offset":  12,
	})

	res, err := st.ImportLegacy(ctx, path)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 12, res.Offset)
	assert.False(t, res.SkippedHistory)
	assert.Equal(t, path+".bak", res.BackupPath)

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "original file should be renamed")
	_, err = os.Stat(path + ".bak")
	assert.NoError(t, err)

	got, err := st.AllTimestamps(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	off, err := st.Offset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, off)
}

func TestImportLegacyCountFormat(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	res, err := st.ImportLegacy(ctx, writeLegacy(t, map[string]any{"count": 87}))
	require.NoError(t, err)
	assert.Equal(t, 87, res.Offset)
	assert.Equal(t, 0, res.Imported)

	off, err := st.Offset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 87, off)
}

func TestImportLegacySkipsHistoryWhenLogNotEmpty(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.AppendEvent(ctx, time.Now()))

	res, err := st.ImportLegacy(ctx, writeLegacy(t, map[string]any{
		"history": []string{"2026-10-01T08:00:00"},
		"offset":  5,
	}))
	require.NoError(t, err)
	assert.True(t, res.SkippedHistory)
	assert.Equal(t, 0, res.Imported)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	off, err := st.Offset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, off, "offset is applied even when history is skipped")
}

func TestImportLegacyMissingFile(t *testing.T) {
	st := openTestStore(t)

	res, err := st.ImportLegacy(context.Background(), filepath.Join(t.TempDir(), "stats.json"))
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestImportLegacyBadTimestampWritesNothing(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	path := writeLegacy(t, map[string]any{
		"history": []string{"2026-10-01T08:00:00", "not a time"},
		"offset":  9,
	})
	_, err := st.ImportLegacy(ctx, path)
	require.Error(t, err)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	off, err := st.Offset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, off)
	_, err = os.Stat(path)
	assert.NoError(t, err, "file is kept when the import fails")
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	m := NewMemory([]time.Time{base}, 4)

	require.NoError(t, m.AppendEvent(ctx, base.Add(time.Hour)))
	got, err := m.AllTimestamps(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	m.SetAppendError(errors.New("disk full"))
	assert.Error(t, m.AppendEvent(ctx, base))
	n, _ := m.Count(ctx)
	assert.Equal(t, 2, n)

	m.SetReadError(errors.New("io"))
	_, err = m.AllTimestamps(ctx)
	assert.Error(t, err)
	_, err = m.Offset(ctx)
	assert.Error(t, err)

	assert.Error(t, m.SetOffset(ctx, -3))
}
