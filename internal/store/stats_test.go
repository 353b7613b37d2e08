package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeStatsNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	got, err := MergeStats(path, 2, 3, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", got.Date)
	assert.Equal(t, 5, got.Total)
	assert.Equal(t, 2, got.Urgent)
	assert.Equal(t, 3, got.Normal)
	assert.Equal(t, now.Format(time.RFC3339), got.LastUpdate)

	assert.Equal(t, got, LoadStats(path))
}

func TestMergeStatsSameDayAccumulates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	_, err := MergeStats(path, 4, 6, now)
	require.NoError(t, err)

	got, err := MergeStats(path, 1, 2, now.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 13, got.Total)
	assert.Equal(t, 5, got.Urgent)
	assert.Equal(t, 8, got.Normal)
}

func TestMergeStatsDayRollover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	yesterday := time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	_, err := MergeStats(path, 20, 30, yesterday)
	require.NoError(t, err)

	got, err := MergeStats(path, 2, 3, today)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", got.Date)
	assert.Equal(t, 5, got.Total, "new day starts from zero")
	assert.Equal(t, 2, got.Urgent)
	assert.Equal(t, 3, got.Normal)
}

func TestLoadStatsUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	assert.Equal(t, Stats{}, LoadStats(path))

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	assert.Equal(t, Stats{}, LoadStats(path))
}
