package persist

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAllRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriter_WritesHeaderOnceThenAppends(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "pool-snapshots", []string{"a", "b"})
	fixed := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	require.NoError(t, w.Write([]string{"1", "2"}))
	require.NoError(t, w.Write([]string{"3", "4"}))

	path := filepath.Join(dir, "pool-snapshots-2026-07-31.csv")
	rows := readAllRecords(t, path)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}, {"3", "4"}}, rows)
}

func TestWriter_RotatesOnDayBoundary(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "executions", []string{"h"})
	day1 := time.Date(2026, 7, 31, 23, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return day1 }
	require.NoError(t, w.Write([]string{"r1"}))

	day2 := time.Date(2026, 8, 1, 0, 1, 0, 0, time.UTC)
	w.now = func() time.Time { return day2 }
	require.NoError(t, w.Write([]string{"r2"}))

	rows1 := readAllRecords(t, filepath.Join(dir, "executions-2026-07-31.csv"))
	assert.Equal(t, [][]string{{"h"}, {"r1"}}, rows1)

	rows2 := readAllRecords(t, filepath.Join(dir, "executions-2026-08-01.csv"))
	assert.Equal(t, [][]string{{"h"}, {"r2"}}, rows2)
}

func TestWriter_ResumingAnExistingFileDoesNotDuplicateHeader(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	w1 := NewWriter(dir, "opportunities", []string{"h"})
	w1.now = func() time.Time { return fixed }
	require.NoError(t, w1.Write([]string{"r1"}))
	require.NoError(t, w1.Close())

	w2 := NewWriter(dir, "opportunities", []string{"h"})
	w2.now = func() time.Time { return fixed }
	require.NoError(t, w2.Write([]string{"r2"}))

	rows := readAllRecords(t, filepath.Join(dir, "opportunities-2026-07-31.csv"))
	assert.Equal(t, [][]string{{"h"}, {"r1"}, {"r2"}}, rows)
}
