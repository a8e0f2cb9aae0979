// Package persist implements spec §6's persistent observability surface:
// append-only, per-day CSV logs for pool snapshots, detected opportunities,
// mempool decoder/simulation output, accuracy measurements, and execution
// results. Replaces the reference repo's `internal/db` GORM/MySQL recorder
// (dropped — see DESIGN.md): spec §6 calls for flat per-day files external
// tooling tails, not a relational store, so `encoding/csv` is the correct
// fit rather than a stdlib substitute for a library concern.
package persist

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Writer is one log kind's append-only, day-rotated CSV file (spec §6:
// "file name <kind>-<YYYY-MM-DD>.csv, rotated by wall-clock day boundary
// on first write after midnight UTC, header row written once per file").
type Writer struct {
	mu     sync.Mutex
	dir    string
	kind   string
	header []string
	now    func() time.Time

	day  string
	file *os.File
	w    *csv.Writer
}

// NewWriter builds a Writer for one log kind under dir. The file isn't
// opened until the first Write call.
func NewWriter(dir, kind string, header []string) *Writer {
	return &Writer{dir: dir, kind: kind, header: header, now: time.Now}
}

// Write appends one record, rotating the underlying file if the wall-clock
// day has advanced, and flushes immediately — durability of "one flush
// behind" is acceptable per spec §7 ("no interactive error surface").
func (w *Writer) Write(fields []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := w.now().UTC().Format("2006-01-02")
	if day != w.day {
		if err := w.rotate(day); err != nil {
			return fmt.Errorf("persist: rotate %s log: %w", w.kind, err)
		}
	}

	if err := w.w.Write(fields); err != nil {
		return fmt.Errorf("persist: write %s record: %w", w.kind, err)
	}
	w.w.Flush()
	return w.w.Error()
}

func (w *Writer) rotate(day string) error {
	if w.file != nil {
		w.file.Close()
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.csv", w.kind, day))
	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.w = csv.NewWriter(f)
	w.day = day

	if needsHeader && len(w.header) > 0 {
		if err := w.w.Write(w.header); err != nil {
			return err
		}
		w.w.Flush()
		if err := w.w.Error(); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the currently open file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
