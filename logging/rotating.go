package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	logFilePrefix = "trader-"
	logFileSuffix = ".log"

	// DefaultMaxFileSize is the size at which a weekly log file is split.
	DefaultMaxFileSize int64 = 100 * 1024 * 1024
)

var numberedLogFile = regexp.MustCompile(`^trader-\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingWriter writes to one log file per ISO week, starting a numbered
// file when the current one reaches maxFileSize. Files older than the
// retention period are removed by a daily background sweep.
type RotatingWriter struct {
	dir         string
	retention   time.Duration
	maxFileSize int64

	mu    sync.Mutex
	file  *os.File
	week  string
	size  int64
	clock func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotatingWriter opens the current week's file in dir and starts the
// retention sweep. Close stops the sweep and closes the file.
func NewRotatingWriter(dir string, retentionWeeks int, maxFileSize int64) (*RotatingWriter, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	if retentionWeeks <= 0 {
		retentionWeeks = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &RotatingWriter{
		dir:         dir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		clock:       time.Now,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	w.mu.Lock()
	err := w.openLocked(weekKey(w.clock()), false)
	w.mu.Unlock()
	if err != nil {
		cancel()
		return nil, err
	}

	go w.sweepLoop(ctx)
	return w, nil
}

// weekKey returns the ISO week as YYYY-Www.
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// openLocked switches to the file for week. With full set, the current
// file is at its size limit and a new numbered file is started.
func (w *RotatingWriter) openLocked(week string, full bool) error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
		w.file = nil
	}

	name := w.pickFile(week, full)
	path := filepath.Join(w.dir, name)
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	w.file = file
	w.week = week
	w.size = 0
	if info, err := file.Stat(); err == nil {
		w.size = info.Size()
	}
	return nil
}

// pickFile returns the base weekly file while it has room, otherwise the
// highest numbered file with room, otherwise the next number.
func (w *RotatingWriter) pickFile(week string, full bool) string {
	base := logFilePrefix + week + logFileSuffix
	if !full {
		info, err := os.Stat(filepath.Join(w.dir, base))
		if err != nil || w.maxFileSize <= 0 || info.Size() < w.maxFileSize {
			return base
		}
	}

	highest, lastSize := 0, int64(0)
	matches, _ := filepath.Glob(filepath.Join(w.dir, logFilePrefix+week+"_??"+logFileSuffix))
	for _, match := range matches {
		m := numberedLogFile.FindStringSubmatch(filepath.Base(match))
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		if n > highest {
			highest = n
			lastSize = 0
			if info, err := os.Stat(match); err == nil {
				lastSize = info.Size()
			}
		}
	}

	if highest > 0 && !full && lastSize < w.maxFileSize {
		return fmt.Sprintf("%s%s_%02d%s", logFilePrefix, week, highest, logFileSuffix)
	}
	return fmt.Sprintf("%s%s_%02d%s", logFilePrefix, week, highest+1, logFileSuffix)
}

// Write implements io.Writer.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	week := weekKey(w.clock())
	switch {
	case week != w.week:
		if err := w.openLocked(week, false); err != nil {
			return 0, err
		}
	case w.maxFileSize > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxFileSize:
		if err := w.openLocked(week, true); err != nil {
			return 0, err
		}
	}

	if w.file == nil {
		return 0, fmt.Errorf("no log file available")
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// CurrentFile returns the path of the file being written.
func (w *RotatingWriter) CurrentFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return ""
	}
	return w.file.Name()
}

func (w *RotatingWriter) sweepLoop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.removeExpired(); err != nil {
				fmt.Fprintf(os.Stderr, "log retention sweep failed: %v\n", err)
			}
		}
	}
}

// removeExpired deletes log files last modified before the retention cutoff.
func (w *RotatingWriter) removeExpired() (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := w.clock().Add(-w.retention)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Close stops the retention sweep and closes the current file.
func (w *RotatingWriter) Close() error {
	w.cancel()
	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
