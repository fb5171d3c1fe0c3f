package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tracefan/tracefan"
)

// FileOptions configures a file handler beyond the Base options.
type FileOptions struct {
	Options

	// Path of the active log file. The parent directory is created if
	// missing.
	Path string

	// Rotation selects calendar-based rotation: "", "daily", "weekly"
	// or "monthly".
	Rotation string

	// MaxSize in bytes triggers size-based rotation. Zero disables it.
	MaxSize int64

	// MaxCount bounds how many rotated files are retained; the oldest
	// beyond it are deleted. Zero keeps everything.
	MaxCount int

	// Compress gzips rotated files.
	Compress bool

	// RotationCheckInterval bounds how often rotation triggers are
	// evaluated, to cap stat() overhead. Zero checks on every write.
	RotationCheckInterval time.Duration
}

// File writes records to a file with rotation, optional compression
// and retention. The file handle is exclusively owned by the handler
// and guarded by a mutex around open, rotate and write. Every flush is
// synced to disk so a crash does not lose acknowledged records.
type File struct {
	*Base

	mu        sync.Mutex
	file      *os.File
	size      int64
	lastCheck time.Time

	path                  string
	rotation              string
	maxSize               int64
	maxCount              int
	compress              bool
	rotationCheckInterval time.Duration
}

// NewFile builds a file handler and opens the active file.
func NewFile(opts FileOptions) (*File, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: file handler requires a path", tracefan.ErrConfiguration)
	}
	switch opts.Rotation {
	case "", "daily", "weekly", "monthly":
	default:
		return nil, fmt.Errorf("%w: invalid rotation %q, must be daily, weekly or monthly",
			tracefan.ErrConfiguration, opts.Rotation)
	}
	if opts.Name == "" {
		opts.Name = "file"
	}

	f := &File{
		path:                  opts.Path,
		rotation:              opts.Rotation,
		maxSize:               opts.MaxSize,
		maxCount:              opts.MaxCount,
		compress:              opts.Compress,
		rotationCheckInterval: opts.RotationCheckInterval,
	}
	f.Base = NewBase(f, opts.Options)

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", opts.Path, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.openFile(); err != nil {
		return nil, err
	}
	return f, nil
}

// openFile opens the active file for appending. Caller holds f.mu.
func (f *File) openFile() error {
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", f.path, err)
	}
	f.file = file
	f.size = 0
	if fi, err := file.Stat(); err == nil {
		f.size = fi.Size()
	}
	return nil
}

// EmitSync implements Emitter.
func (f *File) EmitSync(formatted string, record *tracefan.Record) error {
	return f.write([]string{formatted})
}

// EmitBatch implements Emitter.
func (f *File) EmitBatch(formatted []string, records []*tracefan.Record) error {
	return f.write(formatted)
}

// write appends lines to the active file and syncs to disk. Rotation
// is evaluated first; a rotation failure is reported internally and
// writing continues on the existing handle.
func (f *File) write(lines []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.shouldRotate() {
		if err := f.rotate(); err != nil {
			f.diag.Warn("handler '%s': rotation failed, continuing on current file: %v", f.Name(), err)
		}
	}

	if f.file == nil {
		if err := f.openFile(); err != nil {
			return err
		}
	}

	for _, line := range lines {
		n, err := f.file.WriteString(line + "\n")
		f.size += int64(n)
		if err != nil {
			return fmt.Errorf("failed to write log line: %w", err)
		}
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	return nil
}

// shouldRotate evaluates the rotation triggers, at most once per
// rotationCheckInterval. Caller holds f.mu.
func (f *File) shouldRotate() bool {
	now := time.Now()
	if f.rotationCheckInterval > 0 && now.Sub(f.lastCheck) < f.rotationCheckInterval {
		return false
	}
	f.lastCheck = now

	if f.maxSize > 0 && f.size >= f.maxSize {
		return true
	}

	if f.rotation == "" {
		return false
	}
	fi, err := os.Stat(f.path)
	if err != nil {
		return false
	}
	return !sameCalendarBucket(fi.ModTime(), now, f.rotation)
}

// sameCalendarBucket reports whether two instants fall into the same
// daily/weekly/monthly bucket in local time.
func sameCalendarBucket(a, b time.Time, rotation string) bool {
	switch rotation {
	case "daily":
		return a.Year() == b.Year() && a.YearDay() == b.YearDay()
	case "weekly":
		ay, aw := a.ISOWeek()
		by, bw := b.ISOWeek()
		return ay == by && aw == bw
	case "monthly":
		return a.Year() == b.Year() && a.Month() == b.Month()
	}
	return true
}

// rotate closes the active file, renames it to a timestamped name,
// optionally compresses it, enforces retention and reopens a fresh
// file at the original path. Caller holds f.mu.
func (f *File) rotate() error {
	if f.file != nil {
		if err := f.file.Close(); err != nil {
			return fmt.Errorf("failed to close log file before rotation: %w", err)
		}
		f.file = nil
	}

	rotated := rotatedName(f.path, time.Now())
	if err := os.Rename(f.path, rotated); err != nil {
		// Reopen the original so writing can continue.
		if openErr := f.openFile(); openErr != nil {
			return fmt.Errorf("rename failed (%v) and reopen failed: %w", err, openErr)
		}
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	if f.compress {
		if err := compressFile(rotated); err != nil {
			f.diag.Warn("handler '%s': compression of %s failed, keeping uncompressed: %v",
				f.Name(), rotated, err)
		}
	}

	if err := f.cleanupRotated(); err != nil {
		f.diag.Warn("handler '%s': retention cleanup failed: %v", f.Name(), err)
	}

	return f.openFile()
}

// rotatedName derives the timestamped name a rotated file is given:
// {stem}_{YYYYMMDD_HHMMSS}{suffix}.
func rotatedName(path string, now time.Time) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	suffix := filepath.Ext(base)
	stem := base[:len(base)-len(suffix)]
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, now.Format("20060102_150405"), suffix))
}

// cleanupRotated deletes the oldest rotated files beyond maxCount,
// ordered by modification time. Caller holds f.mu.
func (f *File) cleanupRotated() error {
	if f.maxCount <= 0 {
		return nil
	}
	base := filepath.Base(f.path)
	suffix := filepath.Ext(base)
	stem := base[:len(base)-len(suffix)]

	pattern := filepath.Join(filepath.Dir(f.path), stem+"_*"+suffix+"*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	type rotatedFile struct {
		path    string
		modTime time.Time
	}
	files := make([]rotatedFile, 0, len(matches))
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		files = append(files, rotatedFile{path: m, modTime: fi.ModTime()})
	}

	for len(files) > f.maxCount {
		oldest := 0
		for i := 1; i < len(files); i++ {
			if files[i].modTime.Before(files[oldest].modTime) {
				oldest = i
			}
		}
		if err := os.Remove(files[oldest].path); err != nil {
			f.diag.Warn("handler '%s': failed to delete old log file %s: %v",
				f.Name(), files[oldest].path, err)
		}
		files = append(files[:oldest], files[oldest+1:]...)
	}
	return nil
}

// Stop drains the worker, then closes the file handle.
func (f *File) Stop(ctx context.Context) error {
	err := f.Base.Stop(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file != nil {
		if closeErr := f.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		f.file = nil
	}
	return err
}
