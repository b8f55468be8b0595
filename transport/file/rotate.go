package file

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// RotateConfig controls size-based rotation of the dead-letter file.
type RotateConfig struct {
	// FilePath is the active file name (required).
	FilePath string

	// MaxBytes triggers rotation when a write would grow the active file past
	// this size. Zero disables rotation.
	MaxBytes int64

	// MaxBackups is the number of rotated files (path.1 … path.N) to keep.
	// Zero keeps all of them.
	MaxBackups int
}

// RotatingFile is an io.WriteCloser that renames the active file to path.1
// (shifting older backups up by one) once MaxBytes would be exceeded.
// It is safe for concurrent use.
type RotatingFile struct {
	mu     sync.Mutex
	cfg    RotateConfig
	file   *os.File
	size   int64
	logger *slog.Logger
}

// NewRotatingFile opens (or creates) cfg.FilePath, creating its parent
// directory if needed. The caller must call Close when finished.
func NewRotatingFile(cfg RotateConfig, logger *slog.Logger) (*RotatingFile, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("transport/file: rotate: FilePath is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("transport/file: rotate: mkdir: %w", err)
	}

	rf := &RotatingFile{cfg: cfg, logger: logger}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

// Write implements io.Writer. A failed rotation is logged and the write goes
// to the current file so no record is lost.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, os.ErrClosed
	}
	if rf.cfg.MaxBytes > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.cfg.MaxBytes {
		if err := rf.rotate(); err != nil {
			rf.logger.Error("transport/file: rotate failed", "file", rf.cfg.FilePath, "error", err.Error())
			if rf.file == nil {
				return 0, err
			}
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// Close closes the active file. Further writes fail with os.ErrClosed.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}

func (rf *RotatingFile) open() error {
	f, err := os.OpenFile(rf.cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("transport/file: rotate: open %s: %w", rf.cfg.FilePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("transport/file: rotate: stat %s: %w", rf.cfg.FilePath, err)
	}
	rf.file = f
	rf.size = info.Size()
	return nil
}

// rotate shifts path.N-1 → path.N … path → path.1, drops backups beyond
// MaxBackups and reopens path empty.
func (rf *RotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		rf.logger.Warn("transport/file: rotate: close error", "error", err.Error())
	}
	rf.file = nil

	base := rf.cfg.FilePath
	highest := rf.cfg.MaxBackups
	if highest == 0 {
		highest = rf.highestBackup()
	} else {
		_ = os.Remove(backupName(base, highest))
	}
	for i := highest; i >= 1; i-- {
		_ = os.Rename(backupName(base, i), backupName(base, i+1))
	}
	if err := os.Rename(base, backupName(base, 1)); err != nil && !os.IsNotExist(err) {
		rf.logger.Warn("transport/file: rotate: rename error", "error", err.Error())
	}
	if rf.cfg.MaxBackups > 0 {
		_ = os.Remove(backupName(base, rf.cfg.MaxBackups+1))
	}

	rf.logger.Info("transport/file: rotated", "file", base)
	rf.size = 0
	return rf.open()
}

func (rf *RotatingFile) highestBackup() int {
	n := 0
	for {
		if _, err := os.Stat(backupName(rf.cfg.FilePath, n+1)); err != nil {
			return n
		}
		n++
	}
}

func backupName(base string, i int) string {
	return fmt.Sprintf("%s.%d", base, i)
}
