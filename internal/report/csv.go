package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// ErrLocked means another run holds the report file.
var ErrLocked = errors.New("report file is locked by another run")

// CSV appends rows to a CSV file. The header is written once, when the file is empty. A
// <path>.lock file keeps concurrent runs from interleaving into the same report.
type CSV struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
	lock   *flock.Flock
	rows   int
	logger *zap.Logger
}

func NewCSV(path string, logger *zap.Logger) (*CSV, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return nil, errors.New("report path is empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create report dir: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock report: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open report: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("stat report: %w", err)
	}

	c := &CSV{
		path:   path,
		file:   file,
		writer: csv.NewWriter(file),
		lock:   lock,
		logger: logger.With(zap.String("report", path)),
	}

	if stat.Size() == 0 {
		if err := c.writer.Write(Columns); err != nil {
			c.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		c.writer.Flush()
	}

	return c, nil
}

func (c *CSV) Path() string { return c.path }

// Append writes and flushes one row so partial runs leave a valid file.
func (c *CSV) Append(row Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return errors.New("report is closed")
	}

	if err := c.writer.Write(row.Record()); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("flush row: %w", err)
	}

	c.rows++
	c.logger.Debug("row appended", zap.String("posting_id", row.ID), zap.Bool("is_candidate", row.IsCandidate))
	return nil
}

func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}

	c.writer.Flush()
	err := errors.Join(c.writer.Error(), c.file.Close(), c.lock.Unlock())
	c.file = nil

	c.logger.Info("report closed", zap.Int("rows", c.rows))
	return err
}
