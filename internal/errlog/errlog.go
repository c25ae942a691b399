// Package errlog records file-level scan failures, one line per failure.
package errlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"dupdup/internal/scanerr"
)

// DefaultName returns the timestamped log file name used when none is given.
func DefaultName(now time.Time) string {
	return "error-" + now.Format("2006-01-02-15-04-05") + ".log"
}

// Log is an append-only error log. It is not safe for concurrent use; the
// scan records from a single goroutine.
type Log struct {
	fs     afero.Fs
	path   string
	file   afero.File
	logger *slog.Logger
	count  int
}

// Create creates (or truncates) the log file at path.
func Create(fsys afero.Fs, path string) (*Log, error) {
	file, err := fsys.Create(path)
	if err != nil {
		return nil, scanerr.New(scanerr.CodeErrorLog, path, err)
	}
	return &Log{
		fs:     fsys,
		path:   path,
		file:   file,
		logger: slog.New(slog.NewTextHandler(file, nil)),
	}, nil
}

// Record appends err to the log.
func (l *Log) Record(err error) {
	if err == nil {
		return
	}
	l.count++

	attrs := []slog.Attr{}
	if code := scanerr.CodeOf(err); code != "" {
		attrs = append(attrs, slog.String("code", string(code)))
	}
	if path := scanerr.PathOf(err); path != "" {
		attrs = append(attrs, slog.String("path", path))
	}
	l.logger.LogAttrs(context.Background(), slog.LevelError, err.Error(), attrs...)
}

func (l *Log) Path() string {
	return l.path
}

func (l *Log) Count() int {
	return l.count
}

func (l *Log) HadErrors() bool {
	return l.count > 0
}

// Close closes the log file and deletes it when nothing was recorded. It
// reports whether the file was kept.
func (l *Log) Close() (bool, error) {
	if err := l.file.Close(); err != nil {
		return true, err
	}
	if l.count > 0 {
		return true, nil
	}
	if err := l.fs.Remove(l.path); err != nil {
		return true, err
	}
	return false, nil
}
