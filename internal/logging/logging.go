// Package logging builds the shared logger from config.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	maxLogSize = 10 * 1024 * 1024
	maxBackups = 3
)

// New constructs a logrus logger writing to w. Unknown levels fall back
// to info rather than failing startup.
func New(w io.Writer, level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// NewWithFile builds a logger that tees to stderr and a rotating log
// file. The file is rotated size-based before opening, keeping a fixed
// number of numbered backups.
func NewWithFile(path, level, format string) (*logrus.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := rotateIfNeeded(path); err != nil {
		return nil, nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	logger := New(io.MultiWriter(os.Stderr, file), level, format)
	return logger, file.Close, nil
}

// rotateIfNeeded shifts path to path.1 (and so on up to maxBackups)
// once it crosses the size ceiling.
func rotateIfNeeded(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < maxLogSize {
		return nil
	}

	for i := maxBackups - 1; i >= 1; i-- {
		old := fmt.Sprintf("%s.%d", path, i)
		if _, serr := os.Stat(old); serr == nil {
			os.Rename(old, fmt.Sprintf("%s.%d", path, i+1))
		}
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	return nil
}
