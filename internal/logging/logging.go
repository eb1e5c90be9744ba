package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes to stdout and to a size-rotated file under the log dir.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// New creates the log dir if needed and returns a Logger at level.
func New(dir, level string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs folder failed: %w", err)
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "expiry-notifier.log"),
		MaxSize:    20, // megabytes
		MaxBackups: 10,
		MaxAge:     30, // days
		Compress:   true,
	}

	l := logrus.New()
	l.SetLevel(lvl)
	l.SetOutput(io.MultiWriter(os.Stdout, file))
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return &Logger{Logger: l, file: file}, nil
}

// NewNop returns a Logger that discards everything. Used by tests.
func NewNop() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

// Close flushes and closes the log file.
func (l *Logger) Close() {
	if l.file == nil {
		return
	}
	_ = l.file.Close()
}
