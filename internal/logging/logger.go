// Package logging writes docfeed's diagnostic log to a dated file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// Logger is the global logger instance. Nil until Init runs, in which
	// case every helper below is a no-op.
	Logger *log.Logger

	// logFile is the file handle for the log file
	logFile *os.File
)

// Init opens a dated log file under dir and installs the global logger.
// The TUI owns the terminal, so nothing is ever written to stdout/stderr.
func Init(dir string, level string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFileName := fmt.Sprintf("docfeed-%s.log", time.Now().Format("2006-01-02"))
	logPath := filepath.Join(dir, logFileName)

	var err error
	logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}

	Logger = log.NewWithOptions(logFile, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           lvl,
	})

	Logger.Info("docfeed started", "version", Version)
	return nil
}

// Version is reported in the startup line. Set by the main package.
var Version = "dev"

// Close closes the log file
func Close() {
	if Logger != nil {
		Logger.Info("docfeed shutting down")
	}
	if logFile != nil {
		logFile.Close()
	}
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// WithPrefix returns a logger with a prefix. When logging is not initialized
// the returned logger discards everything, so callers never need a nil check.
func WithPrefix(prefix string) *log.Logger {
	if Logger != nil {
		return Logger.WithPrefix(prefix)
	}
	return discard.WithPrefix(prefix)
}

var discard = log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
