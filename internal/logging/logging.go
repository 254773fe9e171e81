// Package logging configures the standard logger and provides debug logging.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/stlalpha/v3toss/internal/config"
)

// DebugEnabled controls whether Debug() produces output.
// Set by Setup from the DEBUG=1 environment variable or the log config.
var DebugEnabled bool

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}

// Setup points the standard logger at stderr and, when cfg.File is set, a
// size-rotated log file. The returned closer releases the file.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	if cfg.Debug || os.Getenv("DEBUG") == "1" {
		DebugEnabled = true
	}
	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, err
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	rotating := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	return rotating, nil
}
