// Package logging wraps zerolog with the console+rotating-file setup the
// rest of the binary expects, and a per-component child-logger convention.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors the LoggingConfig section of the process configuration.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	Path       string // directory for log files; empty disables file logging
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New builds a root zerolog.Logger writing to stdout and, if Path is set, a
// rotating file under it. Callers derive per-component loggers with
// logger.With().Str("component", name).Logger().
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)

	output := consoleOutput(cfg.Format)
	if cfg.Path != "" {
		if rotated, ok := fileOutput(cfg); ok {
			output = io.MultiWriter(output, rotated)
		}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func consoleOutput(format string) io.Writer {
	if format == "json" {
		return os.Stdout
	}
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
}

func fileOutput(cfg Config) (io.Writer, bool) {
	if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
		return nil, false
	}
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}
	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 30
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Path, "acquisitiond.log"),
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   cfg.Compress,
	}, true
}

func parseLevel(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
