package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation for the monitor's own log file.
const (
	DefaultFile       = "portwatch.log"
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 5  // number of backup files
	DefaultMaxAgeDays = 0  // keep regardless of age
)

// LevelCritical sits above slog.LevelError and marks conditions an operator
// must act on, such as a target that exhausted its restart budget.
const LevelCritical = slog.Level(12)

// Config describes where the monitor writes its own log.
// Output always goes to the console; File adds a rotated log file.
type Config struct {
	Level      string // debug, info, warn, error, critical
	Format     string // text or json, applies to the file sink
	NoColor    bool   // disable ANSI colours on the console
	File       string // log file path; empty disables file output
	MaxSizeMB  int    // megabytes before rotation
	MaxBackups int    // number of backups to keep
	MaxAgeDays int    // days to keep, 0 keeps all
	Compress   bool   // gzip rotated files
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "critical", "crit":
		return LevelCritical, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// LevelName renders slog levels with CRITICAL in place of ERROR+4.
func LevelName(l slog.Level) string {
	if l >= LevelCritical {
		return "CRITICAL"
	}
	return l.String()
}

// replaceLevel is a slog ReplaceAttr that applies LevelName.
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if l, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(LevelName(l))
		}
	}
	return a
}

// New builds the monitor logger writing to console and, when configured, to a
// lumberjack-rotated file. The returned closer releases the file.
func New(cfg Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if console == nil {
		console = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevel}
	handlers := []slog.Handler{NewColorTextHandler(console, opts, !cfg.NoColor)}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		fw := &lj.Logger{
			Filename:   cfg.File,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		closer = fw
		switch strings.ToLower(cfg.Format) {
		case "", "text":
			handlers = append(handlers, slog.NewTextHandler(fw, opts))
		case "json":
			handlers = append(handlers, slog.NewJSONHandler(fw, opts))
		default:
			return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
		}
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0]), closer, nil
	}
	return slog.New(fanout(handlers)), closer, nil
}

// Critical logs at LevelCritical.
func Critical(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelCritical, msg, args...)
}

// FileConfig describes where a launched target's stdout/stderr go.
// If StdoutPath/StderrPath are empty and Dir is set, files are
// Dir/<name>.stdout.log and Dir/<name>.stderr.log.
type FileConfig struct {
	Dir        string `json:"dir,omitempty"`
	StdoutPath string `json:"stdout,omitempty"`
	StderrPath string `json:"stderr,omitempty"`
}

// Enabled reports whether any output file is configured.
func (c FileConfig) Enabled() bool {
	return c.Dir != "" || c.StdoutPath != "" || c.StderrPath != ""
}

// Paths resolves the stdout and stderr file paths for name. Empty means discard.
func (c FileConfig) Paths(name string) (stdout, stderr string) {
	stdout, stderr = c.StdoutPath, c.StderrPath
	if stdout == "" && c.Dir != "" {
		stdout = filepath.Join(c.Dir, fmt.Sprintf("%s.stdout.log", name))
	}
	if stderr == "" && c.Dir != "" {
		stderr = filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name))
	}
	return stdout, stderr
}

// Merge overlays non-empty fields of o on c.
func (c FileConfig) Merge(o FileConfig) FileConfig {
	if o.Dir != "" {
		c.Dir = o.Dir
	}
	if o.StdoutPath != "" {
		c.StdoutPath = o.StdoutPath
	}
	if o.StderrPath != "" {
		c.StderrPath = o.StderrPath
	}
	return c
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
