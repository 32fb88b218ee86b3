package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default logging configuration constants
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatColor = "color"
)

// Config describes where and how the service logs.
// When File is empty records go to stderr. Rotation parameters follow
// lumberjack semantics. Journal sends records to the systemd journal instead,
// when the journal socket is reachable.
type Config struct {
	Level      string // debug, info, warn, error (default info)
	Format     string // text, json, color (default text)
	File       string // log file path; empty means stderr
	MaxSizeMB  int    // megabytes before rotation (default 10)
	MaxBackups int    // number of backups to keep (default 3)
	MaxAgeDays int    // days to keep (default 7)
	Compress   bool   // Gzip rotated files
	Journal    bool   // prefer systemd journal when available
}

// ParseLevel maps a level name to slog.Level.
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
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// ValidFormat reports whether f names a supported output format.
func ValidFormat(f string) bool {
	switch f {
	case "", FormatText, FormatJSON, FormatColor:
		return true
	}
	return false
}

// Writer returns the destination for log records. The returned closer is nil
// when writing to stderr.
func (c Config) Writer() (io.Writer, io.Closer) {
	if c.File == "" {
		return os.Stderr, nil
	}
	w := &lj.Logger{
		Filename:   c.File,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
	return w, w
}

// New builds a slog.Logger from c. The closer, when non-nil, releases the log
// file and should be closed on graceful shutdown only.
func New(c Config) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, nil, err
	}
	if !ValidFormat(c.Format) {
		return nil, nil, fmt.Errorf("unknown log format %q", c.Format)
	}
	if c.Journal && journal.Enabled() {
		return slog.New(NewJournalHandler(level)), nil, nil
	}
	w, closer := c.Writer()
	return slog.New(newHandler(w, c.Format, level)), closer, nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatJSON:
		return slog.NewJSONHandler(w, opts)
	case FormatColor:
		return NewColorTextHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
