package logger

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

const syslogIdentifier = "selfheal"

// JournalHandler is a slog.Handler that sends records to the systemd journal.
type JournalHandler struct {
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func NewJournalHandler(level slog.Level) *JournalHandler {
	return &JournalHandler{level: level}
}

func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{"SYSLOG_IDENTIFIER": syslogIdentifier}
	for _, a := range h.attrs {
		addAttrToFields(fields, a, h.groups)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttrToFields(fields, a, h.groups)
		return true
	})
	return journal.Send(r.Message, priority(r.Level), fields)
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JournalHandler{
		level:  h.level,
		attrs:  append(slices.Clone(h.attrs), attrs...),
		groups: h.groups,
	}
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: append(slices.Clone(h.groups), name),
	}
}

func priority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// fieldKey turns an attribute key into a journal field name: upper case,
// anything outside [A-Z0-9_] replaced by '_'.
func fieldKey(groups []string, key string) string {
	if len(groups) > 0 {
		key = strings.Join(groups, "_") + "_" + key
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}

func addAttrToFields(fields map[string]string, attr slog.Attr, groups []string) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	v := attr.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		sub := append(slices.Clone(groups), attr.Key)
		for _, a := range v.Group() {
			addAttrToFields(fields, a, sub)
		}
	case slog.KindTime:
		fields[fieldKey(groups, attr.Key)] = v.Time().Format(time.RFC3339Nano)
	case slog.KindInt64:
		fields[fieldKey(groups, attr.Key)] = strconv.FormatInt(v.Int64(), 10)
	default:
		fields[fieldKey(groups, attr.Key)] = v.String()
	}
}
