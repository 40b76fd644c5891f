// Package log holds the logging plumbing shared by the client and the CLI:
// a redacting slog handler, a size-rotated log file and the wire-capture file.
package log

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redacted replaces a sensitive value.
const Redacted = "[REDACTED]"

// sensitiveKeys are matched as case-insensitive substrings of attribute keys.
var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"cred",
	"rcfile",
}

// sensitiveElements have their bodies masked wherever request markup ends up
// in a string value.
// Each alternative closes on its own tag.
var sensitiveElements = regexp.MustCompile(`(?s)<password>.*?</password>|<rcfile>.*?</rcfile>`)

// RedactingHandler is a slog.Handler that hides credentials and uploaded rc
// files before handing records to the next handler.
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, MaskMarkup(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted)}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if isSensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		redacted := make([]any, len(group))
		for i, g := range group {
			redacted[i] = redactAttr(g)
		}
		return slog.Group(a.Key, redacted...)
	case slog.KindString:
		return slog.String(a.Key, MaskMarkup(a.Value.String()))
	}
	return a
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// MaskMarkup blanks the bodies of <password> and <rcfile> elements in s.
func MaskMarkup(s string) string {
	if !strings.Contains(s, "<password>") && !strings.Contains(s, "<rcfile>") {
		return s
	}
	return sensitiveElements.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1:strings.IndexByte(m, '>')]
		return "<" + name + ">" + Redacted + "</" + name + ">"
	})
}
