package client

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityLogger_LogEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sl := NewSecurityLogger(logger, "admin", "manager:9390", "sess-1")
	sl.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600)) }

	sl.LogAuthentication(SubtypeAuthFailure, OutcomeDenied, SeverityWarning, map[string]any{"code": 400})

	var rec struct {
		Level string        `json:"level"`
		Msg   string        `json:"msg"`
		Event SecurityEvent `json:"event"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec.Level)
	assert.Equal(t, "SecurityEvent", rec.Msg)
	assert.Equal(t, "2024-05-01T10:00:00Z", rec.Event.Timestamp)
	assert.Equal(t, EventAuthentication, rec.Event.EventType)
	assert.Equal(t, SubtypeAuthFailure, rec.Event.Subtype)
	assert.Equal(t, "admin", rec.Event.User)
	assert.Equal(t, "go-omp", rec.Event.Source)
	assert.Equal(t, "manager:9390", rec.Event.Target)
	assert.Equal(t, "sess-1", rec.Event.CorrelationID)
	assert.Equal(t, OutcomeDenied, rec.Event.Outcome)
	assert.EqualValues(t, 400, rec.Event.Details["code"])
}

func TestSecurityLogger_Severity(t *testing.T) {
	var buf bytes.Buffer
	sl := NewSecurityLogger(slog.New(slog.NewTextHandler(&buf, nil)), "", "m:1", "s")

	sl.LogConnection(SubtypeConnFailed, OutcomeFailure, SeverityError, nil)
	assert.Contains(t, buf.String(), "level=ERROR")

	buf.Reset()
	sl.LogSession(SubtypeSessionOpened, OutcomeSuccess, SeverityInfo, nil)
	assert.Contains(t, buf.String(), "level=INFO")
}

func TestSecurityLogger_NilSafe(t *testing.T) {
	var sl *SecurityLogger
	assert.NotPanics(t, func() {
		sl.LogConnection(SubtypeConnEstablished, OutcomeSuccess, SeverityInfo, nil)
	})
	assert.NotPanics(t, func() {
		NewSecurityLogger(nil, "", "", "").LogSession(SubtypeSessionClosed, OutcomeSuccess, SeverityInfo, nil)
	})
}

func TestSecurityEvent_String(t *testing.T) {
	e := &SecurityEvent{EventType: EventConnection, Subtype: SubtypeConnRetry, Source: "go-omp"}
	s := e.String()
	assert.Contains(t, s, `"event_type":"connection"`)
	assert.Contains(t, s, `"subtype":"retry"`)
	assert.NotContains(t, s, `"user"`, "empty user omitted")
}
