package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, expected: true},
		{name: "context cancelled", err: context.Canceled, expected: false},
		{name: "EOF", err: io.EOF, expected: true},
		{name: "ErrUnexpectedEOF", err: io.ErrUnexpectedEOF, expected: true},
		{
			name:     "connection refused",
			err:      errors.New("transport: dial 10.0.0.1:9390: dial tcp 10.0.0.1:9390: connect: connection refused"),
			expected: true,
		},
		{
			name:     "net i/o timeout",
			err:      errors.New("read tcp 127.0.0.1:9390->127.0.0.1:54321: i/o timeout"),
			expected: true,
		},
		{
			name:     "unknown authority",
			err:      fmt.Errorf("transport: dial: %w", x509.UnknownAuthorityError{}),
			expected: false,
		},
		{
			name:     "handshake alert",
			err:      fmt.Errorf("transport: dial: %w", tls.AlertError(42)),
			expected: false,
		},
		{name: "generic error", err: errors.New("something went wrong"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryableError(tt.err))
		})
	}
}

func TestCalculateRetryBackoff(t *testing.T) {
	policy := &RetryPolicy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{100, time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, calculateRetryBackoff(tt.attempt, policy))
		})
	}
}

func TestCalculateRetryBackoff_Defaults(t *testing.T) {
	assert.Equal(t, time.Second, calculateRetryBackoff(3, nil))

	zero := &RetryPolicy{}
	assert.Equal(t, 100*time.Millisecond, calculateRetryBackoff(1, zero))
	assert.Equal(t, 200*time.Millisecond, calculateRetryBackoff(2, zero), "multiplier defaults to 2")
	assert.Equal(t, 5*time.Second, calculateRetryBackoff(60, zero), "cap defaults to 5s")
}
