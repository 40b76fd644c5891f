package transport

import (
	"context"
	"errors"
	"syscall"
)

// Conn is the byte stream the protocol runs over.
//
// Receive returns the number of bytes placed in p. A zero count with a nil
// error means the peer shut the stream down in an orderly way. Errors matching
// ErrInterrupted or ErrRenegotiate ask the caller to retry the same receive.
type Conn interface {
	Send(ctx context.Context, p []byte) error
	Receive(ctx context.Context, p []byte) (int, error)
}

var (
	// ErrInterrupted reports a receive that was interrupted before any data
	// arrived. The receive should simply be repeated.
	ErrInterrupted = errors.New("transport: receive interrupted")

	// ErrRenegotiate reports that the peer asked for a session renegotiation
	// in the middle of a receive. The receive should be repeated.
	ErrRenegotiate = errors.New("transport: renegotiation requested")
)

// isRetryable reports whether a receive error is a transient signal rather
// than a failure of the stream.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrInterrupted) ||
		errors.Is(err, ErrRenegotiate) ||
		errors.Is(err, syscall.EINTR)
}
