package omp

import (
	"errors"
	"fmt"
)

// StatusServiceUnavailable is the status a manager returns while it is still
// starting up.
const StatusServiceUnavailable = 503

var (
	// ErrProtocolViolation is returned for a well-formed response that lacks
	// the status attribute or an expected payload element.
	ErrProtocolViolation = errors.New("omp: protocol violation")

	// ErrTaskNotFound is returned by the pollers when the task is missing from
	// a status listing.
	ErrTaskNotFound = errors.New("omp: task not found")

	// ErrTaskFailed is matched by a TaskStateError.
	ErrTaskFailed = errors.New("omp: task failed")

	// ErrAuthenticationFailed wraps the RemoteError of a rejected
	// authenticate request.
	ErrAuthenticationFailed = errors.New("omp: authentication failed")

	// ErrConnectionBroken is returned by every request after an exchange
	// failed between sending the request and reading its response. The
	// connection can no longer pair requests with responses and must be
	// replaced.
	ErrConnectionBroken = errors.New("omp: connection broken")
)

// RemoteError is a response whose status code does not start with 2.
type RemoteError struct {
	// Op is the command that failed, e.g. "create_task".
	Op string

	// Code is the numeric status code.
	Code int

	// Text is the manager's status_text, if any.
	Text string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("omp: %s failed: %d %s", e.Op, e.Code, e.Text)
	}
	return fmt.Sprintf("omp: %s failed: status %d", e.Op, e.Code)
}

// IsServiceUnavailable reports whether the manager is not ready yet.
func (e *RemoteError) IsServiceUnavailable() bool {
	return e.Code == StatusServiceUnavailable
}

// IsServiceUnavailable reports whether err carries status 503.
func IsServiceUnavailable(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.IsServiceUnavailable()
}

// StatusCode extracts the status code from a RemoteError in err's chain.
func StatusCode(err error) (int, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return 0, false
}

// TaskStateError reports that a task reached a failure run-state while being
// polled.
type TaskStateError struct {
	TaskID string
	State  RunState
}

// Error implements the error interface.
func (e *TaskStateError) Error() string {
	return fmt.Sprintf("omp: task %s ended in state %q", e.TaskID, e.State)
}

// Is makes errors.Is(err, ErrTaskFailed) match.
func (e *TaskStateError) Is(target error) bool {
	return target == ErrTaskFailed
}

func protocolViolation(op, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrProtocolViolation, op, fmt.Sprintf(format, args...))
}
