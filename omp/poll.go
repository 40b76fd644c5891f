package omp

import (
	"context"
	"fmt"
	"strings"

	"github.com/smnsjas/go-omp/entity"
)

// RunState is the run-state text a manager reports for a task.
type RunState string

// Run-states reported in status responses.
const (
	StateRequested     RunState = "Requested"
	StateRunning       RunState = "Running"
	StateDone          RunState = "Done"
	StateStopped       RunState = "Stopped"
	StateInternalError RunState = "Internal Error"
)

// outcome is what a poller decides for one observed run-state.
type outcome int

const (
	keepPolling outcome = iota
	reachedGoal
	reachedFailure
)

type decideFunc func(RunState) outcome

// WaitForTaskStart polls until the task is Running or Done. Internal Error
// returns a *TaskStateError.
func (c *Client) WaitForTaskStart(ctx context.Context, taskID string) error {
	return c.waitForTask(ctx, "wait for start", taskID, func(s RunState) outcome {
		switch s {
		case StateRunning, StateDone:
			return reachedGoal
		case StateInternalError:
			return reachedFailure
		}
		return keepPolling
	})
}

// WaitForTaskEnd polls until the task is Done. Internal Error and Stopped
// return a *TaskStateError.
func (c *Client) WaitForTaskEnd(ctx context.Context, taskID string) error {
	return c.waitForTask(ctx, "wait for end", taskID, func(s RunState) outcome {
		switch s {
		case StateDone:
			return reachedGoal
		case StateInternalError, StateStopped:
			return reachedFailure
		}
		return keepPolling
	})
}

// WaitForTaskStop polls until the task is Stopped or Done. Internal Error
// returns a *TaskStateError.
func (c *Client) WaitForTaskStop(ctx context.Context, taskID string) error {
	return c.waitForTask(ctx, "wait for stop", taskID, func(s RunState) outcome {
		switch s {
		case StateStopped, StateDone:
			return reachedGoal
		case StateInternalError:
			return reachedFailure
		}
		return keepPolling
	})
}

// waitForTask runs the get_status loop shared by the run-state pollers. A
// task missing from the listing ends the loop with ErrTaskNotFound.
func (c *Client) waitForTask(ctx context.Context, what, taskID string, decide decideFunc) error {
	logger := c.logger.With("task_id", taskID, "wait", what)
	for polls := 1; ; polls++ {
		resp, err := c.do(ctx, newCommand("get_status"))
		if err != nil {
			return err
		}

		state, err := runState(resp, taskID)
		if err != nil {
			return err
		}
		logger.Debug("task state", "state", state, "polls", polls)

		switch decide(state) {
		case reachedGoal:
			return nil
		case reachedFailure:
			logger.Warn("task failed", "state", state)
			return &TaskStateError{TaskID: taskID, State: state}
		}

		if err := c.clock.Sleep(ctx, c.pollInterval); err != nil {
			return err
		}
	}
}

// runState finds the task with the given id among the response's task
// children. Element names and ids compare case-insensitively.
func runState(resp *entity.Entity, taskID string) (RunState, error) {
	for _, child := range resp.Children() {
		if !strings.EqualFold(child.Name(), "task") {
			continue
		}
		id, ok := child.Attribute("id")
		if !ok {
			return "", protocolViolation("get_status", "<task> without id")
		}
		if !strings.EqualFold(id, taskID) {
			continue
		}
		status := child.Child("status")
		if status == nil {
			return "", protocolViolation("get_status", "task %s has no <status>", id)
		}
		return RunState(status.Text()), nil
	}
	return "", fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}

// WaitForTaskDelete polls a single-task status query until the task no longer
// appears in the response. The status code of the poll is not consulted.
func (c *Client) WaitForTaskDelete(ctx context.Context, taskID string) error {
	cmd := newCommand("get_status").WithAttr("task_id", taskID)
	for polls := 1; ; polls++ {
		resp, err := c.roundTrip(ctx, cmd)
		if err != nil {
			return err
		}
		state, ok := TaskStatus(resp)
		if !ok {
			c.logger.Debug("task deleted", "task_id", taskID, "polls", polls)
			return nil
		}
		c.logger.Debug("task still present", "task_id", taskID, "state", state)

		if err := c.clock.Sleep(ctx, c.pollInterval); err != nil {
			return err
		}
	}
}

// TaskStatus returns the run-state text of the first task in a single-task
// status response.
func TaskStatus(resp *entity.Entity) (string, bool) {
	task := resp.Child("task")
	if task == nil {
		return "", false
	}
	return task.ChildText("status")
}
