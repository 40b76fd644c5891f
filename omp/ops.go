package omp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/smnsjas/go-omp/entity"
)

// Authenticate logs in on the connection. A rejected login returns an error
// matching both ErrAuthenticationFailed and the *RemoteError carrying the
// status code.
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	cmd := newCommand("authenticate").WithChild(
		newCommand("credentials").
			WithElement("username", username).
			WithElement("password", password))

	_, err := c.do(ctx, cmd)
	var re *RemoteError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	if err != nil {
		return err
	}
	c.logger.Info("authenticated", "user", username)
	return nil
}

// TaskSpec names the existing config and target a new task runs with.
type TaskSpec struct {
	Name    string
	Comment string
	Config  string
	Target  string
}

// CreateTask creates a task from a config and target and returns its id.
func (c *Client) CreateTask(ctx context.Context, spec TaskSpec) (string, error) {
	cmd := newCommand("create_task").
		WithElement("config", spec.Config).
		WithElement("target", spec.Target).
		WithElement("name", spec.Name).
		WithElement("comment", spec.Comment)
	return c.createTask(ctx, cmd)
}

// CreateTaskFromRC creates a task from the contents of an rc file and returns
// its id.
func (c *Client) CreateTaskFromRC(ctx context.Context, rc []byte, name, comment string) (string, error) {
	cmd := newCommand("create_task").
		WithBase64("rcfile", rc).
		WithElement("name", name).
		WithElement("comment", comment)
	return c.createTask(ctx, cmd)
}

// CreateTaskFromFile reads an rc file from disk and creates a task from it.
func (c *Client) CreateTaskFromFile(ctx context.Context, path, name, comment string) (string, error) {
	rc, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("create_task: read rc file: %w", err)
	}
	return c.CreateTaskFromRC(ctx, rc, name, comment)
}

func (c *Client) createTask(ctx context.Context, cmd *command) (string, error) {
	resp, err := c.do(ctx, cmd)
	if err != nil {
		return "", err
	}
	id, ok := resp.ChildText("task_id")
	if !ok {
		return "", protocolViolation(cmd.name, "response has no <task_id>")
	}
	c.logger.Debug("task created", "task_id", id)
	return id, nil
}

// StartTask starts a task.
func (c *Client) StartTask(ctx context.Context, taskID string) error {
	_, err := c.do(ctx, newCommand("start_task").WithAttr("task_id", taskID))
	return err
}

// ModifyTaskOptions lists the task fields to change. Nil fields are left
// untouched; a non-nil empty RCFile is sent as an empty element.
type ModifyTaskOptions struct {
	RCFile  []byte
	Name    *string
	Comment *string
}

// ModifyTask changes a task.
func (c *Client) ModifyTask(ctx context.Context, taskID string, opts ModifyTaskOptions) error {
	cmd := newCommand("modify_task").WithAttr("task_id", taskID).Expanded()
	if opts.RCFile != nil {
		cmd.WithBase64("rcfile", opts.RCFile)
	}
	if opts.Name != nil {
		cmd.WithElement("name", *opts.Name)
	}
	if opts.Comment != nil {
		cmd.WithElement("comment", *opts.Comment)
	}
	_, err := c.do(ctx, cmd)
	return err
}

// DeleteTask deletes a task. The manager may remove it asynchronously; see
// WaitForTaskDelete.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	_, err := c.do(ctx, newCommand("delete_task").WithAttr("task_id", taskID))
	return err
}

// CreateTarget creates a target. An empty comment is omitted from the request.
func (c *Client) CreateTarget(ctx context.Context, name, hosts, comment string) error {
	cmd := newCommand("create_target").
		WithElement("name", name).
		WithElement("hosts", hosts)
	if comment != "" {
		cmd.WithElement("comment", comment)
	}
	_, err := c.do(ctx, cmd)
	return err
}

// DeleteTarget deletes a target by name.
func (c *Client) DeleteTarget(ctx context.Context, name string) error {
	_, err := c.do(ctx, newCommand("delete_target").WithElement("name", name))
	return err
}

// CreateConfig creates a scan config from the contents of an rc file. An empty
// comment is omitted from the request.
func (c *Client) CreateConfig(ctx context.Context, name, comment string, rc []byte) error {
	cmd := newCommand("create_config").WithElement("name", name)
	if comment != "" {
		cmd.WithElement("comment", comment)
	}
	cmd.WithBase64("rcfile", rc)
	_, err := c.do(ctx, cmd)
	return err
}

// CreateConfigFromFile reads an rc file from disk and creates a config from
// it.
func (c *Client) CreateConfigFromFile(ctx context.Context, name, comment, path string) error {
	rc, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("create_config: read rc file: %w", err)
	}
	return c.CreateConfig(ctx, name, comment, rc)
}

// DeleteConfig deletes a scan config by name.
func (c *Client) DeleteConfig(ctx context.Context, name string) error {
	_, err := c.do(ctx, newCommand("delete_config").WithElement("name", name))
	return err
}

// StatusQuery selects what GetStatus reports.
type StatusQuery struct {
	// TaskID limits the report to one task. Empty means all tasks.
	TaskID string

	// IncludeRCFile asks for each task's rc file.
	IncludeRCFile bool
}

// GetStatus returns the full status response.
func (c *Client) GetStatus(ctx context.Context, q StatusQuery) (*entity.Entity, error) {
	return c.do(ctx, statusCommand(q))
}

func statusCommand(q StatusQuery) *command {
	cmd := newCommand("get_status")
	if q.TaskID != "" {
		cmd.WithAttr("task_id", q.TaskID)
	}
	rc := 0
	if q.IncludeRCFile {
		rc = 1
	}
	return cmd.WithAttr("rcfile", strconv.Itoa(rc))
}

// GetReport returns a report in NBE format.
func (c *Client) GetReport(ctx context.Context, reportID string) (*entity.Entity, error) {
	return c.do(ctx, newCommand("get_report").
		WithAttr("format", "nbe").
		WithAttr("report_id", reportID))
}

// DeleteReport deletes a report.
func (c *Client) DeleteReport(ctx context.Context, reportID string) error {
	_, err := c.do(ctx, newCommand("delete_report").WithAttr("report_id", reportID))
	return err
}

// GetPreferences returns the scanner preferences.
func (c *Client) GetPreferences(ctx context.Context) (*entity.Entity, error) {
	return c.do(ctx, newCommand("get_preferences"))
}

// GetCertificates returns the scanner certificates.
func (c *Client) GetCertificates(ctx context.Context) (*entity.Entity, error) {
	return c.do(ctx, newCommand("get_certificates"))
}

// UntilReady calls op until it stops failing with status 503 and returns its
// final result. There is no retry limit; cancel ctx to give up.
func UntilReady[T any](ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	for {
		v, err := op(ctx)
		if !IsServiceUnavailable(err) {
			return v, err
		}
		if cerr := ctx.Err(); cerr != nil {
			var zero T
			return zero, cerr
		}
	}
}
