package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/smnsjas/go-omp/omp"
)

// command is one verb of the CLI and the interactive shell.
type command struct {
	name    string
	args    string
	summary string
	minArgs int
	maxArgs int // -1 means unbounded
	run     func(ctx context.Context, c *omp.Client, args []string, p *printer) error
}

func (cmd *command) checkArgs(args []string) error {
	if len(args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(args) > cmd.maxArgs) {
		return fmt.Errorf("usage: %s %s", cmd.name, cmd.args)
	}
	return nil
}

func lookupCommand(name string) (*command, bool) {
	for i := range commands {
		if commands[i].name == name {
			return &commands[i], true
		}
	}
	return nil, false
}

// optional returns args[i] or "" when it is absent.
func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

var commands = []command{
	{
		name: "status", args: "[-rc] [task_id]", summary: "Show task status",
		minArgs: 0, maxArgs: 2,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			var q omp.StatusQuery
			if len(args) > 0 && args[0] == "-rc" {
				q.IncludeRCFile = true
				args = args[1:]
			}
			if len(args) > 1 {
				return fmt.Errorf("usage: status [-rc] [task_id]")
			}
			q.TaskID = optional(args, 0)
			resp, err := c.GetStatus(ctx, q)
			if err != nil {
				return err
			}
			return p.Entity(resp)
		},
	},
	{
		name: "report", args: "<report_id>", summary: "Fetch a report in NBE format",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			resp, err := c.GetReport(ctx, args[0])
			if err != nil {
				return err
			}
			return p.Entity(resp)
		},
	},
	{
		name: "delete-report", args: "<report_id>", summary: "Delete a report",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			if err := c.DeleteReport(ctx, args[0]); err != nil {
				return err
			}
			return p.Line("Report %s deleted", args[0])
		},
	},
	{
		name: "preferences", summary: "Show scanner preferences",
		minArgs: 0, maxArgs: 0,
		run: func(ctx context.Context, c *omp.Client, _ []string, p *printer) error {
			resp, err := c.GetPreferences(ctx)
			if err != nil {
				return err
			}
			return p.Entity(resp)
		},
	},
	{
		name: "certificates", summary: "Show scanner certificates",
		minArgs: 0, maxArgs: 0,
		run: func(ctx context.Context, c *omp.Client, _ []string, p *printer) error {
			resp, err := c.GetCertificates(ctx)
			if err != nil {
				return err
			}
			return p.Entity(resp)
		},
	},
	{
		name: "create-target", args: "<name> <hosts> [comment]", summary: "Create a target",
		minArgs: 2, maxArgs: 3,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			if err := c.CreateTarget(ctx, args[0], args[1], optional(args, 2)); err != nil {
				return err
			}
			return p.Line("Target %s created", args[0])
		},
	},
	{
		name: "delete-target", args: "<name>", summary: "Delete a target",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			if err := c.DeleteTarget(ctx, args[0]); err != nil {
				return err
			}
			return p.Line("Target %s deleted", args[0])
		},
	},
	{
		name: "create-config", args: "<name> <rc_file> [comment]", summary: "Create a scan config from an rc file",
		minArgs: 2, maxArgs: 3,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			if err := c.CreateConfigFromFile(ctx, args[0], optional(args, 2), args[1]); err != nil {
				return err
			}
			return p.Line("Config %s created", args[0])
		},
	},
	{
		name: "delete-config", args: "<name>", summary: "Delete a scan config",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			if err := c.DeleteConfig(ctx, args[0]); err != nil {
				return err
			}
			return p.Line("Config %s deleted", args[0])
		},
	},
	{
		name: "create-task", args: "<name> <config> <target> [comment]", summary: "Create a task from a config and target",
		minArgs: 3, maxArgs: 4,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			id, err := c.CreateTask(ctx, omp.TaskSpec{
				Name:    args[0],
				Config:  args[1],
				Target:  args[2],
				Comment: optional(args, 3),
			})
			if err != nil {
				return err
			}
			return p.Line("%s", id)
		},
	},
	{
		name: "create-task-rc", args: "<name> <rc_file> [comment]", summary: "Create a task from an rc file",
		minArgs: 2, maxArgs: 3,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			id, err := c.CreateTaskFromFile(ctx, args[1], args[0], optional(args, 2))
			if err != nil {
				return err
			}
			return p.Line("%s", id)
		},
	},
	{
		name: "start", args: "<task_id>", summary: "Start a task",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			if err := c.StartTask(ctx, args[0]); err != nil {
				return err
			}
			return p.Line("Task %s start requested", args[0])
		},
	},
	{
		name: "modify-task", args: "<task_id> [name=..] [comment=..] [rcfile=path]", summary: "Change a task",
		minArgs: 2, maxArgs: 4,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			opts, err := parseModifyArgs(args[1:])
			if err != nil {
				return err
			}
			if err := c.ModifyTask(ctx, args[0], opts); err != nil {
				return err
			}
			return p.Line("Task %s modified", args[0])
		},
	},
	{
		name: "delete-task", args: "<task_id>", summary: "Delete a task",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			if err := c.DeleteTask(ctx, args[0]); err != nil {
				return err
			}
			return p.Line("Task %s delete requested", args[0])
		},
	},
	waitCommand("wait-start", "Wait until a task is running", (*omp.Client).WaitForTaskStart, "running"),
	waitCommand("wait-end", "Wait until a task is done", (*omp.Client).WaitForTaskEnd, "done"),
	waitCommand("wait-stop", "Wait until a task has stopped", (*omp.Client).WaitForTaskStop, "stopped"),
	waitCommand("wait-delete", "Wait until a task is gone", (*omp.Client).WaitForTaskDelete, "deleted"),
}

func waitCommand(name, summary string, wait func(*omp.Client, context.Context, string) error, state string) command {
	return command{
		name: name, args: "<task_id>", summary: summary,
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, c *omp.Client, args []string, p *printer) error {
			if err := wait(c, ctx, args[0]); err != nil {
				return err
			}
			return p.Line("Task %s %s", args[0], state)
		},
	}
}

// parseModifyArgs turns key=value pairs into task changes.
func parseModifyArgs(args []string) (omp.ModifyTaskOptions, error) {
	var opts omp.ModifyTaskOptions
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return opts, fmt.Errorf("modify-task: expected key=value, got %q", arg)
		}
		switch key {
		case "name":
			opts.Name = &value
		case "comment":
			opts.Comment = &value
		case "rcfile":
			rc, err := os.ReadFile(value)
			if err != nil {
				return opts, fmt.Errorf("modify-task: read rc file: %w", err)
			}
			if rc == nil {
				rc = []byte{}
			}
			opts.RCFile = rc
		default:
			return opts, fmt.Errorf("modify-task: unknown field %q", key)
		}
	}
	return opts, nil
}
