package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-shellwords"

	"github.com/smnsjas/go-omp/omp"
)

// errQuit ends the shell loop.
var errQuit = errors.New("quit")

// runShell reads commands from the terminal until quit or EOF. Every command
// shares the one authenticated connection.
func runShell(ctx context.Context, c *omp.Client, format string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "omp> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	printShellHelp(out)

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}

		if err := execLine(ctx, c, line, &printer{w: out, format: format}); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

// execLine runs a single shell line. Empty lines are ignored.
func execLine(ctx context.Context, c *omp.Client, line string, p *printer) error {
	parts, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return nil
	}

	name, args := strings.ToLower(parts[0]), parts[1:]
	switch name {
	case "help", "?":
		printShellHelp(p.w)
		return nil
	case "quit", "exit", "q":
		return errQuit
	case "format":
		if len(args) != 1 {
			return fmt.Errorf("usage: format text|xml|yaml")
		}
		if err := checkFormat(args[0]); err != nil {
			return err
		}
		p.format = args[0]
		return nil
	}

	cmd, ok := lookupCommand(name)
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", name)
	}
	if err := cmd.checkArgs(args); err != nil {
		return err
	}
	return cmd.run(ctx, c, args, p)
}

func printShellHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-16s %s\n", c.name, c.args)
	}
	fmt.Fprintln(w, "  format           text|xml|yaml")
	fmt.Fprintln(w, "  help, quit")
}

// splitArgs splits a line into words with shell quoting rules. Shell
// operators such as ; and | are not supported.
func splitArgs(line string) ([]string, error) {
	p := shellwords.NewParser()
	args, err := p.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("parse command line: %w", err)
	}
	if p.Position >= 0 {
		return nil, errors.New("shell operators (; & | < >) are not supported")
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}
