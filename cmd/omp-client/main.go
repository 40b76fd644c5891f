// Command omp-client talks to an OpenVAS manager over OMP.
//
// Password can be provided via:
//   - -pass flag (least secure, visible in process list)
//   - OMP_PASSWORD environment variable (recommended)
//   - the password key of a -config file
//   - stdin prompt (if none of the above is set)
//
// Usage:
//
//	omp-client [flags] <command> [args...]
//	omp-client [flags] shell
//	omp-client dump-capture [-session id] <file>
//
// Examples:
//
//	export OMP_PASSWORD='secret'
//	omp-client -host manager -user admin status
//	omp-client -host manager -user admin -format yaml report 6c1f...
//	omp-client -config ~/.omp.toml create-task-rc nightly scan.rc
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/smnsjas/go-omp/client"
	omplog "github.com/smnsjas/go-omp/internal/log"
)

const (
	exitSuccess      = 0
	exitCommandError = 1
	exitUsage        = 2
)

// envPassword is read when -pass is not given.
const envPassword = "OMP_PASSWORD"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	s := defaultSettings()
	fs := newFlagSet(&s, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return exitUsage
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return exitUsage
	}
	verb, verbArgs := rest[0], rest[1:]

	switch verb {
	case "help":
		printUsage(stdout)
		return exitSuccess
	case "dump-capture":
		return runDumpCapture(verbArgs, stdout, stderr)
	}

	if s.ConfigPath != "" {
		if err := loadConfigFile(s.ConfigPath, &s, setFlags(fs)); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
	}
	if err := checkFormat(s.Format); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	var cmd *command
	if verb != "shell" {
		var ok bool
		if cmd, ok = lookupCommand(verb); !ok {
			fmt.Fprintf(stderr, "Unknown command: %s\n", verb)
			printUsage(stderr)
			return exitUsage
		}
		if err := cmd.checkArgs(verbArgs); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
	}

	logger, closeLog, err := setupLogging(s, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if closeLog != nil {
		defer closeLog.Close()
	}

	cfg := s.clientConfig()
	if cfg.Host == "" || cfg.Username == "" {
		fmt.Fprintln(stderr, "Error: -host and -user are required")
		return exitUsage
	}
	if cfg.Password == "" {
		cfg.Password = getPassword(stdin, stderr)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	logger.Debug("connecting", "config", cfg)

	c, err := client.Dial(ctx, cfg, client.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	defer c.Close()

	if verb == "shell" {
		if err := runShell(ctx, c.Client, s.Format); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitCommandError
		}
		return exitSuccess
	}

	if err := cmd.run(ctx, c.Client, verbArgs, &printer{w: stdout, format: s.Format}); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	return exitSuccess
}

// setupLogging builds the redacting logger. No -loglevel means no logging.
func setupLogging(s settings, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	if s.LogLevel == "" {
		return slog.New(slog.DiscardHandler), nil, nil
	}

	var level slog.Level
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s.LogLevel)
	}

	var (
		w      = stderr
		closer io.Closer
	)
	if s.LogFile != "" {
		rf, err := omplog.NewRotatingFile(s.LogFile, int64(s.LogMaxSizeMB)<<20, s.LogBackups)
		if err != nil {
			return nil, nil, err
		}
		w, closer = rf, rf
	}

	h := omplog.NewRedactingHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return slog.New(h), closer, nil
}

// getPassword returns the password from the environment or prompts for it.
func getPassword(stdin io.Reader, stderr io.Writer) string {
	if envPass := os.Getenv(envPassword); envPass != "" {
		return envPass
	}

	fmt.Fprint(stderr, "Password: ")

	if f, ok := stdin.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			passBytes, err := term.ReadPassword(fd)
			fmt.Fprintln(stderr)
			if err != nil {
				return ""
			}
			return string(passBytes)
		}
	}

	// Not a terminal (piped input): read line
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimRight(line, "\r\n")
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `omp-client - OpenVAS Management Protocol client

Usage:
  omp-client [flags] <command> [args...]
  omp-client [flags] shell
  omp-client dump-capture [-session id] <file>

Commands:`)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-16s %-40s %s\n", c.name, c.args, c.summary)
	}
	fmt.Fprintln(w, `
Flags:`)
	defaults := defaultSettings()
	fs := newFlagSet(&defaults, w)
	fs.PrintDefaults()
}
