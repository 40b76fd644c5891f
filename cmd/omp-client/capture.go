package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	omplog "github.com/smnsjas/go-omp/internal/log"
)

// runDumpCapture prints the documents recorded in a -capture file.
func runDumpCapture(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dump-capture", flag.ContinueOnError)
	fs.SetOutput(stderr)
	session := fs.String("session", "", "Only print events of this session ID")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: omp-client dump-capture [-session id] <file>")
		return exitUsage
	}

	r, err := omplog.OpenCapture(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCommandError
	}
	defer r.Close()

	for {
		ev, err := r.Next()
		if err == io.EOF {
			return exitSuccess
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitCommandError
		}
		if *session != "" && ev.Session != *session {
			continue
		}
		fmt.Fprintf(stdout, "%s %s %-8s %s\n",
			ev.Time.Format(time.RFC3339Nano), ev.Session, ev.Direction, ev.Payload)
	}
}
