package omp

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/smnsjas/go-omp/entity"
	"github.com/smnsjas/go-omp/omp/transport"
)

// DefaultPollInterval is the pause between status queries in the Wait
// methods.
const DefaultPollInterval = time.Second

// Direction tells a Recorder which way a document travelled.
type Direction string

const (
	// DirectionSent marks a request.
	DirectionSent Direction = "sent"
	// DirectionReceived marks a response.
	DirectionReceived Direction = "received"
)

// Recorder receives a copy of every document exchanged with the manager,
// exactly as it appeared on the wire.
type Recorder interface {
	Record(dir Direction, data []byte)
}

// Client speaks OMP over a single connection. Requests are strictly
// sequential: when several goroutines share a Client, each exchange waits
// for the previous one to finish.
type Client struct {
	conn     transport.Conn
	gate     *exchangeGate
	reader   *transport.Reader
	logger   *slog.Logger
	clock    Clock
	recorder Recorder

	pollInterval time.Duration
	readerOpts   []transport.ReaderOption

	// broken is set once an exchange fails after the request may have
	// reached the manager. Guarded by gate.
	broken error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPollInterval sets the pause between status queries while waiting on a
// task.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// WithClock replaces the clock used to pause between polls.
func WithClock(clk Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithRecorder installs a Recorder for wire capture.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithBufferSize sets the size of the receive staging buffer.
func WithBufferSize(n int) Option {
	return func(c *Client) {
		c.readerOpts = append(c.readerOpts, transport.WithBufferSize(n))
	}
}

// NewClient creates a Client on an established connection. The caller keeps
// ownership of conn.
func NewClient(conn transport.Conn, opts ...Option) *Client {
	c := &Client{
		conn:         conn,
		gate:         newExchangeGate(),
		logger:       slog.New(slog.DiscardHandler),
		clock:        SystemClock{},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reader = transport.NewReader(conn, c.readerOpts...)
	return c
}

// roundTrip sends one request and reads exactly one response.
func (c *Client) roundTrip(ctx context.Context, cmd *command) (*entity.Entity, error) {
	if n := c.gate.queued(); n > 0 {
		c.logger.Debug("waiting for connection", "command", cmd.name, "queued", n)
	}
	if err := c.gate.acquire(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.name, err)
	}
	defer c.gate.release()

	if c.broken != nil {
		return nil, fmt.Errorf("%s: %w", cmd.name, c.broken)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.name, err)
	}

	req := cmd.Bytes()
	c.logger.Debug("omp request", "command", cmd.name, "bytes", len(req))
	if c.recorder != nil {
		c.recorder.Record(DirectionSent, req)
	}

	if err := c.conn.Send(ctx, req); err != nil {
		err = fmt.Errorf("%s: send: %w", cmd.name, err)
		c.markBroken(err)
		return nil, err
	}

	var (
		resp *entity.Entity
		raw  []byte
		err  error
	)
	if c.recorder != nil {
		resp, raw, err = c.reader.ReadResponseText(ctx)
	} else {
		resp, err = c.reader.ReadResponse(ctx)
	}
	if err != nil {
		err = fmt.Errorf("%s: read response: %w", cmd.name, err)
		c.markBroken(err)
		return nil, err
	}
	if c.recorder != nil {
		c.recorder.Record(DirectionReceived, raw)
	}

	status, _ := resp.Attribute("status")
	c.logger.Debug("omp response", "command", cmd.name, "root", resp.Name(), "status", status)
	return resp, nil
}

// markBroken records the first failed exchange. Must be called with the gate
// held.
func (c *Client) markBroken(cause error) {
	if c.broken != nil {
		return
	}
	c.broken = fmt.Errorf("%w: %w", ErrConnectionBroken, cause)
	c.logger.Warn("connection out of step, refusing further requests", "error", cause)
}

// do performs a round trip and checks the status code.
func (c *Client) do(ctx context.Context, cmd *command) (*entity.Entity, error) {
	resp, err := c.roundTrip(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := CheckStatus(cmd.name, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CheckStatus interprets the status attribute on a response root. A code
// whose first digit is 2 is success. Any other code is returned as a
// *RemoteError; a missing, empty or non-numeric status is a protocol
// violation.
func CheckStatus(op string, resp *entity.Entity) error {
	status, ok := resp.Attribute("status")
	if !ok || status == "" {
		return protocolViolation(op, "response <%s> has no status", resp.Name())
	}
	if status[0] == '2' {
		return nil
	}
	code, err := strconv.Atoi(status)
	if err != nil {
		return protocolViolation(op, "malformed status %q", status)
	}
	text, _ := resp.Attribute("status_text")
	return &RemoteError{Op: op, Code: code, Text: text}
}
