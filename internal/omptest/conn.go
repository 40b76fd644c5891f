// Package omptest provides a scripted transport for exercising the OMP client
// without a manager.
package omptest

import (
	"context"
	"net"
	"sync"

	"github.com/smnsjas/go-omp/omp/transport"
)

// Conn is a transport.Conn that records every request and replays canned
// responses in order. A single Receive never returns bytes from two
// different responses. Once the script is exhausted Receive reports an
// orderly shutdown.
type Conn struct {
	mu sync.Mutex

	requests  [][]byte
	responses [][]byte
	current   []byte
	chunkSize int
	recvErrs  []error
	sendErr   error
	receives  int
	closed    bool
}

var _ transport.Conn = (*Conn)(nil)

// NewConn returns a Conn that will answer with the given documents.
func NewConn(responses ...string) *Conn {
	c := &Conn{}
	for _, r := range responses {
		c.responses = append(c.responses, []byte(r))
	}
	return c
}

// WithChunkSize limits every Receive to at most n bytes.
func (c *Conn) WithChunkSize(n int) *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunkSize = n
	return c
}

// FailReceive queues errors returned, in order, by the next Receive calls
// before any further data is delivered.
func (c *Conn) FailReceive(errs ...error) *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recvErrs = append(c.recvErrs, errs...)
	return c
}

// FailSend makes every Send return err.
func (c *Conn) FailSend(err error) *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
	return c
}

// Send implements transport.Conn.
func (c *Conn) Send(ctx context.Context, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.closed {
		return net.ErrClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.requests = append(c.requests, append([]byte(nil), p...))
	return nil
}

// Receive implements transport.Conn.
func (c *Conn) Receive(ctx context.Context, p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receives++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if c.closed {
		return 0, net.ErrClosed
	}
	if len(c.recvErrs) > 0 {
		err := c.recvErrs[0]
		c.recvErrs = c.recvErrs[1:]
		return 0, err
	}
	if len(c.current) == 0 {
		if len(c.responses) == 0 {
			return 0, nil
		}
		c.current = c.responses[0]
		c.responses = c.responses[1:]
	}
	n := len(c.current)
	if c.chunkSize > 0 && n > c.chunkSize {
		n = c.chunkSize
	}
	n = copy(p, c.current[:n])
	c.current = c.current[n:]
	return n, nil
}

// Requests returns the requests sent so far as strings.
func (c *Conn) Requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.requests))
	for i, r := range c.requests {
		out[i] = string(r)
	}
	return out
}

// Remaining returns the number of scripted responses not yet started.
func (c *Conn) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.responses)
}

// Receives returns how many times Receive was called.
func (c *Conn) Receives() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receives
}

// Close makes further Sends and Receives fail with net.ErrClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
