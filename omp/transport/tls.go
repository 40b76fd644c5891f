package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

const (
	// DefaultPort is the port an OMP manager listens on.
	DefaultPort = 9390

	// DefaultTimeout bounds connection establishment including the TLS
	// handshake.
	DefaultTimeout = 60 * time.Second
)

// TLSConn is a Conn over a TLS session.
type TLSConn struct {
	conn *tls.Conn
}

type dialConfig struct {
	timeout   time.Duration
	tlsConfig *tls.Config
}

// DialOption configures Dial.
type DialOption func(*dialConfig)

// WithTimeout sets the connect and handshake timeout.
func WithTimeout(d time.Duration) DialOption {
	return func(c *dialConfig) {
		c.timeout = d
	}
}

// WithInsecureSkipVerify configures TLS to skip certificate verification.
// WARNING: Only use this for testing. Never use in production.
func WithInsecureSkipVerify(skip bool) DialOption {
	return func(c *dialConfig) {
		if skip {
			fmt.Fprintf(os.Stderr, "WARNING: TLS certificate verification disabled. This is insecure and should only be used for testing.\n")
		}
		c.tlsConfig.InsecureSkipVerify = skip
	}
}

// WithRootCAs sets the certificate pool used to verify the manager.
func WithRootCAs(pool *x509.CertPool) DialOption {
	return func(c *dialConfig) {
		c.tlsConfig.RootCAs = pool
	}
}

// WithServerName overrides the name checked against the manager certificate.
func WithServerName(name string) DialOption {
	return func(c *dialConfig) {
		c.tlsConfig.ServerName = name
	}
}

// WithTLSConfig uses a copy of cfg as the base TLS configuration. Root CAs,
// server name and certificate skipping set by earlier options are kept when
// cfg leaves them unset, and renegotiation stays enabled unless cfg chooses a
// policy. MinVersion is raised to TLS 1.2. A nil cfg is ignored.
func WithTLSConfig(cfg *tls.Config) DialOption {
	return func(c *dialConfig) {
		if cfg == nil {
			return
		}
		prev := c.tlsConfig
		next := cfg.Clone()
		if next.MinVersion < tls.VersionTLS12 {
			next.MinVersion = tls.VersionTLS12
		}
		if next.Renegotiation == tls.RenegotiateNever {
			next.Renegotiation = prev.Renegotiation
		}
		if next.RootCAs == nil {
			next.RootCAs = prev.RootCAs
		}
		if next.ServerName == "" {
			next.ServerName = prev.ServerName
		}
		next.InsecureSkipVerify = next.InsecureSkipVerify || prev.InsecureSkipVerify
		c.tlsConfig = next
	}
}

func newDialConfig(opts ...DialOption) *dialConfig {
	cfg := &dialConfig{
		timeout: DefaultTimeout,
		tlsConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			// Hello requests are answered inside crypto/tls.
			Renegotiation: tls.RenegotiateFreelyAsClient,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Dial connects to the manager at addr ("host:port") and completes the TLS
// handshake.
func Dial(ctx context.Context, addr string, opts ...DialOption) (*TLSConn, error) {
	cfg := newDialConfig(opts...)

	d := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: cfg.timeout},
		Config:    cfg.tlsConfig,
	}
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &TLSConn{conn: conn.(*tls.Conn)}, nil
}

// NewTLSConn wraps an established TLS session.
func NewTLSConn(conn *tls.Conn) *TLSConn {
	return &TLSConn{conn: conn}
}

// Send writes all of p.
func (c *TLSConn) Send(ctx context.Context, p []byte) error {
	stop := c.watch(ctx, c.conn.SetWriteDeadline)
	defer stop()

	if _, err := c.conn.Write(p); err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("transport: send failed: %w", err)
	}
	return nil
}

// Receive reads at most len(p) bytes. It maps end of stream to a zero count
// and an interrupted system call to ErrInterrupted.
func (c *TLSConn) Receive(ctx context.Context, p []byte) (int, error) {
	stop := c.watch(ctx, c.conn.SetReadDeadline)
	defer stop()

	n, err := c.conn.Read(p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		return n, nil
	case errors.Is(err, syscall.EINTR):
		return n, ErrInterrupted
	}
	if ctxErr := contextError(ctx); ctxErr != nil {
		return n, ctxErr
	}
	return n, err
}

// contextError reports whether a failed I/O call was caused by ctx. The
// socket deadline can expire a moment before the context's own timer.
func contextError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return nil
}

// watch applies the context deadline to the connection and forces blocked
// I/O to return when the context is cancelled.
func (c *TLSConn) watch(ctx context.Context, setDeadline func(time.Time) error) func() bool {
	deadline, _ := ctx.Deadline()
	_ = setDeadline(deadline)
	return context.AfterFunc(ctx, func() {
		_ = setDeadline(time.Now())
	})
}

// RemoteAddr returns the manager's network address.
func (c *TLSConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close shuts down the TLS session and the underlying connection.
func (c *TLSConn) Close() error {
	return c.conn.Close()
}
