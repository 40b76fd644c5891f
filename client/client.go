package client

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	omplog "github.com/smnsjas/go-omp/internal/log"
	"github.com/smnsjas/go-omp/omp"
	"github.com/smnsjas/go-omp/omp/transport"
)

// Conn is a connection the session owns and closes.
type Conn interface {
	transport.Conn
	io.Closer
}

// DialFunc opens the connection to the manager.
type DialFunc func(ctx context.Context, cfg Config) (Conn, error)

// Client is an authenticated OMP session. The embedded *omp.Client provides
// the protocol operations.
type Client struct {
	*omp.Client

	conn      Conn
	config    Config
	sessionID uuid.UUID
	logger    *slog.Logger
	security  *SecurityLogger
	capture   *omplog.CaptureFile

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	logger *slog.Logger
	clock  omp.Clock
	dial   DialFunc
}

// Option configures Dial.
type Option func(*options)

// WithLogger sets the logger. Every record carries the session id.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces the clock used for dial backoff and task polling.
func WithClock(c omp.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithDialer replaces the TLS dialer.
func WithDialer(d DialFunc) Option {
	return func(o *options) {
		if d != nil {
			o.dial = d
		}
	}
}

// Dial connects to the manager described by cfg and authenticates.
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{
		logger: slog.New(slog.DiscardHandler),
		clock:  omp.SystemClock{},
		dial:   DialTLS,
	}
	for _, opt := range opts {
		opt(&o)
	}

	sessionID := uuid.New()
	logger := o.logger.With("session", sessionID.String(), "manager", cfg.Address())
	security := NewSecurityLogger(logger, cfg.Username, cfg.Address(), sessionID.String())

	conn, err := dialWithRetry(ctx, cfg, o, logger, security)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:      conn,
		config:    cfg,
		sessionID: sessionID,
		logger:    logger,
		security:  security,
	}

	ompOpts := []omp.Option{
		omp.WithLogger(logger),
		omp.WithClock(o.clock),
		omp.WithPollInterval(cfg.PollInterval),
		omp.WithBufferSize(cfg.BufferSize),
	}
	if cfg.CapturePath != "" {
		capture, err := omplog.NewCaptureFile(cfg.CapturePath, sessionID.String())
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		c.capture = capture
		ompOpts = append(ompOpts, omp.WithRecorder(capture))
	}
	c.Client = omp.NewClient(conn, ompOpts...)

	if err := c.authenticate(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	security.LogSession(SubtypeSessionOpened, OutcomeSuccess, SeverityInfo, nil)
	return c, nil
}

func dialWithRetry(ctx context.Context, cfg Config, o options, logger *slog.Logger, security *SecurityLogger) (Conn, error) {
	attempts := 1
	if cfg.Retry != nil {
		attempts = cfg.Retry.MaxAttempts
	}

	for attempt := 1; ; attempt++ {
		conn, err := o.dial(ctx, cfg)
		if err == nil {
			security.LogConnection(SubtypeConnEstablished, OutcomeSuccess, SeverityInfo,
				map[string]any{"attempt": attempt})
			return conn, nil
		}

		if attempt >= attempts || !isRetryableError(err) {
			security.LogConnection(SubtypeConnFailed, OutcomeFailure, SeverityError,
				map[string]any{"attempt": attempt, "error": err.Error()})
			return nil, err
		}

		delay := calculateRetryBackoff(attempt, cfg.Retry)
		logger.Warn("dial failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		security.LogConnection(SubtypeConnRetry, OutcomeAttempt, SeverityWarning,
			map[string]any{"attempt": attempt})
		if err := o.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) authenticate(ctx context.Context) error {
	login := func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Authenticate(ctx, c.config.Username, c.config.Password)
	}

	var err error
	if c.config.WaitUntilReady {
		_, err = omp.UntilReady(ctx, login)
	} else {
		_, err = login(ctx)
	}

	switch {
	case err == nil:
		c.security.LogAuthentication(SubtypeAuthSuccess, OutcomeSuccess, SeverityInfo, nil)
	case errors.Is(err, omp.ErrAuthenticationFailed):
		c.security.LogAuthentication(SubtypeAuthFailure, OutcomeDenied, SeverityWarning, nil)
	default:
		c.security.LogAuthentication(SubtypeAuthFailure, OutcomeFailure, SeverityError,
			map[string]any{"error": err.Error()})
	}
	return err
}

// SessionID returns the id attached to this session's logs and captures.
func (c *Client) SessionID() uuid.UUID {
	return c.sessionID
}

// Config returns the configuration the session was opened with.
func (c *Client) Config() Config {
	return c.config
}

// Close closes the connection and the capture file. Close is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		errs := []error{c.conn.Close()}
		if c.capture != nil {
			errs = append(errs, c.capture.Close())
		}
		c.closeErr = errors.Join(errs...)
		c.security.LogSession(SubtypeSessionClosed, OutcomeSuccess, SeverityInfo, nil)
	})
	return c.closeErr
}

// DialTLS is the default DialFunc: a TLS connection built from cfg.
func DialTLS(ctx context.Context, cfg Config) (Conn, error) {
	opts := []transport.DialOption{
		transport.WithTimeout(cfg.Timeout),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, transport.WithInsecureSkipVerify(true))
	}
	if cfg.ServerName != "" {
		opts = append(opts, transport.WithServerName(cfg.ServerName))
	}
	if cfg.CAFile != "" {
		pool, err := loadCAFile(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithRootCAs(pool))
	}
	conn, err := transport.Dial(ctx, cfg.Address(), opts...)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func loadCAFile(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
