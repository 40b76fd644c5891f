package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/smnsjas/go-omp/omp"
	"github.com/smnsjas/go-omp/omp/transport"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvUser         = "OPENVAS_TEST_USER"
	EnvFallbackUser = "USER"
	EnvPassword     = "OPENVAS_TEST_PASSWORD"
)

// ErrMissingCredentials is returned by ConfigFromEnv when the environment
// does not name both a user and a password.
var ErrMissingCredentials = errors.New("client: credentials not set in environment")

// Config holds configuration for an OMP session.
type Config struct {
	// Host is the manager host name or address.
	Host string

	// Port is the manager port (default: 9390).
	Port int

	// Username for the authenticate command.
	Username string

	// Password for the authenticate command.
	Password string

	// Timeout bounds connecting and the TLS handshake. Zero means no limit.
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification.
	// WARNING: Only use for testing.
	InsecureSkipVerify bool

	// CAFile is a PEM bundle used instead of the system roots.
	CAFile string

	// ServerName overrides the name checked against the manager certificate.
	ServerName string

	// PollInterval is the pause between status queries while waiting on a
	// task (default: 1s).
	PollInterval time.Duration

	// BufferSize is the receive staging buffer size (default: 1 MiB).
	BufferSize int

	// CapturePath, if set, records every exchanged document to a CBOR file.
	CapturePath string

	// WaitUntilReady repeats authentication while the manager answers 503.
	WaitUntilReady bool

	// Retry controls reconnect attempts when dialing fails with a transient
	// network error. Nil means a single attempt.
	Retry *RetryPolicy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           transport.DefaultPort,
		Timeout:        transport.DefaultTimeout,
		PollInterval:   omp.DefaultPollInterval,
		BufferSize:     transport.DefaultBufferSize,
		WaitUntilReady: true,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.PollInterval < 0 {
		return errors.New("poll interval must not be negative")
	}
	if c.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	if c.Retry != nil && c.Retry.MaxAttempts < 1 {
		return errors.New("retry policy needs at least one attempt")
	}
	return nil
}

// Address returns the manager address as host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LogValue implements slog.LogValuer so a logged Config never shows the
// password.
func (c Config) LogValue() slog.Value {
	password := ""
	if c.Password != "" {
		password = "********"
	}
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.String("username", c.Username),
		slog.String("password", password),
		slog.Duration("timeout", c.Timeout),
		slog.Bool("insecure", c.InsecureSkipVerify),
		slog.String("ca_file", c.CAFile),
		slog.Duration("poll_interval", c.PollInterval),
		slog.String("capture", c.CapturePath),
	)
}

// ConfigFromEnv returns DefaultConfig with credentials taken from the
// environment: the user from OPENVAS_TEST_USER or, failing that, USER; the
// password from OPENVAS_TEST_PASSWORD. A variable set to the empty string
// counts as unset.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	user := os.Getenv(EnvUser)
	if user == "" {
		user = os.Getenv(EnvFallbackUser)
	}
	if user == "" {
		return cfg, fmt.Errorf("%w: neither %s nor %s is set", ErrMissingCredentials, EnvUser, EnvFallbackUser)
	}
	password := os.Getenv(EnvPassword)
	if password == "" {
		return cfg, fmt.Errorf("%w: %s is not set", ErrMissingCredentials, EnvPassword)
	}

	cfg.Username = user
	cfg.Password = password
	return cfg, nil
}
