package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/smnsjas/go-omp/client"
)

// settings collects everything the command line and config file control.
type settings struct {
	ConfigPath string

	Host          string
	Port          int
	Username      string
	Password      string
	Timeout       time.Duration
	Insecure      bool
	CAFile        string
	ServerName    string
	PollInterval  time.Duration
	BufferSize    int
	Capture       string
	RetryAttempts int
	NoWait        bool

	Format string

	LogLevel     string
	LogFile      string
	LogMaxSizeMB int
	LogBackups   int
}

func defaultSettings() settings {
	d := client.DefaultConfig()
	return settings{
		Port:         d.Port,
		Timeout:      d.Timeout,
		PollInterval: d.PollInterval,
		BufferSize:   d.BufferSize,
		Format:       formatText,
		LogMaxSizeMB: 10,
		LogBackups:   3,
	}
}

func newFlagSet(s *settings, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("omp-client", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&s.ConfigPath, "config", s.ConfigPath, "TOML config file (flags override it)")
	fs.StringVar(&s.Host, "host", s.Host, "Manager host name or address")
	fs.IntVar(&s.Port, "port", s.Port, "Manager port")
	fs.StringVar(&s.Username, "user", s.Username, "Username for authentication")
	fs.StringVar(&s.Password, "pass", s.Password, "Password (use "+envPassword+" env var instead)")
	fs.DurationVar(&s.Timeout, "timeout", s.Timeout, "Connect and handshake timeout")
	fs.BoolVar(&s.Insecure, "insecure", s.Insecure, "Skip TLS certificate verification")
	fs.StringVar(&s.CAFile, "cafile", s.CAFile, "PEM file with the CA that signed the manager certificate")
	fs.StringVar(&s.ServerName, "servername", s.ServerName, "Name to verify the manager certificate against")
	fs.DurationVar(&s.PollInterval, "poll", s.PollInterval, "Pause between status queries in wait commands")
	fs.IntVar(&s.BufferSize, "bufsize", s.BufferSize, "Receive buffer size in bytes")
	fs.StringVar(&s.Capture, "capture", s.Capture, "Record every request and response to this CBOR file")
	fs.IntVar(&s.RetryAttempts, "retry-attempts", s.RetryAttempts, "Dial attempts on transient network errors (0 = single attempt)")
	fs.BoolVar(&s.NoWait, "no-wait", s.NoWait, "Fail instead of waiting while the manager reports 503")
	fs.StringVar(&s.Format, "format", s.Format, "Output format for entities: text, xml, yaml")
	fs.StringVar(&s.LogLevel, "loglevel", s.LogLevel, "Log level: debug, info, warn, error (empty = no logging)")
	fs.StringVar(&s.LogFile, "logfile", s.LogFile, "Write logs to this file instead of stderr")
	fs.IntVar(&s.LogMaxSizeMB, "logmax", s.LogMaxSizeMB, "Rotate the log file at this size in MB")
	fs.IntVar(&s.LogBackups, "logbackups", s.LogBackups, "Rotated log files to keep")
	return fs
}

// setFlags returns the names of the flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func (s settings) clientConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.Host = s.Host
	cfg.Port = s.Port
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.Timeout = s.Timeout
	cfg.InsecureSkipVerify = s.Insecure
	cfg.CAFile = s.CAFile
	cfg.ServerName = s.ServerName
	cfg.PollInterval = s.PollInterval
	cfg.BufferSize = s.BufferSize
	cfg.CapturePath = s.Capture
	cfg.WaitUntilReady = !s.NoWait
	if s.RetryAttempts > 0 {
		cfg.Retry = client.DefaultRetryPolicy()
		cfg.Retry.MaxAttempts = s.RetryAttempts
	}
	return cfg
}

type fileConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	Timeout        string `toml:"timeout"`
	Insecure       bool   `toml:"insecure"`
	CAFile         string `toml:"ca_file"`
	ServerName     string `toml:"server_name"`
	PollInterval   string `toml:"poll_interval"`
	BufferSize     int    `toml:"buffer_size"`
	Capture        string `toml:"capture"`
	RetryAttempts  int    `toml:"retry_attempts"`
	WaitUntilReady *bool  `toml:"wait_until_ready"`
	Format         string `toml:"format"`

	Log struct {
		Level     string `toml:"level"`
		File      string `toml:"file"`
		MaxSizeMB int    `toml:"max_size_mb"`
		Backups   int    `toml:"backups"`
	} `toml:"log"`
}

// loadConfigFile applies the keys present in the file to s, skipping any
// whose flag was set on the command line.
func loadConfigFile(path string, s *settings, flagSet map[string]bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	use := func(flagName string, key ...string) bool {
		return meta.IsDefined(key...) && !flagSet[flagName]
	}

	if use("host", "host") {
		s.Host = strings.TrimSpace(raw.Host)
	}
	if use("port", "port") {
		s.Port = raw.Port
	}
	if use("user", "username") {
		s.Username = strings.TrimSpace(raw.Username)
	}
	if use("pass", "password") {
		s.Password = raw.Password
	}
	if use("timeout", "timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		s.Timeout = d
	}
	if use("insecure", "insecure") {
		s.Insecure = raw.Insecure
	}
	if use("cafile", "ca_file") {
		s.CAFile = strings.TrimSpace(raw.CAFile)
	}
	if use("servername", "server_name") {
		s.ServerName = strings.TrimSpace(raw.ServerName)
	}
	if use("poll", "poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return fmt.Errorf("parse poll_interval: %w", err)
		}
		s.PollInterval = d
	}
	if use("bufsize", "buffer_size") {
		s.BufferSize = raw.BufferSize
	}
	if use("capture", "capture") {
		s.Capture = strings.TrimSpace(raw.Capture)
	}
	if use("retry-attempts", "retry_attempts") {
		s.RetryAttempts = raw.RetryAttempts
	}
	if use("no-wait", "wait_until_ready") && raw.WaitUntilReady != nil {
		s.NoWait = !*raw.WaitUntilReady
	}
	if use("format", "format") {
		s.Format = strings.ToLower(strings.TrimSpace(raw.Format))
	}
	if use("loglevel", "log", "level") {
		s.LogLevel = strings.TrimSpace(raw.Log.Level)
	}
	if use("logfile", "log", "file") {
		s.LogFile = strings.TrimSpace(raw.Log.File)
	}
	if use("logmax", "log", "max_size_mb") {
		s.LogMaxSizeMB = raw.Log.MaxSizeMB
	}
	if use("logbackups", "log", "backups") {
		s.LogBackups = raw.Log.Backups
	}
	return nil
}
