package config

import (
	"fmt"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fsutil"
	"github.com/hugo-lorenzo-mato/crashguard/internal/guard"
)

// Config holds all application configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Crash  CrashConfig  `mapstructure:"crash"`
	Notice NoticeConfig `mapstructure:"notice"`
	Inbox  InboxConfig  `mapstructure:"inbox"`
	Server ServerConfig `mapstructure:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// CrashConfig configures report capture.
type CrashConfig struct {
	Dir           string            `mapstructure:"dir"`
	MaxReports    int               `mapstructure:"max_reports"`
	Signals       []string          `mapstructure:"signals"`
	GoroutineDump bool              `mapstructure:"goroutine_dump"`
	RuntimeOutput bool              `mapstructure:"runtime_output"`
	HostMetadata  bool              `mapstructure:"host_metadata"`
	Environment   bool              `mapstructure:"environment"`
	Metadata      map[string]string `mapstructure:"metadata"`
}

// NoticeConfig configures the crash notice.
type NoticeConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Timeout string `mapstructure:"timeout"`
}

// InboxConfig configures the ledger of reports seen by the companion tool.
type InboxConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the report API.
type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ReportDir returns the report directory with ~ expanded.
func (c *Config) ReportDir() string {
	return fsutil.ExpandHome(c.Crash.Dir)
}

// InboxPath returns the inbox database path. It defaults to inbox.db next
// to the reports.
func (c *Config) InboxPath() string {
	if c.Inbox.Path != "" {
		return fsutil.ExpandHome(c.Inbox.Path)
	}
	return filepath.Join(filepath.Dir(c.ReportDir()), "inbox.db")
}

// NoticeTimeout parses notice.timeout.
func (c *Config) NoticeTimeout() (time.Duration, error) {
	if c.Notice.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Notice.Timeout)
	if err != nil {
		return 0, core.ErrConfig(core.CodeInvalidTimeout, "parsing notice.timeout").WithCause(err)
	}
	return d, nil
}

// ParsedSignals parses crash.signals. An empty list means every fatal
// signal.
func (c *Config) ParsedSignals() ([]syscall.Signal, error) {
	signals := make([]syscall.Signal, 0, len(c.Crash.Signals))
	for _, s := range c.Crash.Signals {
		sig, err := core.ParseSignal(s)
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

// InstallOptions translates the crash and notice sections into install
// options.
func (c *Config) InstallOptions() ([]guard.Option, error) {
	signals, err := c.ParsedSignals()
	if err != nil {
		return nil, err
	}
	timeout, err := c.NoticeTimeout()
	if err != nil {
		return nil, err
	}

	opts := []guard.Option{
		guard.WithDir(c.ReportDir()),
		guard.WithMaxReports(c.Crash.MaxReports),
		guard.WithGoroutineDump(c.Crash.GoroutineDump),
		guard.WithRuntimeCrashOutput(c.Crash.RuntimeOutput),
		guard.WithHostMetadata(c.Crash.HostMetadata),
		guard.WithEnvironment(c.Crash.Environment),
		guard.WithNoticeTimeout(timeout),
	}
	if len(signals) > 0 {
		opts = append(opts, guard.WithSignals(signals...))
	}
	for k, v := range c.Crash.Metadata {
		opts = append(opts, guard.WithMetadata(k, v))
	}
	return opts, nil
}
