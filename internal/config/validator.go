package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
)

// maxNoticeTimeout keeps a misconfigured notice from holding a dying
// process for long.
const maxNoticeTimeout = 10 * time.Minute

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateCrash(&cfg.Crash)
	v.validateNotice(&cfg.Notice)
	v.validateInbox(&cfg.Inbox)
	v.validateServer(&cfg.Server)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"auto": true, "text": true, "json": true}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
}

func (v *Validator) validateCrash(cfg *CrashConfig) {
	if cfg.Dir == "" {
		v.addError("crash.dir", cfg.Dir, "directory required")
	}
	if cfg.MaxReports <= 0 || cfg.MaxReports > 1000 {
		v.addError("crash.max_reports", cfg.MaxReports, "must be between 1 and 1000")
	}
	seen := make(map[string]bool, len(cfg.Signals))
	for _, s := range cfg.Signals {
		sig, err := core.ParseSignal(s)
		if err != nil {
			v.addError("crash.signals", s, "must be one of: SIGABRT, SIGILL, SIGSEGV, SIGBUS, SIGFPE")
			continue
		}
		name := core.SignalName(sig)
		if seen[name] {
			v.addError("crash.signals", s, "listed more than once")
		}
		seen[name] = true
	}
	for k := range cfg.Metadata {
		if strings.TrimSpace(k) == "" {
			v.addError("crash.metadata", k, "keys must not be empty")
		}
	}
}

func (v *Validator) validateNotice(cfg *NoticeConfig) {
	if cfg.Timeout == "" {
		return
	}
	d, err := time.ParseDuration(cfg.Timeout)
	switch {
	case err != nil:
		v.addError("notice.timeout", cfg.Timeout, "invalid duration")
	case d <= 0:
		v.addError("notice.timeout", cfg.Timeout, "must be positive")
	case d > maxNoticeTimeout:
		v.addError("notice.timeout", cfg.Timeout, "must not exceed 10m")
	}
}

func (v *Validator) validateInbox(cfg *InboxConfig) {
	if cfg.Path != "" && !isValidPath(cfg.Path) {
		v.addError("inbox.path", cfg.Path, "invalid file path")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 0 and 65535")
	}
	for _, origin := range cfg.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			v.addError("server.cors_origins", origin, "must be * or an http(s) origin")
		}
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
