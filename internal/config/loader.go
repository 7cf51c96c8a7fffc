package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/crashguard/internal/guard"
)

// EnvPrefix prefixes every environment override, e.g. CRASHGUARD_CRASH_DIR.
const EnvPrefix = "CRASHGUARD"

// ProjectConfigName is the config file looked up in the working directory.
const ProjectConfigName = ".crashguard.yaml"

// UserConfigName is the config file looked up in UserConfigDir.
const UserConfigName = "config.yaml"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// NewLoaderWithViper creates a loader using an existing viper instance, so
// CLI flags bound to it take precedence.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags
// 2. Environment variables (CRASHGUARD_*)
// 3. Project config (.crashguard.yaml in the current directory)
// 4. User config (~/.config/crashguard/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	path := l.configFile
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// findConfigFile returns the project config if present, else the user
// config, else "".
func findConfigFile() string {
	candidates := []string{ProjectConfigName}
	if dir, err := UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, UserConfigName))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// UserConfigDir is ~/.config/crashguard.
func UserConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "crashguard"), nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("crash.dir", guard.DefaultDir())
	l.v.SetDefault("crash.max_reports", 10)
	l.v.SetDefault("crash.signals", []string{})
	l.v.SetDefault("crash.goroutine_dump", false)
	l.v.SetDefault("crash.runtime_output", true)
	l.v.SetDefault("crash.host_metadata", true)
	l.v.SetDefault("crash.environment", false)

	l.v.SetDefault("notice.enabled", true)
	l.v.SetDefault("notice.timeout", "30s")

	l.v.SetDefault("inbox.path", "")

	l.v.SetDefault("server.host", "127.0.0.1")
	l.v.SetDefault("server.port", 8787)
	l.v.SetDefault("server.cors_origins", []string{})
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}
