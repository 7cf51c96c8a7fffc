package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/inbox"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/render"
)

// loadConfig loads and validates configuration using global viper, so flag
// bindings apply.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the command logger. The returned closer releases the log
// file, if one is configured.
func newLogger(cfg *config.Config) (*logging.Logger, func() error, error) {
	level := cfg.Log.Level
	if quiet {
		level = "warn"
	}
	return logging.NewWithFile(logging.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	}, cfg.Log.File)
}

// commandEnv is what most report commands need.
type commandEnv struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *inbox.Store
	closer func() error
}

func (e *commandEnv) Close() error {
	var storeErr error
	if e.store != nil {
		storeErr = e.store.Close()
	}
	if err := e.closer(); err != nil {
		return err
	}
	return storeErr
}

func openEnv() (*commandEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, closer, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	store, err := inbox.Open(cfg.InboxPath(), inbox.WithLogger(logger.Logger))
	if err != nil {
		_ = closer()
		return nil, err
	}
	return &commandEnv{cfg: cfg, logger: logger, store: store, closer: closer}, nil
}

// renderOptions styles markdown only on a color terminal.
func renderOptions(w io.Writer) render.Options {
	return render.Options{Styled: !noColor && logging.IsTerminal(w)}
}
