package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ieee0824/ctcdecode"
	"github.com/ieee0824/ctcdecode/internal/config"
	"github.com/ieee0824/ctcdecode/internal/observe"
	"github.com/ieee0824/ctcdecode/internal/runstore"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	config   string
	envFile  string
	logLevel string
	format   string
	metrics  bool
	strict   bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logger   *slog.Logger
	provider *observe.Provider
	metrics  *observe.Metrics
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// loadEnvFile exports the variables of the env file without overriding the
// process environment. A missing default file is not an error.
func (c *commandContext) loadEnvFile(cmd *cobra.Command) error {
	path := strings.TrimSpace(c.flags.envFile)
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}
	return fmt.Errorf("load env file: %w", err)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if lvl := strings.TrimSpace(c.flags.logLevel); lvl != "" {
			cfg.Log.Level = strings.ToLower(lvl)
			if err := config.Validate(cfg); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// log returns the command logger writing text records to stderr.
func (c *commandContext) log(cmd *cobra.Command) *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	level := slog.LevelInfo
	if c.config != nil {
		_ = level.UnmarshalText([]byte(c.config.Log.Level))
	}
	c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return c.logger
}

func (c *commandContext) startTelemetry(cmd *cobra.Command) error {
	if !c.flags.metrics {
		return nil
	}
	p, err := observe.InitProvider(cmd.Context(), observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	m, err := p.Metrics()
	if err != nil {
		_ = p.Shutdown(cmd.Context())
		return fmt.Errorf("create metrics: %w", err)
	}
	c.provider, c.metrics = p, m
	return nil
}

// finish prints collected metrics and shuts the telemetry down.
func (c *commandContext) finish(cmd *cobra.Command) error {
	if c.provider == nil {
		return nil
	}
	ctx := context.WithoutCancel(cmd.Context())
	err := c.provider.Report(ctx, cmd.ErrOrStderr())
	return errors.Join(err, c.provider.Shutdown(ctx))
}

// decoder builds a decoder from the loaded configuration.
func (c *commandContext) decoder(cmd *cobra.Command, opts ...ctcdecode.Option) (*ctcdecode.Decoder, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	base := []ctcdecode.Option{ctcdecode.WithLogger(c.log(cmd))}
	if c.metrics != nil {
		base = append(base, ctcdecode.WithMetrics(c.metrics))
	}
	if c.flags.strict {
		base = append(base, ctcdecode.WithStrictFrames())
	}
	return ctcdecode.NewFromConfig(cmd.Context(), cfg, append(base, opts...)...)
}

// openStore opens the run database, or returns nil when none is configured.
func (c *commandContext) openStore(cmd *cobra.Command) (*runstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Path == "" {
		return nil, nil
	}
	store, err := runstore.Open(cmd.Context(), cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return store, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
