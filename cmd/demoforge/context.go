package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"demoforge/internal/config"
	"demoforge/internal/daemonctl"
	"demoforge/internal/logging"
	"demoforge/internal/stage"
)

// stageAdapters overrides the production adapters for in-process runs.
// Tests replace it with stubs.
var stageAdapters func(*config.Config) (*stage.Adapters, error)

type commandContext struct {
	configFlag   *string
	bindFlag     *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag, bindFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		bindFlag:     bindFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) apiBind() string {
	if c.bindFlag != nil {
		if bind := strings.TrimSpace(*c.bindFlag); bind != "" {
			return bind
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIBind
	}
	return ""
}

func (c *commandContext) client() (*daemonctl.Client, error) {
	return daemonctl.NewClient(c.apiBind())
}

// daemonClient returns a client when the daemon answers, or nil.
func (c *commandContext) daemonClient(ctx context.Context) *daemonctl.Client {
	client, err := c.client()
	if err != nil {
		return nil
	}
	if _, err := client.Health(ctx); err != nil {
		return nil
	}
	return client
}

// requireDaemon returns a client or an error telling the user how to start
// the daemon.
func (c *commandContext) requireDaemon(ctx context.Context) (*daemonctl.Client, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}
	if _, err := client.Health(ctx); err != nil {
		if daemonctl.IsUnavailable(err) {
			return nil, fmt.Errorf("daemon is not reachable at %s; start it with `demoforge start`", client.BaseURL())
		}
		return nil, err
	}
	return client, nil
}

func (c *commandContext) logLevel(cfg *config.Config) string {
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	return cfg.Logging.Level
}

// runLogger writes in-process pipeline logs to the CLI log file so they do
// not interleave with progress output.
func (c *commandContext) runLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:       c.logLevel(cfg),
		Format:      "json",
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "demoforge.log")},
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
