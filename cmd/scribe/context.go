package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scribe/internal/batch"
	"scribe/internal/config"
	"scribe/internal/logging"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = withExitCode(batch.ExitUsage, fmt.Errorf("load config: %w", err))
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// newLogger builds the run logger: config values, overridden by flags.
func (c *commandContext) newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts := logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	}
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		opts.Level = *c.logLevelFlag
	}
	if c.logFormatFlag != nil && strings.TrimSpace(*c.logFormatFlag) != "" {
		opts.Format = *c.logFormatFlag
	}
	if file := strings.TrimSpace(cfg.Logging.File); file != "" {
		opts.OutputPaths = append(opts.OutputPaths, file)
	}
	if len(opts.OutputPaths) == 1 {
		opts.Writer = cmd.ErrOrStderr()
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, withExitCode(batch.ExitUsage, err)
	}
	return logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
