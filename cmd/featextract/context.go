package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"featprep/internal/config"
	"featprep/internal/deps"
	"featprep/internal/experiment"
)

// factoryBuilder constructs the collaborator for one run.
type factoryBuilder func(cfg *config.Config, workDir string, progress io.Writer, logger *slog.Logger) (experiment.Factory, error)

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	newFactory factoryBuilder
	getenv     func(string) string
}

type contextOption func(*commandContext)

// withFactory replaces the subprocess collaborator (primarily for tests).
func withFactory(builder factoryBuilder) contextOption {
	return func(c *commandContext) {
		if builder != nil {
			c.newFactory = builder
		}
	}
}

func newCommandContext(configFlag *string, opts ...contextOption) *commandContext {
	c := &commandContext{
		configFlag: configFlag,
		newFactory: commandFactory,
		getenv:     os.Getenv,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func commandFactory(cfg *config.Config, workDir string, progress io.Writer, logger *slog.Logger) (experiment.Factory, error) {
	if len(cfg.Experiment.Command) > 0 {
		status := deps.CheckBinary(deps.Requirement{
			Name:        "experiment",
			Command:     cfg.Experiment.Command[0],
			Description: "Extraction collaborator",
		})
		if !status.Available {
			return nil, fmt.Errorf("experiment.command: %s", status.Detail)
		}
	}
	factory, err := experiment.NewCommandFactory(cfg.Experiment.Command, workDir, progress, experiment.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return factory, nil
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

// env treats an empty value as unset.
func (c *commandContext) env(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	return strings.TrimSpace(c.getenv(name))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
