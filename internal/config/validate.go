package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEnvironment(); err != nil {
		return err
	}
	if err := c.validateLanguageModel(); err != nil {
		return err
	}
	if err := c.validateExperiment(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEnvironment() error {
	if c.Environment.DatasetVar == "" {
		return errors.New("environment.dataset_var must be set")
	}
	if c.Environment.OutputVar == "" {
		return errors.New("environment.output_var must be set")
	}
	if c.Environment.DatasetVar == c.Environment.OutputVar {
		return fmt.Errorf("environment.dataset_var and environment.output_var must differ (both %q)", c.Environment.DatasetVar)
	}
	return nil
}

func (c *Config) validateLanguageModel() error {
	if c.LanguageModel.Primary == "" {
		return errors.New("language_model.primary must be set")
	}
	return nil
}

func (c *Config) validateExperiment() error {
	if len(c.Experiment.Command) == 0 {
		return errors.New("experiment.command must name the extraction command")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
