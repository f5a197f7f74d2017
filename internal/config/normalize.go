package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEnvironment()
	c.normalizeData()
	c.normalizePython()
	c.normalizeLanguageModel()
	c.normalizeExperiment()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if dir := strings.TrimSpace(c.ModelCache.Dir); dir != "" {
		if c.ModelCache.Dir, err = expandPath(dir); err != nil {
			return fmt.Errorf("model_cache.dir: %w", err)
		}
	}
	if override := strings.TrimSpace(c.Experiment.Override); override != "" {
		if c.Experiment.Override, err = expandPath(override); err != nil {
			return fmt.Errorf("experiment.override: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeEnvironment() {
	c.Environment.DatasetVar = strings.TrimSpace(c.Environment.DatasetVar)
	c.Environment.OutputVar = strings.TrimSpace(c.Environment.OutputVar)
	c.Environment.LogFileVar = strings.TrimSpace(c.Environment.LogFileVar)
	c.Environment.AdvisoryVars = dedupe(c.Environment.AdvisoryVars, false)
}

func (c *Config) normalizeData() {
	c.Data.DatasetSuffix = strings.TrimSpace(c.Data.DatasetSuffix)
	c.Data.CacheSuffix = strings.TrimSpace(c.Data.CacheSuffix)
	c.Data.Splits = dedupe(c.Data.Splits, true)
	if len(c.Data.Splits) == 0 {
		c.Data.Splits = append([]string(nil), defaultSplits...)
	}
}

func (c *Config) normalizePython() {
	c.Python.Binary = strings.TrimSpace(c.Python.Binary)
	if c.Python.Binary == "" {
		c.Python.Binary = defaultPythonBinary
	}
	c.Python.Modules = dedupe(c.Python.Modules, false)
}

func (c *Config) normalizeLanguageModel() {
	c.LanguageModel.Primary = strings.TrimSpace(c.LanguageModel.Primary)
	c.LanguageModel.Fallback = strings.TrimSpace(c.LanguageModel.Fallback)
	c.LanguageModel.Selected = strings.TrimSpace(c.LanguageModel.Selected)
	c.ModelCache.Prefix = strings.TrimSpace(c.ModelCache.Prefix)
	if c.ModelCache.Prefix == "" {
		c.ModelCache.Prefix = defaultModelCachePrefix
	}
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
}

func (c *Config) normalizeExperiment() {
	command := make([]string, 0, len(c.Experiment.Command))
	for _, arg := range c.Experiment.Command {
		if arg = strings.TrimSpace(arg); arg != "" {
			command = append(command, arg)
		}
	}
	c.Experiment.Command = command
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func dedupe(values []string, lower bool) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if lower {
			value = strings.ToLower(value)
		}
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
