package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directories owned by featprep itself.
type Paths struct {
	LogDir string `toml:"log_dir"`
}

// Environment names the variables that locate data on the host.
type Environment struct {
	DatasetVar   string   `toml:"dataset_var"`
	OutputVar    string   `toml:"output_var"`
	AdvisoryVars []string `toml:"advisory_vars"`
	LogFileVar   string   `toml:"log_file_var"`
}

// Data describes where the dataset and feature cache live below the roots.
type Data struct {
	DatasetSuffix string   `toml:"dataset_suffix"`
	CacheSuffix   string   `toml:"cache_suffix"`
	Splits        []string `toml:"splits"`
}

// Python configures the interpreter used to probe capability modules.
type Python struct {
	Binary              string   `toml:"binary"`
	Modules             []string `toml:"modules"`
	ProbeTimeoutSeconds int      `toml:"probe_timeout_seconds"`
}

// LanguageModel names the spaCy assets the text pipeline can load.
type LanguageModel struct {
	// Primary is the asset the text pipeline requires.
	Primary string `toml:"primary"`
	// Fallback is the smaller asset that is useful but not sufficient.
	Fallback string `toml:"fallback"`
	// Selected is the asset the experiment requests for English text.
	Selected string `toml:"selected"`
}

// ModelCache locates the Hugging Face model cache.
type ModelCache struct {
	Dir    string `toml:"dir"`
	Prefix string `toml:"prefix"`
}

// Tools names external binaries.
type Tools struct {
	FFmpeg string `toml:"ffmpeg"`
}

// Experiment configures the external extraction collaborator.
type Experiment struct {
	Command  []string `toml:"command"`
	Override string   `toml:"override"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level string `toml:"level"`
}

// Config encapsulates all configuration values for featprep.
//
// Configuration sections by subsystem:
//   - Paths: featprep's own state (run ledger)
//   - Environment: variable names for dataset/output roots and the log file
//   - Data: dataset/cache suffixes and the splits to build
//   - Python: interpreter and capability modules
//   - LanguageModel: spaCy assets and the one the experiment selects
//   - ModelCache: Hugging Face cache location
//   - Tools: external binaries
//   - Experiment: collaborator command and default override document
//   - Logging: log level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Environment   Environment   `toml:"environment"`
	Data          Data          `toml:"data"`
	Python        Python        `toml:"python"`
	LanguageModel LanguageModel `toml:"language_model"`
	ModelCache    ModelCache    `toml:"model_cache"`
	Tools         Tools         `toml:"tools"`
	Experiment    Experiment    `toml:"experiment"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/featprep/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("featprep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates directories featprep writes to.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// LedgerPath returns the location of the run ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.LogDir, "featprep.db")
}

// DatasetPath joins the dataset suffix onto the dataset root.
func (c *Config) DatasetPath(root string) string {
	return joinRoot(root, c.Data.DatasetSuffix)
}

// CachePath joins the cache suffix onto the output root.
func (c *Config) CachePath(root string) string {
	return joinRoot(root, c.Data.CacheSuffix)
}

// ModelCacheDir resolves the model cache directory: the configured dir, then
// the HF_HOME value supplied by the caller, then the conventional default.
func (c *Config) ModelCacheDir(hfHome string) string {
	if dir := strings.TrimSpace(c.ModelCache.Dir); dir != "" {
		return dir
	}
	if hfHome = strings.TrimSpace(hfHome); hfHome != "" {
		return hfHome
	}
	dir, err := expandPath(defaultModelCacheDir)
	if err != nil {
		return defaultModelCacheDir
	}
	return dir
}

// ProbeTimeoutSeconds returns the per-probe timeout for interpreter checks.
func (c *Config) ProbeTimeoutSeconds() int {
	if c.Python.ProbeTimeoutSeconds <= 0 {
		return defaultProbeTimeout
	}
	return c.Python.ProbeTimeoutSeconds
}

// joinRoot returns "" for an unset root; a root of "/" is a real path.
func joinRoot(root, suffix string) string {
	root = strings.TrimSpace(root)
	if root == "" {
		return ""
	}
	return filepath.Join(root, strings.TrimSpace(suffix))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
// The file is replaced atomically so a crash never leaves a truncated config.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := renameio.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
