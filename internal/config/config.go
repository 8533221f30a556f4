package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	WorkDir   string `toml:"work_dir"`
	LogDir    string `toml:"log_dir"`
}

// Scheduler contains admission and queue policy settings.
type Scheduler struct {
	AutoStartQueue        bool `toml:"auto_start_queue"`
	MaxConcurrent         int  `toml:"max_concurrent"` // 0 lets the capability tier decide
	AckTimeoutSeconds     int  `toml:"ack_timeout_seconds"`
	GraceMillis           int  `toml:"emergency_grace_millis"`
	ThrottleCheckSeconds  int  `toml:"throttle_check_seconds"`
	AllowQualityDowngrade bool `toml:"allow_quality_downgrade"`
}

// Resource contains snapshot provider settings.
type Resource struct {
	ProbeIntervalSeconds int     `toml:"probe_interval_seconds"`
	ProcessorScore       float64 `toml:"processor_score"` // 0 means auto-detect
}

// Engine contains codec engine settings.
type Engine struct {
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// History contains terminal-session persistence settings.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // defaults to <log_dir>/history.db
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shrinkray.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Scheduler Scheduler `toml:"scheduler"`
	Resource  Resource  `toml:"resource"`
	Engine    Engine    `toml:"engine"`
	History   History   `toml:"history"`
	Logging   Logging   `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: "~/Videos/shrinkray",
			WorkDir:   "~/.local/share/shrinkray/work",
			LogDir:    "~/.local/share/shrinkray/logs",
		},
		Scheduler: Scheduler{
			AutoStartQueue:        true,
			MaxConcurrent:         0,
			AckTimeoutSeconds:     5,
			GraceMillis:           500,
			ThrottleCheckSeconds:  10,
			AllowQualityDowngrade: true,
		},
		Resource: Resource{
			ProbeIntervalSeconds: 5,
		},
		Engine: Engine{
			FFmpegBinary: "ffmpeg",
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shrinkray/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return is
// the resolved path and the third reports whether a file existed there.
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
	projectPath, err := filepath.Abs("shrinkray.toml")
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

func (c *Config) normalize() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = filepath.Join(c.Paths.LogDir, "history.db")
	} else if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		problems = append(problems, "paths.output_dir must not be empty")
	}
	if c.Scheduler.MaxConcurrent < 0 {
		problems = append(problems, "scheduler.max_concurrent must not be negative")
	}
	if c.Scheduler.AckTimeoutSeconds <= 0 {
		problems = append(problems, "scheduler.ack_timeout_seconds must be positive")
	}
	if c.Scheduler.ThrottleCheckSeconds <= 0 {
		problems = append(problems, "scheduler.throttle_check_seconds must be positive")
	}
	if c.Resource.ProbeIntervalSeconds <= 0 {
		problems = append(problems, "resource.probe_interval_seconds must be positive")
	}
	if c.Resource.ProcessorScore < 0 || c.Resource.ProcessorScore > 1 {
		problems = append(problems, "resource.processor_score must lie in [0, 1]")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("configuration error: %s", strings.Join(problems, "; "))
	}
	return nil
}

// EnsureDirectories creates the directories the orchestrator needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
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
