// Package config provides configuration management for the BioSim runner.
//
// This file handles loading configuration from biosim-runner.yml, .env files and
// environment variables, and creating configured BioSim clients.
// Order: defaults -> config file -> .env / environment -> command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	biosim "biosim-runner"
	"biosim-runner/models"
	"biosim-runner/output"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFilename is the config file looked up in the working directory
const ConfigFilename = "biosim-runner.yml"

// Disabled as the ledger path turns the run ledger off
const Disabled = "none"

// Environment variables read by ApplyEnv
const (
	EnvBaseURL        = "BIOSIM_BASE_URL"
	EnvInputFile      = "BIOSIM_INPUT_FILE"
	EnvOutputDir      = "BIOSIM_OUTPUT_DIR"
	EnvLayout         = "BIOSIM_LAYOUT"
	EnvStartupDelay   = "BIOSIM_STARTUP_DELAY"
	EnvComposeFile    = "BIOSIM_COMPOSE_FILE"
	EnvComposeProject = "BIOSIM_COMPOSE_PROJECT"
	EnvLedger         = "BIOSIM_LEDGER"
	EnvMetricsFile    = "BIOSIM_METRICS_FILE"
	EnvLogLevel       = "BIOSIM_LOG_LEVEL"
	EnvRequestTimeout = "BIOSIM_REQUEST_TIMEOUT"
)

// ConfigExists checks if biosim-runner.yml exists in the current directory
func ConfigExists() bool {
	_, err := os.Stat(ConfigFilename)
	return err == nil
}

// Load builds the runner configuration. An explicit path must exist; with an
// empty path the default file is used only when present.
func Load(path string) (*models.RunnerConfig, error) {
	cfg := models.DefaultRunnerConfig()

	if path == "" && ConfigExists() {
		path = ConfigFilename
	}
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	// A missing .env is not an error
	_ = godotenv.Load()

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg
func LoadFile(path string, cfg *models.RunnerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Save writes cfg as YAML to path
func Save(path string, cfg *models.RunnerConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides cfg with any BIOSIM_* environment variables that are set
func ApplyEnv(cfg *models.RunnerConfig) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString(EnvBaseURL, &cfg.BaseURL)
	setString(EnvInputFile, &cfg.InputFile)
	setString(EnvOutputDir, &cfg.Output.Dir)
	setString(EnvLayout, &cfg.Output.Layout)
	setString(EnvComposeFile, &cfg.Compose.File)
	setString(EnvComposeProject, &cfg.Compose.Project)
	setString(EnvLedger, &cfg.LedgerPath)
	setString(EnvMetricsFile, &cfg.MetricsFile)
	setString(EnvLogLevel, &cfg.LogLevel)

	if v := os.Getenv(EnvStartupDelay); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return &biosim.ValidationError{Field: EnvStartupDelay, Message: err.Error()}
		}
		cfg.Compose.StartupDelay = d
	}
	if v := os.Getenv(EnvRequestTimeout); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return &biosim.ValidationError{Field: EnvRequestTimeout, Message: err.Error()}
		}
		cfg.RequestTimeout = d
	}
	return nil
}

// ParseDuration accepts Go durations ("20s", "1500ms") and bare seconds ("20")
func ParseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Validate checks cfg for values that cannot work
func Validate(cfg *models.RunnerConfig) error {
	var errs []error

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, &biosim.ValidationError{Field: "base_url", Message: fmt.Sprintf("%q is not an http(s) URL", cfg.BaseURL)})
	}
	if strings.TrimSpace(cfg.InputFile) == "" {
		errs = append(errs, &biosim.ValidationError{Field: "input_file", Message: "must not be empty"})
	}
	if cfg.Compose.StartupDelay < 0 {
		errs = append(errs, &biosim.ValidationError{Field: "compose.startup_delay", Message: "must not be negative"})
	}
	if cfg.RequestTimeout < 0 {
		errs = append(errs, &biosim.ValidationError{Field: "request_timeout", Message: "must not be negative"})
	}
	if _, err := output.NewWriter(cfg.Output.Layout, cfg.Output.Dir); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// NewClient creates a BioSim client from cfg
func NewClient(cfg *models.RunnerConfig) *biosim.BiosimClient {
	var opts []biosim.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, biosim.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, biosim.WithTimeout(cfg.RequestTimeout))
	}
	return biosim.NewClient(opts...)
}

// HomeDir returns ~/.biosim, where the ledger, lock and debug log live
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".biosim"), nil
}

// LedgerPath resolves the ledger location; "" means the ledger is disabled
func LedgerPath(cfg *models.RunnerConfig) (string, error) {
	switch cfg.LedgerPath {
	case Disabled:
		return "", nil
	case "":
		dir, err := HomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "runs.db"), nil
	default:
		return cfg.LedgerPath, nil
	}
}

// LockPath returns the host-wide run lock location
func LockPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runner.lock"), nil
}
