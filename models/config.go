// Package models provides data structures for runner configuration.
//
// This file defines the biosim-runner.yml structure: where the backend lives,
// which input document to submit, where results go and how the containerized
// backend is brought up and down.
package models

import "time"

// ComposeConfig describes how the containerized backend is managed
type ComposeConfig struct {
	// Binary is the container CLI, invoked as "<binary> compose ..."
	Binary  string `json:"binary" yaml:"binary"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Project string `json:"project,omitempty" yaml:"project,omitempty"`
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// StartupDelay is the fixed wait after launching the backend.
	// There is no readiness probe.
	StartupDelay time.Duration `json:"startup_delay" yaml:"startup_delay"`

	// Disabled skips compose up/down for an already running backend
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// OutputConfig describes where fetched simulations are written
type OutputConfig struct {
	Dir string `json:"dir" yaml:"dir"`
	// Layout is "flat", "logdir" or "none"
	Layout string `json:"layout" yaml:"layout"`
}

// RunnerConfig represents the complete biosim-runner.yml structure
type RunnerConfig struct {
	BaseURL        string        `json:"base_url" yaml:"base_url"`
	InputFile      string        `json:"input_file" yaml:"input_file"`
	RequestTimeout time.Duration `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
	Compose        ComposeConfig `json:"compose" yaml:"compose"`
	Output         OutputConfig  `json:"output" yaml:"output"`
	LedgerPath     string        `json:"ledger,omitempty" yaml:"ledger,omitempty"`
	MetricsFile    string        `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
	LogLevel       string        `json:"log_level" yaml:"log_level"`
}

// DefaultRunnerConfig returns the configuration used when nothing is overridden
func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		BaseURL:   "http://localhost:8009/api",
		InputFile: "your_file.xml",
		Compose: ComposeConfig{
			Binary:       "docker",
			StartupDelay: 20 * time.Second,
		},
		Output: OutputConfig{
			Dir:    ".",
			Layout: "flat",
		},
		LogLevel: "info",
	}
}
