package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"biosim-runner/internal/config"
	"biosim-runner/models"
	"biosim-runner/output"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var initMagenta = lipgloss.Color("#7D56F4")

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create biosim-runner.yml in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
				return errors.New("init needs an interactive terminal")
			}

			cfg := models.DefaultRunnerConfig()
			if config.ConfigExists() {
				if err := config.LoadFile(config.ConfigFilename, cfg); err != nil {
					return err
				}
			}

			save, err := runInitForm(cmd, cfg)
			if err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return err
			}
			if !save {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Nothing written"))
				return nil
			}

			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(config.ConfigFilename, cfg); err != nil {
				return fmt.Errorf("failed to write %s: %w", config.ConfigFilename, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), savedStyle.Render("✅ Wrote "+config.ConfigFilename))
			return nil
		},
	}
}

// runInitForm edits cfg in place and reports whether it should be saved
func runInitForm(cmd *cobra.Command, cfg *models.RunnerConfig) (bool, error) {
	theme := huh.ThemeCharm()
	theme.Focused.Base = theme.Focused.Base.BorderForeground(initMagenta)
	theme.Focused.Title = theme.Focused.Title.Foreground(initMagenta)
	theme.Focused.TextInput.Cursor = theme.Focused.TextInput.Cursor.Foreground(initMagenta)
	theme.Focused.TextInput.Prompt = theme.Focused.TextInput.Prompt.Foreground(initMagenta)

	delay := cfg.Compose.StartupDelay.String()
	manageBackend := !cfg.Compose.Disabled
	save := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API Base URL").
				Description("Where the BioSim API is served").
				Value(&cfg.BaseURL).
				Validate(func(s string) error {
					u, err := url.Parse(s)
					if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
						return fmt.Errorf("must be an http(s) URL")
					}
					return nil
				}),

			huh.NewInput().
				Title("Input File").
				Description("XML document submitted with every start request").
				Value(&cfg.InputFile).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("must not be empty")
					}
					return nil
				}),

			huh.NewInput().
				Title("Output Directory").
				Value(&cfg.Output.Dir),

			huh.NewSelect[string]().
				Title("Output Layout").
				Options(
					huh.NewOption("flat: simulation_<id>.json", output.LayoutFlat),
					huh.NewOption("logdir: logs/sim_<id>/result.json", output.LayoutLogDir),
					huh.NewOption("none: fetch without saving", output.LayoutNone),
				).
				Value(&cfg.Output.Layout),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Manage Backend").
				Description("Start and stop the backend with docker compose?").
				Affirmative("Yes").
				Negative("No").
				Value(&manageBackend),

			huh.NewInput().
				Title("Compose File").
				Description("Leave empty for the compose default").
				Value(&cfg.Compose.File),

			huh.NewInput().
				Title("Startup Delay").
				Description("Fixed wait after starting the backend, e.g. 20s or 1500ms").
				Value(&delay).
				Validate(func(s string) error {
					_, err := parseDelay(s)
					return err
				}),

			huh.NewConfirm().
				Title("Save Configuration").
				Description("Write " + config.ConfigFilename + "?").
				Affirmative("Yes").
				Negative("No").
				Value(&save),
		),
	).
		WithWidth(60).
		WithShowHelp(true).
		WithShowErrors(true).
		WithTheme(theme)

	fmt.Fprint(cmd.OutOrStdout(), RenderHeader(cfg))
	if err := form.RunWithContext(cmd.Context()); err != nil {
		return false, err
	}

	d, err := parseDelay(delay)
	if err != nil {
		return false, err
	}
	cfg.Compose.StartupDelay = d
	cfg.Compose.Disabled = !manageBackend
	return save, nil
}

// parseDelay reads the startup delay field; bare numbers are seconds
func parseDelay(s string) (time.Duration, error) {
	d, err := config.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("must be a duration like 20s")
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}
