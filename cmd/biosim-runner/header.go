package main

import (
	"fmt"
	"strings"

	"biosim-runner/models"

	"github.com/charmbracelet/lipgloss"
)

// Build information - these are set via ldflags during build
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

var (
	headerTitle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true).
			MarginTop(1).
			MarginLeft(2)

	headerDetail = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginLeft(2)
)

func versionString() string {
	v := "v" + version
	if gitCommit != "unknown" && len(gitCommit) > 7 {
		v += " (" + gitCommit[:7] + ")"
	}
	return v
}

// RenderHeader shows the build and where this run reads from and writes to
func RenderHeader(cfg *models.RunnerConfig) string {
	var b strings.Builder
	b.WriteString(headerTitle.Render("BioSim Runner " + versionString()))
	b.WriteString("\n")

	backend := "compose"
	if cfg.Compose.Disabled {
		backend = "external"
	}
	details := []string{
		fmt.Sprintf("api     %s (%s backend)", cfg.BaseURL, backend),
		fmt.Sprintf("input   %s", cfg.InputFile),
		fmt.Sprintf("output  %s [%s]", cfg.Output.Dir, cfg.Output.Layout),
	}
	for _, d := range details {
		b.WriteString(headerDetail.Render(d))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
