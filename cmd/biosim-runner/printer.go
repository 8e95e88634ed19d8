package main

import (
	"fmt"
	"io"

	"biosim-runner/runner"

	"github.com/charmbracelet/lipgloss"
)

var (
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	listStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	savedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// linePrinter renders runner events as one status line each
type linePrinter struct {
	w io.Writer
}

func (p linePrinter) Print(ev runner.Event) {
	var line string
	switch ev.Step {
	case runner.StepList:
		line = listStyle.Render("📋 " + ev.Message)
	case runner.StepFetch:
		line = stepStyle.Render("📦 " + ev.Message)
	case runner.StepSaved:
		line = savedStyle.Render("✅ " + ev.Message)
	case runner.StepFetchFailed:
		line = failureStyle.Render("❌ " + ev.Message)
	case runner.StepDone:
		line = mutedStyle.Render(ev.Message)
	default:
		line = stepStyle.Render("• " + ev.Message)
	}
	fmt.Fprintln(p.w, line)
}

func printSummary(w io.Writer, s *runner.Summary) {
	if s == nil {
		return
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf(
		"run %s: %d start requests, %d listed, %d saved, %d failed",
		s.RunID, s.StartRequests, len(s.Listed), len(s.Saved), len(s.Failed))))
}
