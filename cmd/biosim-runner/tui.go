package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"biosim-runner/internal/ledger"
	"biosim-runner/internal/metrics"
	"biosim-runner/runner"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type RunModel struct {
	header     string
	run        func(ctx context.Context) (*runner.Summary, error)
	ctx        context.Context
	cancel     context.CancelFunc
	spinner    spinner.Model
	elapsed    stopwatch.Model
	events     []runner.Event
	statusChan chan runner.Event
	summary    *runner.Summary
	err        error
	finished   bool
	stopping   bool
}

type runStatusUpdateMsg struct {
	event runner.Event
	ok    bool
}

type runFinishedMsg struct {
	summary *runner.Summary
	err     error
}

func startRun(ctx context.Context, run func(ctx context.Context) (*runner.Summary, error), statusChan chan runner.Event) tea.Cmd {
	return func() tea.Msg {
		summary, err := run(ctx)
		close(statusChan)
		return runFinishedMsg{summary: summary, err: err}
	}
}

func waitForRunStatusUpdates(statusChan <-chan runner.Event) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-statusChan:
			if !ok {
				return runStatusUpdateMsg{}
			}
			return runStatusUpdateMsg{event: ev, ok: true}
		case <-time.After(100 * time.Millisecond):
			return runStatusUpdateMsg{ok: true}
		}
	}
}

func NewRunModel(ctx context.Context, header string, statusChan chan runner.Event, run func(ctx context.Context) (*runner.Summary, error)) RunModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ctx, cancel := context.WithCancel(ctx)
	return RunModel{
		header:     header,
		run:        run,
		ctx:        ctx,
		cancel:     cancel,
		spinner:    s,
		elapsed:    stopwatch.NewWithInterval(time.Second),
		statusChan: statusChan,
	}
}

func (m RunModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.elapsed.Init(),
		startRun(m.ctx, m.run, m.statusChan),
		waitForRunStatusUpdates(m.statusChan),
	)
}

func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runStatusUpdateMsg:
		if msg.event.Message != "" {
			m.events = append(m.events, msg.event)
		}
		// Keep listening until the run closes the channel
		if msg.ok {
			return m, waitForRunStatusUpdates(m.statusChan)
		}
		return m, nil

	case runFinishedMsg:
		// Drain events emitted after the last poll
		for ev := range m.statusChan {
			m.events = append(m.events, ev)
		}
		m.summary = msg.summary
		m.err = msg.err
		m.finished = true
		m.cancel()
		return m, tea.Sequence(m.elapsed.Stop(), tea.Quit)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// The backend still has to come down, so wait for the run to return
			if !m.stopping {
				m.stopping = true
				m.cancel()
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stopwatch.TickMsg, stopwatch.StartStopMsg:
		var cmd tea.Cmd
		m.elapsed, cmd = m.elapsed.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m RunModel) View() string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#CCCCCC")).
		MarginLeft(2)

	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginLeft(4)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginLeft(4)

	var content string
	content += m.header + "\n"

	for i, ev := range m.events {
		switch {
		case ev.Failure():
			content += errorStyle.Render(fmt.Sprintf("  ❌ %s", ev.Message)) + "\n"
		case i == len(m.events)-1 && !m.finished:
			content += style.Render(fmt.Sprintf("  %s %s", m.spinner.View(), ev.Message)) + "\n"
		default:
			content += statusStyle.Render(fmt.Sprintf("  ✓ %s", ev.Message)) + "\n"
		}
	}

	content += "\n" + statusStyle.Render(fmt.Sprintf("  elapsed %s", m.elapsed.View())) + "\n"

	if m.stopping && !m.finished {
		content += "\n" + statusStyle.Render("  Stopping, waiting for the backend to shut down...") + "\n"
	}
	if m.finished && m.err != nil {
		content += "\n" + errorStyle.Render(fmt.Sprintf("  ❌ %v", m.err)) + "\n"
	}

	return content
}

// runWithTUI runs the pipeline behind a spinner view fed by runner events
func runWithTUI(ctx context.Context, a *app, l *ledger.Ledger, m *metrics.RunMetrics) (*runner.Summary, error) {
	statusChan := make(chan runner.Event, 32)
	done := make(chan struct{})
	defer close(done)

	status := func(ev runner.Event) {
		select {
		case statusChan <- ev:
		case <-done:
		}
	}

	r, err := a.newRunner(status, l, m)
	if err != nil {
		return nil, err
	}

	model := NewRunModel(ctx, RenderHeader(a.cfg), statusChan, r.Run)
	final, err := tea.NewProgram(model, tea.WithoutSignalHandler()).Run()
	if err != nil {
		// The program can stop before the run returned; nothing reads events then
		return nil, fmt.Errorf("could not run progress view: %w", err)
	}

	fm := final.(RunModel)
	printSummary(os.Stdout, fm.summary)
	return fm.summary, fm.err
}
