package main

import (
	"fmt"
	"strconv"
	"time"

	"biosim-runner/internal/config"
	"biosim-runner/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the simulations known to a running backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			client := config.NewClient(a.cfg)
			ids, err := client.Simulation.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list simulations: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			a.logger.Debug("listed simulations", "count", len(ids))
			return nil
		},
	}
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <simulation-id>...",
		Short: "Fetch and save simulations from a running backend",
		Long: `Fetch downloads the given simulations from an already running backend and
writes them with the configured output layout. The backend is not started
or stopped, and nothing is recorded in the run ledger.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ids := make([]models.SimulationID, len(args))
			for i, arg := range args {
				ids[i] = models.SimulationID(arg)
			}

			out := cmd.OutOrStdout()
			p := linePrinter{w: out}
			r, err := a.newRunner(p.Print, nil, nil)
			if err != nil {
				return err
			}

			summary, err := r.Fetch(cmd.Context(), ids)
			printSummary(out, summary)
			return interruptErr(cmd.Context(), err)
		},
	}
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show recent runs from the run ledger",
		Long: `Without arguments, runs lists the most recent runs. Given a run id it
shows the outcome of every simulation fetched during that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			l := a.openLedger()
			if l == nil {
				return fmt.Errorf("run ledger is disabled")
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				fetches, err := l.Fetches(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(fetches) == 0 {
					fmt.Fprintf(out, "No fetches recorded for run %s\n", args[0])
					return nil
				}
				t := newTable("SIMULATION", "STATUS", "PATH", "FETCHED")
				for _, f := range fetches {
					t.Row(f.SimulationID, strconv.Itoa(f.Status), f.Path, formatWhen(f.FetchedAt))
				}
				fmt.Fprintln(out, t.Render())
				return nil
			}

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := l.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}

			t := newTable("RUN", "STARTED", "DURATION", "LISTED", "SAVED", "FAILED", "ERROR")
			for _, r := range runs {
				duration := "-"
				if !r.FinishedAt.IsZero() {
					duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				t.Row(r.ID, formatWhen(r.StartedAt), duration,
					strconv.Itoa(r.Listed), strconv.Itoa(r.Saved), strconv.Itoa(r.Failed), r.Error)
			}
			fmt.Fprintln(out, t.Render())
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "Number of runs to show")
	return cmd
}

func newTable(headers ...string) *table.Table {
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
