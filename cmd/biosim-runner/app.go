package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"biosim-runner/internal/config"
	"biosim-runner/internal/ledger"
	"biosim-runner/internal/metrics"
	iutils "biosim-runner/internal/utils"
	"biosim-runner/models"
	"biosim-runner/output"
	"biosim-runner/runner"
	"biosim-runner/utils"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// loadConfig resolves the configuration for cmd: defaults, config file,
// environment, then any flags given on the command line.
func loadConfig(cmd *cobra.Command) (*models.RunnerConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags overrides cfg with the flags explicitly set on cmd
func applyFlags(cmd *cobra.Command, cfg *models.RunnerConfig) {
	flags := cmd.Flags()
	setString := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	setString("base-url", &cfg.BaseURL)
	setString("input", &cfg.InputFile)
	setString("output-dir", &cfg.Output.Dir)
	setString("layout", &cfg.Output.Layout)
	setString("compose-file", &cfg.Compose.File)
	setString("ledger", &cfg.LedgerPath)
	setString("metrics-file", &cfg.MetricsFile)
	setString("log-level", &cfg.LogLevel)

	if flags.Changed("startup-delay") {
		cfg.Compose.StartupDelay, _ = flags.GetDuration("startup-delay")
	}
	if flags.Changed("no-backend") {
		cfg.Compose.Disabled, _ = flags.GetBool("no-backend")
	}
}

// app holds what every command needs once configuration is resolved
type app struct {
	cfg     *models.RunnerConfig
	logger  *slog.Logger
	closers []io.Closer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	dir, err := config.HomeDir()
	if err != nil {
		a.logger = iutils.NewLogger(cfg.LogLevel, cmd.ErrOrStderr())
		a.logger.Warn("debug log disabled", "error", err)
		return a, nil
	}

	logger, closer, err := iutils.InitLogger(dir, cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		logger.Warn("debug log disabled", "error", err)
	}
	a.logger = logger
	a.closers = append(a.closers, closer)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// openLedger opens the configured ledger. Failing to open it does not stop a
// run; the run simply goes unrecorded.
func (a *app) openLedger() *ledger.Ledger {
	path, err := config.LedgerPath(a.cfg)
	if err != nil {
		a.logger.Warn("run ledger disabled", "error", err)
		return nil
	}
	if path == "" {
		return nil
	}

	l, err := ledger.Open(path)
	if err != nil {
		a.logger.Warn("run ledger disabled", "path", path, "error", err)
		return nil
	}
	a.closers = append(a.closers, l)
	a.logger.Debug("run ledger opened", "path", path)
	return l
}

// newRunner wires the runner for a, reporting progress through status
func (a *app) newRunner(status func(runner.Event), l *ledger.Ledger, m *metrics.RunMetrics) (*runner.Runner, error) {
	writer, err := output.NewWriter(a.cfg.Output.Layout, a.cfg.Output.Dir)
	if err != nil {
		return nil, err
	}

	var backend runner.Backend
	if !a.cfg.Compose.Disabled {
		backend = utils.NewCompose(a.cfg.Compose, a.logger)
	}

	client := config.NewClient(a.cfg)
	return runner.New(runner.Options{
		API:          client.Simulation,
		Writer:       writer,
		Backend:      backend,
		InputFile:    a.cfg.InputFile,
		BaseURL:      client.GetBaseURL(),
		StartupDelay: a.cfg.Compose.StartupDelay,
		Ledger:       l,
		Metrics:      m,
		Logger:       a.logger,
		Status:       status,
	})
}

// checkBackendPort warns when a managed local backend's port is already
// taken before compose up, usually a backend left over from an earlier run.
func (a *app) checkBackendPort() {
	if a.cfg.Compose.Disabled {
		return
	}
	addr, err := utils.BackendAddr(a.cfg.BaseURL)
	if err != nil || !utils.IsLocalAddr(addr) {
		return
	}
	if utils.IsPortInUse(addr) {
		a.logger.Warn("backend port already in use before startup", "addr", addr)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// runPipeline executes one full lifecycle run
func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	lockPath, err := config.LockPath()
	if err != nil {
		return err
	}
	lock, err := utils.AcquireRunLock(ctx, lockPath)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	a.checkBackendPort()
	l := a.openLedger()

	var m *metrics.RunMetrics
	if a.cfg.MetricsFile != "" {
		m = metrics.New()
	}

	useTUI, _ := cmd.Flags().GetBool("tui")
	if useTUI && !isTerminal(os.Stdout) {
		a.logger.Warn("stdout is not a terminal, falling back to plain output")
		useTUI = false
	}

	var summary *runner.Summary
	if useTUI {
		summary, err = runWithTUI(ctx, a, l, m)
	} else {
		summary, err = runPlain(ctx, cmd.OutOrStdout(), a, l, m)
	}

	if m != nil {
		if werr := m.WriteTextfile(a.cfg.MetricsFile); werr != nil {
			a.logger.Warn("metrics not written", "error", werr)
		}
	}

	if summary != nil {
		a.logger.Info("run finished",
			"run_id", summary.RunID,
			"listed", len(summary.Listed),
			"saved", len(summary.Saved),
			"failed", len(summary.Failed),
			"duration", summary.Duration)
	}

	return interruptErr(ctx, err)
}

func runPlain(ctx context.Context, out io.Writer, a *app, l *ledger.Ledger, m *metrics.RunMetrics) (*runner.Summary, error) {
	fmt.Fprint(out, RenderHeader(a.cfg))

	p := linePrinter{w: out}
	r, err := a.newRunner(p.Print, l, m)
	if err != nil {
		return nil, err
	}

	summary, err := r.Run(ctx)
	printSummary(out, summary)
	return summary, err
}
