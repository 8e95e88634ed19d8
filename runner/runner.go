// Package runner drives the BioSim backend through one lifecycle run.
//
// A run brings the containerized backend up, waits a fixed startup delay,
// creates a simulation context, submits the input document StartRuns times,
// lists the simulations the backend knows about, fetches and saves each one
// and finally tears the backend down. Every step is sequential and blocking.
// Only a non-200 answer to a single simulation fetch is tolerated: it is
// reported and the remaining simulations are still processed.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	biosim "biosim-runner"
	"biosim-runner/internal/ledger"
	"biosim-runner/internal/metrics"
	"biosim-runner/models"
	"biosim-runner/output"
	"biosim-runner/services"
	"biosim-runner/utils"
)

// StartRuns is the number of start requests submitted per run
const StartRuns = 3

// teardownTimeout bounds the backend shutdown once the run context is gone
const teardownTimeout = 2 * time.Minute

// Backend brings the simulation service up and down
type Backend interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
}

// SimulationAPI is the subset of the BioSim API a run needs
type SimulationAPI interface {
	Create(ctx context.Context) error
	Start(ctx context.Context, config []byte) error
	List(ctx context.Context) ([]models.SimulationID, error)
	Get(ctx context.Context, id models.SimulationID) (json.RawMessage, error)
}

var _ SimulationAPI = (*services.SimulationService)(nil)

// Options configures a Runner
type Options struct {
	API     SimulationAPI
	Writer  output.Writer
	Backend Backend // nil when the backend is managed elsewhere

	InputFile    string
	BaseURL      string
	StartupDelay time.Duration

	Ledger  *ledger.Ledger
	Metrics *metrics.RunMetrics
	Logger  *slog.Logger

	// Status receives progress events; may be nil
	Status func(Event)
}

// Saved is a simulation written to disk
type Saved struct {
	ID   models.SimulationID
	Path string
}

// Failed is a simulation whose fetch was answered with a non-200 status
type Failed struct {
	ID     models.SimulationID
	Status int
}

// Summary describes what a run did
type Summary struct {
	RunID         string
	StartRequests int
	Listed        []models.SimulationID
	Saved         []Saved
	Failed        []Failed
	Duration      time.Duration
}

// Runner executes lifecycle runs
type Runner struct {
	opts Options
	wait func(ctx context.Context, d time.Duration) error
}

// New validates the options and returns a Runner
func New(opts Options) (*Runner, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("runner: simulation API is required")
	}
	if opts.Writer == nil {
		opts.Writer = output.NullWriter{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{opts: opts, wait: utils.WaitStartup}, nil
}

func (r *Runner) emit(ev Event) {
	r.opts.Logger.Debug(ev.Message, "step", ev.Step.String())
	if r.opts.Status != nil {
		r.opts.Status(ev)
	}
}

// Run performs one full lifecycle run. The returned summary is never nil and
// reflects the progress made even when an error is returned.
func (r *Runner) Run(ctx context.Context) (summary *Summary, err error) {
	started := time.Now()
	summary = &Summary{RunID: ledger.NewRunID()}
	log := r.opts.Logger.With("run_id", summary.RunID)

	record := &ledger.Run{
		ID:        summary.RunID,
		StartedAt: started,
		BaseURL:   r.opts.BaseURL,
		InputFile: r.opts.InputFile,
	}
	if lerr := r.opts.Ledger.BeginRun(ctx, record); lerr != nil {
		log.Warn("ledger unavailable for this run", "error", lerr)
	}

	defer func() {
		summary.Duration = time.Since(started)
		record.StartRequests = summary.StartRequests
		record.Listed = len(summary.Listed)
		record.Saved = len(summary.Saved)
		record.Failed = len(summary.Failed)
		if err != nil {
			record.Error = err.Error()
		}
		if lerr := r.opts.Ledger.FinishRun(context.WithoutCancel(ctx), record); lerr != nil {
			log.Warn("failed to finish ledger run", "error", lerr)
		}
		if r.opts.Metrics != nil {
			r.opts.Metrics.Finish(started, err)
		}
		r.emit(Event{Step: StepDone, Message: fmt.Sprintf("Run %s finished in %s", summary.RunID, summary.Duration.Round(time.Millisecond))})
	}()

	if err := r.opts.Writer.Open(summary.RunID); err != nil {
		return summary, fmt.Errorf("failed to open output: %w", err)
	}
	defer func() {
		if cerr := r.opts.Writer.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close output: %w", cerr))
		}
	}()

	if r.opts.Backend != nil {
		r.emit(Event{Step: StepBackendUp, Message: "Starting backend"})
		if err := r.opts.Backend.Up(ctx); err != nil {
			return summary, fmt.Errorf("failed to start backend: %w", err)
		}
		defer func() {
			r.emit(Event{Step: StepBackendDown, Message: "Stopping backend"})
			downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
			defer cancel()
			if derr := r.opts.Backend.Down(downCtx); derr != nil {
				err = errors.Join(err, fmt.Errorf("failed to stop backend: %w", derr))
			}
		}()

		r.emit(Event{Step: StepWaitReady, Message: fmt.Sprintf("Waiting %s for backend startup", r.opts.StartupDelay)})
		if err := r.wait(ctx, r.opts.StartupDelay); err != nil {
			return summary, fmt.Errorf("interrupted while waiting for backend: %w", err)
		}
	}

	r.emit(Event{Step: StepCreate, Message: "Creating simulation context"})
	if err := r.opts.API.Create(ctx); err != nil {
		return summary, fmt.Errorf("failed to create simulation: %w", err)
	}

	r.emit(Event{Step: StepReadInput, Message: fmt.Sprintf("Reading %s", r.opts.InputFile)})
	config, err := os.ReadFile(r.opts.InputFile)
	if err != nil {
		return summary, fmt.Errorf("failed to read input file: %w", err)
	}
	if err := r.opts.Writer.WriteConfig(config); err != nil {
		return summary, fmt.Errorf("failed to record input: %w", err)
	}

	for i := 0; i < StartRuns; i++ {
		r.emit(Event{Step: StepStart, Message: fmt.Sprintf("Starting simulation run %d/%d", i+1, StartRuns)})
		if err := r.opts.API.Start(ctx, config); err != nil {
			return summary, fmt.Errorf("failed to start simulation run %d: %w", i+1, err)
		}
		summary.StartRequests++
		if r.opts.Metrics != nil {
			r.opts.Metrics.StartRequests.Inc()
		}
	}

	ids, err := r.opts.API.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list simulations: %w", err)
	}
	summary.Listed = ids
	if r.opts.Metrics != nil {
		r.opts.Metrics.Listed.Set(float64(len(ids)))
	}
	r.emit(Event{Step: StepList, Message: fmt.Sprintf("Found %d simulations: %s", len(ids), formatIDs(ids))})

	if err := r.fetchAll(ctx, summary, ids, true); err != nil {
		return summary, err
	}

	return summary, nil
}

// Fetch fetches and saves the given simulations from an already running
// backend, without touching the backend lifecycle or the ledger.
func (r *Runner) Fetch(ctx context.Context, ids []models.SimulationID) (summary *Summary, err error) {
	started := time.Now()
	summary = &Summary{RunID: ledger.NewRunID(), Listed: ids}
	defer func() { summary.Duration = time.Since(started) }()

	if err := r.opts.Writer.Open(summary.RunID); err != nil {
		return summary, fmt.Errorf("failed to open output: %w", err)
	}
	defer func() {
		if cerr := r.opts.Writer.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close output: %w", cerr))
		}
	}()

	return summary, r.fetchAll(ctx, summary, ids, false)
}

// fetchAll fetches and saves each simulation in order. Fetch outcomes go to
// the ledger only when record is set.
func (r *Runner) fetchAll(ctx context.Context, summary *Summary, ids []models.SimulationID, record bool) error {
	for _, id := range ids {
		r.emit(Event{Step: StepFetch, SimulationID: id, Message: fmt.Sprintf("Extracting data for simId %s...", id)})

		payload, err := r.opts.API.Get(ctx, id)
		if err != nil {
			status, ok := biosim.StatusCode(err)
			if !ok {
				return fmt.Errorf("failed to fetch simulation %s: %w", id, err)
			}

			summary.Failed = append(summary.Failed, Failed{ID: id, Status: status})
			if record {
				r.recordFetch(ctx, summary.RunID, id, status, "")
			}
			if r.opts.Metrics != nil {
				r.opts.Metrics.ObserveFailure(status)
			}
			r.emit(Event{
				Step:         StepFetchFailed,
				SimulationID: id,
				Status:       status,
				Message:      fmt.Sprintf("Failed to fetch data for simId %s - HTTP %d", id, status),
			})
			continue
		}

		path, err := r.opts.Writer.WriteResult(id, payload)
		if err != nil {
			return fmt.Errorf("failed to save simulation %s: %w", id, err)
		}

		summary.Saved = append(summary.Saved, Saved{ID: id, Path: path})
		if record {
			r.recordFetch(ctx, summary.RunID, id, http.StatusOK, path)
		}
		if r.opts.Metrics != nil {
			r.opts.Metrics.Saved.Inc()
		}

		msg := fmt.Sprintf("Fetched simulation %s", id)
		if path != "" {
			msg = fmt.Sprintf("Saved %s", path)
		}
		r.emit(Event{Step: StepSaved, SimulationID: id, Path: path, Message: msg})
	}
	return nil
}

func (r *Runner) recordFetch(ctx context.Context, runID string, id models.SimulationID, status int, path string) {
	err := r.opts.Ledger.RecordFetch(ctx, ledger.Fetch{
		RunID:        runID,
		SimulationID: id.String(),
		Status:       status,
		Path:         path,
	})
	if err != nil {
		r.opts.Logger.Warn("failed to record fetch", "simulation_id", id.String(), "error", err)
	}
}

func formatIDs(ids []models.SimulationID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
