// Package output persists fetched simulation payloads to the local filesystem.
//
// A Writer is opened once per run, optionally given the input document that
// was submitted, and then receives one result per fetched simulation. Three
// layouts exist: flat files in the output directory, a per-simulation log
// directory, and a writer that discards everything.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	biosim "biosim-runner"
	"biosim-runner/models"
)

// Layout names accepted by NewWriter
const (
	LayoutFlat   = "flat"
	LayoutLogDir = "logdir"
	LayoutNone   = "none"
)

// Writer receives the artifacts of one run
type Writer interface {
	// Open prepares the writer for a run
	Open(runID string) error
	// WriteConfig records the input document submitted for the run
	WriteConfig(config []byte) error
	// WriteResult persists one simulation payload and returns where it went
	WriteResult(id models.SimulationID, payload json.RawMessage) (string, error)
	// Close releases any resources
	Close() error
}

// NewWriter returns the writer for a layout name
func NewWriter(layout, dir string) (Writer, error) {
	if dir == "" {
		dir = "."
	}
	switch strings.ToLower(layout) {
	case "", LayoutFlat:
		return &FlatWriter{Dir: dir}, nil
	case LayoutLogDir:
		return &LogDirWriter{Dir: dir}, nil
	case LayoutNone:
		return NullWriter{}, nil
	default:
		return nil, &biosim.ValidationError{
			Field:   "layout",
			Message: fmt.Sprintf("unknown output layout %q (want %s, %s or %s)", layout, LayoutFlat, LayoutLogDir, LayoutNone),
		}
	}
}

// ResultFileName is the flat-layout file name for a simulation
func ResultFileName(id models.SimulationID) string {
	return fmt.Sprintf("simulation_%s.json", id)
}

// checkID rejects identifiers that would escape the output directory
func checkID(id models.SimulationID) error {
	s := id.String()
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return &biosim.ValidationError{Field: "simulation id", Message: fmt.Sprintf("%q cannot be used in a file name", s)}
	}
	return nil
}

// indent re-indents a JSON payload with two spaces, keeping key order
func indent(payload json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to a temp file next to path and renames it into place,
// so a failed write never leaves a partial file under the final name.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}

// FlatWriter writes simulation_<id>.json files into Dir
type FlatWriter struct {
	Dir string
}

func (w *FlatWriter) Open(runID string) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// WriteConfig is a no-op: the flat layout only keeps results
func (w *FlatWriter) WriteConfig(config []byte) error { return nil }

func (w *FlatWriter) WriteResult(id models.SimulationID, payload json.RawMessage) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	data, err := indent(payload)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.Dir, ResultFileName(id))
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func (w *FlatWriter) Close() error { return nil }

// LogDirWriter writes <Dir>/logs/sim_<id>/result.json and, when an input
// document was recorded, a copy of it as config.xml beside each result.
type LogDirWriter struct {
	Dir string

	config []byte
}

// SimDir returns the directory holding one simulation's artifacts
func (w *LogDirWriter) SimDir(id models.SimulationID) string {
	return filepath.Join(w.Dir, "logs", "sim_"+id.String())
}

func (w *LogDirWriter) Open(runID string) error {
	w.config = nil
	if err := os.MkdirAll(filepath.Join(w.Dir, "logs"), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func (w *LogDirWriter) WriteConfig(config []byte) error {
	w.config = append([]byte(nil), config...)
	return nil
}

func (w *LogDirWriter) WriteResult(id models.SimulationID, payload json.RawMessage) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	data, err := indent(payload)
	if err != nil {
		return "", err
	}

	simDir := w.SimDir(id)
	if w.config != nil {
		if err := writeFileAtomic(filepath.Join(simDir, "config.xml"), w.config); err != nil {
			return "", err
		}
	}

	path := filepath.Join(simDir, "result.json")
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func (w *LogDirWriter) Close() error {
	w.config = nil
	return nil
}

// NullWriter discards everything
type NullWriter struct{}

func (NullWriter) Open(runID string) error         { return nil }
func (NullWriter) WriteConfig(config []byte) error { return nil }
func (NullWriter) WriteResult(id models.SimulationID, payload json.RawMessage) (string, error) {
	return "", nil
}
func (NullWriter) Close() error { return nil }
