package runner

import (
	"fmt"

	"biosim-runner/models"
)

// Step identifies a stage of the lifecycle sequence
type Step int

const (
	StepBackendUp Step = iota
	StepWaitReady
	StepCreate
	StepReadInput
	StepStart
	StepList
	StepFetch
	StepSaved
	StepFetchFailed
	StepBackendDown
	StepDone
)

var stepNames = map[Step]string{
	StepBackendUp:   "backend-up",
	StepWaitReady:   "wait-ready",
	StepCreate:      "create",
	StepReadInput:   "read-input",
	StepStart:       "start",
	StepList:        "list",
	StepFetch:       "fetch",
	StepSaved:       "saved",
	StepFetchFailed: "fetch-failed",
	StepBackendDown: "backend-down",
	StepDone:        "done",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Event reports progress of a run
type Event struct {
	Step         Step
	Message      string
	SimulationID models.SimulationID
	Path         string
	// Status is the HTTP status of a failed fetch
	Status int
}

// Failure reports whether the event describes a skipped simulation
func (e Event) Failure() bool {
	return e.Step == StepFetchFailed
}
