// Package models provides data structures exchanged with the BioSim service
// and the runner's own configuration file.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SimulationID identifies a simulation on the backend. The listing endpoint
// may return identifiers as JSON numbers or strings; both are kept in their
// textual form.
type SimulationID string

// UnmarshalJSON accepts a JSON number or string
func (id *SimulationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("simulation id: null or empty value")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("simulation id: %w", err)
		}
		*id = SimulationID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("simulation id: %w", err)
	}
	*id = SimulationID(n.String())
	return nil
}

func (id SimulationID) String() string {
	return string(id)
}

// SimulationList is the body of GET /simulation.
// A response without the simulations key decodes to an empty list.
type SimulationList struct {
	Simulations []SimulationID `json:"simulations"`
}
