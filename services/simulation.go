// Package services provides the simulation service for BioSim API operations.
//
// This file implements the SimulationService which wraps the lifecycle
// endpoints of the backend: creating a simulation context, starting runs from
// an XML configuration document, listing the simulations the backend knows
// about and fetching the full result payload of a single simulation.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"biosim-runner/models"
)

type SimulationService struct {
	client ClientInterface
}

func NewSimulationService(client ClientInterface) *SimulationService {
	return &SimulationService{
		client: client,
	}
}

// Create asks the backend to set up a simulation context.
// The response is discarded; only transport failures are reported.
func (s *SimulationService) Create(ctx context.Context) error {
	req, err := s.client.NewRequest(ctx, http.MethodGet, "/simulation", nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	drain(resp)

	return nil
}

// Start submits an XML configuration document to start a simulation run.
// The document is forwarded verbatim. The response is discarded and its status
// is not checked; only transport failures are reported.
func (s *SimulationService) Start(ctx context.Context, config []byte) error {
	req, err := s.client.NewRequest(ctx, http.MethodPost, "/simulation/start", bytes.NewReader(config))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	drain(resp)

	return nil
}

// List retrieves the identifiers of all simulations known to the backend
func (s *SimulationService) List(ctx context.Context) ([]models.SimulationID, error) {
	req, err := s.client.NewRequest(ctx, http.MethodGet, "/simulation", nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(req, resp)
	}

	var list models.SimulationList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if list.Simulations == nil {
		return []models.SimulationID{}, nil
	}
	return list.Simulations, nil
}

// Get retrieves the result payload of one simulation as raw JSON.
// A non-200 response is returned as *APIError.
func (s *SimulationService) Get(ctx context.Context, id models.SimulationID) (json.RawMessage, error) {
	path := fmt.Sprintf("/simulation/%s", url.PathEscape(id.String()))
	req, err := s.client.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(req, resp)
	}

	var payload json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode simulation %s: %w", id, err)
	}

	return payload, nil
}
