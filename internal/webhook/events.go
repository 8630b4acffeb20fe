package webhook

import (
	"time"

	"github.com/dunamismax/normalflow/internal/provision"
)

const (
	EventProvisioned     = "repository.provisioned"
	EventProvisionFailed = "repository.provision_failed"
)

type ProvisionEvent struct {
	State      string    `json:"state"`
	Message    string    `json:"message,omitempty"`
	Path       string    `json:"path,omitempty"`
	OutputPath string    `json:"outputPath,omitempty"`
	Error      string    `json:"error,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	At         time.Time `json:"at"`
}

// NewProvisionEvent maps a provisioning result to its event name and payload.
func NewProvisionEvent(requestID string, result provision.Result, at time.Time) (string, ProvisionEvent) {
	payload := ProvisionEvent{
		State:      string(result.State),
		Message:    result.Message,
		Path:       result.RepoPath,
		OutputPath: result.OutputPath,
		RequestID:  requestID,
		At:         at.UTC(),
	}
	if !result.Success() {
		if result.Err != nil {
			payload.Error = result.Err.Error()
		}
		return EventProvisionFailed, payload
	}
	return EventProvisioned, payload
}
