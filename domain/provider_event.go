package domain

import (
	"encoding/json"
	"time"
)

// ProviderEvent is a single notification delivered by a payment provider.
type ProviderEvent struct {
	Provider        string          `json:"provider"`
	ExternalEventID string          `json:"external_event_id"`
	Type            string          `json:"type"`
	Payload         json.RawMessage `json:"payload"`
	SignatureValid  bool            `json:"signature_valid"`
	ReceivedAt      time.Time       `json:"received_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	ContributionID  *string         `json:"contribution_id,omitempty"`
}

// Ref renders the ledger identity used in logs and audit records.
func (e *ProviderEvent) Ref() string {
	if e == nil {
		return ""
	}
	return e.Provider + ":" + e.ExternalEventID
}

// AdmissionResult is the outcome of offering an event to the ledger.
type AdmissionResult int

const (
	Admitted AdmissionResult = iota
	AlreadyProcessed
)

func (r AdmissionResult) String() string {
	switch r {
	case Admitted:
		return "admitted"
	case AlreadyProcessed:
		return "already_processed"
	default:
		return "unknown"
	}
}
