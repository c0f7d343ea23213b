package transport

// PendingRequest attaches the provider intent created at checkout.
type PendingRequest struct {
	Provider string            `json:"provider"`
	IntentID string            `json:"intent_id"`
	Metadata map[string]string `json:"metadata"`
}

// RefundRequest carries an optional operator note kept in the logs.
type RefundRequest struct {
	Reason string `json:"reason"`
}
