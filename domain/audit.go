package domain

import (
	"encoding/json"
	"time"
)

// Audit sources.
const (
	SourceWebhook = "webhook"
	SourceAPI     = "api"
	SourceSystem  = "system"
)

// Audited entity types.
const (
	EntityContribution  = "contribution"
	EntityCampaign      = "campaign"
	EntityReward        = "reward"
	EntityUser          = "user"
	EntityProviderEvent = "provider_event"
)

// AuditRecord is an immutable before/after snapshot of a mutation.
type AuditRecord struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Action     string          `json:"action"`
	ActorID    *string         `json:"actor_id,omitempty"`
	Source     string          `json:"source"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// EntityRef identifies the audited entity.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// NewAuditRecord snapshots before and after for an action on ref.
func NewAuditRecord(ref EntityRef, action string, actor *string, source string, before, after interface{}) AuditRecord {
	return AuditRecord{
		EntityType: ref.Type,
		EntityID:   ref.ID,
		Action:     action,
		ActorID:    actor,
		Source:     source,
		Before:     Snapshot(before),
		After:      Snapshot(after),
	}
}

// Touch stamps the creation time once.
func (a *AuditRecord) Touch() {
	if a == nil {
		return
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
}

// Snapshot marshals v for an audit record, tolerating nil.
func Snapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return b
}
