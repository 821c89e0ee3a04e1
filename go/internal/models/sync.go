package models

import "encoding/json"

// ChangeOperation defines the kind of entity mutation a device submits.
type ChangeOperation string

const (
	ChangeOperationCreate ChangeOperation = "CREATE"
	ChangeOperationUpdate ChangeOperation = "UPDATE"
	ChangeOperationDelete ChangeOperation = "DELETE"
)

// ChangeRecord is one entry in the append-only change log. ChangeID is the
// client-generated idempotency key; ServerTimestamp is assigned on ingestion
// and never changes afterwards. Timestamps are epoch milliseconds. Applied
// reports whether the mutation reached the canonical store; conflicted or
// failed changes stay recorded but unapplied and never count as entity
// history.
type ChangeRecord struct {
	ChangeID        string          `json:"change_id"`
	DeviceID        string          `json:"device_id"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	Operation       ChangeOperation `json:"operation"`
	Data            json.RawMessage `json:"data,omitempty"`
	LocalTimestamp  int64           `json:"local_timestamp"`
	ServerTimestamp int64           `json:"server_timestamp"`
	Applied         bool            `json:"applied"`
}

// ConflictRecord reports a divergence between a device's claimed base state
// and the canonical store at upload time. Produced once, never mutated; the
// uploading client consumes it and retries with a fresh base.
type ConflictRecord struct {
	ConflictID    string          `json:"conflict_id"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	LocalVersion  json.RawMessage `json:"local_version,omitempty"`
	ServerVersion json.RawMessage `json:"server_version,omitempty"`
}
