package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DispatchStatus is the outcome of one send attempt.
type DispatchStatus string

const (
	StatusSent   DispatchStatus = "SENT"
	StatusFailed DispatchStatus = "FAILED"
)

// Notification kinds recorded in the audit log.
const (
	KindDigest = "digest"
	KindAlert  = "alert"
)

// AuditEntry records one (document, recipient) pair covered by a send attempt.
type AuditEntry struct {
	ID           [16]byte       `json:"id"`
	RunID        [16]byte       `json:"run_id"`
	Timestamp    time.Time      `json:"timestamp"`
	Kind         string         `json:"kind"`
	DocumentID   string         `json:"document_id"`
	DocumentType string         `json:"document_type"`
	DaysLeft     int            `json:"days_left"`
	Recipient    string         `json:"recipient"`
	Channel      string         `json:"channel"`
	Status       DispatchStatus `json:"status"`
	Error        string         `json:"error,omitempty"`
}

// MarshalJSON renders the IDs as UUID strings.
func (e AuditEntry) MarshalJSON() ([]byte, error) {
	type Alias AuditEntry
	return json.Marshal(&struct {
		ID    string `json:"id"`
		RunID string `json:"run_id"`
		*Alias
	}{
		ID:    uuid.UUID(e.ID).String(),
		RunID: uuid.UUID(e.RunID).String(),
		Alias: (*Alias)(&e),
	})
}

// DispatchResult is what the dispatcher reports for one recipient.
type DispatchResult struct {
	Recipient string         `json:"recipient"`
	Status    DispatchStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	Documents int            `json:"documents"`
}

// WatermarkKey identifies the document field a threshold watermark belongs to.
type WatermarkKey struct {
	DocumentID   string
	DocumentType string
}

// String returns the key in "id|type" form used by key-value stores.
func (k WatermarkKey) String() string {
	return k.DocumentID + "|" + k.DocumentType
}

// Watermark is the persisted "last alerted" marker of a document field.
// Threshold and Expiry record which window fired and for which expiry date.
type Watermark struct {
	LastNotifiedDate string `json:"last_notified_date"`
	Threshold        int    `json:"threshold"`
	Expiry           string `json:"expiry"`
}
