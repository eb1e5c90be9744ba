package models

import "time"

// Bucket is the urgency category a candidate lands in for the daily digest.
type Bucket string

const (
	BucketPastGrace       Bucket = "PAST_GRACE"
	BucketInGrace         Bucket = "IN_GRACE"
	BucketCloseToExpiry   Bucket = "CLOSE_TO_EXPIRY"
	BucketUnderInspection Bucket = "UNDER_INSPECTION"
)

// BucketOrder is the order sections appear in a digest.
var BucketOrder = []Bucket{
	BucketPastGrace,
	BucketInGrace,
	BucketCloseToExpiry,
	BucketUnderInspection,
}

// Title returns the heading used for the bucket in rendered digests.
func (b Bucket) Title() string {
	switch b {
	case BucketPastGrace:
		return "Expired (past grace period)"
	case BucketInGrace:
		return "Expired (within grace period)"
	case BucketCloseToExpiry:
		return "Close to expiry"
	case BucketUnderInspection:
		return "Under inspection / renewal in progress"
	default:
		return string(b)
	}
}

// Status is the whole-row status written back to the register.
type Status string

const (
	StatusOK       Status = "OK"
	StatusWarning  Status = "WARNING"
	StatusUrgent   Status = "URGENT"
	StatusCritical Status = "CRITICAL"
	StatusExpired  Status = "EXPIRED"
)

// Candidate is a document field that made it into today's notifications.
type Candidate struct {
	Row          int       `json:"row"`
	RecordID     string    `json:"record_id"`
	Label        string    `json:"label,omitempty"`
	Plant        string    `json:"plant,omitempty"`
	Location     string    `json:"location,omitempty"`
	DocumentType string    `json:"document_type"`
	Date         time.Time `json:"date"`
	DateDisplay  string    `json:"date_display"`
	DaysLeft     int       `json:"days_left"`
	Bucket       Bucket    `json:"bucket"`
}
