// Package expiry evaluates document expiry dates against a reference day and
// groups the results into per-recipient digests. Nothing in this package
// performs I/O.
package expiry

import (
	"strconv"
	"strings"
	"time"

	"expiry-notifier/internal/models"
)

// DisplayLayout is how dates are shown in digests and alerts.
const DisplayLayout = "02 Jan 2006"

// DayLayout is the canonical calendar-date string used in persisted state.
const DayLayout = "2006-01-02"

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Evaluation is the derived state of one date field.
type Evaluation struct {
	DocumentType string
	RawDate      string
	Date         time.Time
	DaysLeft     int
	Excluded     bool
	Hold         bool
}

// Policy holds the tunable limits of the bucket model.
type Policy struct {
	// GraceDays is how long after expiry a document stays IN_GRACE.
	GraceDays int
	// RetentionDays is the largest daysLeft that is reported at all.
	RetentionDays int
}

// DefaultPolicy returns the 30/30 limits.
func DefaultPolicy() Policy {
	return Policy{GraceDays: 30, RetentionDays: 30}
}

// ParseDate parses raw in the location of ref. Empty or unknown input
// returns false.
func ParseDate(raw string, ref *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if ref == nil {
		ref = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, ref); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Midnight strips the time of day from t in its own location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from today to date.
// Both sides are reduced to their civil date first, so time of day and
// daylight-saving shifts never produce fractional days.
func DaysBetween(today, date time.Time) int {
	ty, tm, td := today.Date()
	dy, dm, dd := date.Date()
	a := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	b := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// Evaluate computes days left for raw relative to today. It returns false
// when raw is empty or not a calendar date.
func Evaluate(raw string, today time.Time, hold bool) (Evaluation, bool) {
	date, ok := ParseDate(raw, today.Location())
	if !ok {
		return Evaluation{}, false
	}
	date = date.In(today.Location())
	return Evaluation{
		RawDate:  raw,
		Date:     Midnight(date),
		DaysLeft: DaysBetween(today, date),
		Hold:     hold,
	}, true
}

// Bucket places an evaluation in the digest model. Hold is checked first and
// wins over every other bucket. Fields further out than RetentionDays, and
// excluded fields, return false.
func (p Policy) Bucket(ev Evaluation) (models.Bucket, bool) {
	if ev.Excluded || ev.DaysLeft > p.RetentionDays {
		return "", false
	}
	switch {
	case ev.Hold:
		return models.BucketUnderInspection, true
	case ev.DaysLeft < -p.GraceDays:
		return models.BucketPastGrace, true
	case ev.DaysLeft <= 0:
		return models.BucketInGrace, true
	default:
		return models.BucketCloseToExpiry, true
	}
}

// ClassifyStatus maps days left onto the whole-row status scale.
func ClassifyStatus(daysLeft int) models.Status {
	switch {
	case daysLeft <= 0:
		return models.StatusExpired
	case daysLeft <= 7:
		return models.StatusCritical
	case daysLeft <= 14:
		return models.StatusUrgent
	case daysLeft <= 30:
		return models.StatusWarning
	default:
		return models.StatusOK
	}
}

// DaysLeftText renders days left the way digests and alerts print it.
func DaysLeftText(daysLeft int) string {
	switch {
	case daysLeft > 0:
		return strconv.Itoa(daysLeft) + " day(s) left"
	case daysLeft == 0:
		return "expires today"
	default:
		return "expired " + strconv.Itoa(-daysLeft) + " day(s) ago"
	}
}
