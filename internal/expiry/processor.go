package expiry

import (
	"strings"
	"time"

	"expiry-notifier/internal/colors"
	"expiry-notifier/internal/models"
)

// Processor turns register rows into notification candidates.
type Processor struct {
	policy Policy
}

// NewProcessor returns a Processor using policy.
func NewProcessor(policy Policy) *Processor {
	return &Processor{policy: policy}
}

// Policy returns the bucket limits in use.
func (p *Processor) Policy() Policy {
	return p.policy
}

// EvaluateField applies the color flags and date evaluation to one field of
// rec. A red-font field is excluded before its date is even looked at.
func (p *Processor) EvaluateField(rec models.DocumentRecord, f models.DateField, today time.Time) (Evaluation, bool) {
	if colors.IsExclusion(f.Color.Font) {
		return Evaluation{DocumentType: f.DocumentType, RawDate: f.Raw, Excluded: true}, false
	}
	ev, ok := Evaluate(f.Raw, today, isOnHold(rec, f, today))
	if !ok {
		return Evaluation{}, false
	}
	ev.DocumentType = f.DocumentType
	return ev, true
}

// Process evaluates every date field of every row with an identifier and
// returns the fields that fall into a bucket, in row then field order.
func (p *Processor) Process(records []models.DocumentRecord, today time.Time) []models.Candidate {
	var out []models.Candidate
	for _, rec := range records {
		if strings.TrimSpace(rec.ID) == "" {
			continue
		}
		for _, f := range rec.Fields {
			ev, ok := p.EvaluateField(rec, f, today)
			if !ok {
				continue
			}
			bucket, ok := p.policy.Bucket(ev)
			if !ok {
				continue
			}
			out = append(out, models.Candidate{
				Row:          rec.Row,
				RecordID:     strings.TrimSpace(rec.ID),
				Label:        rec.Label,
				Plant:        rec.Plant,
				Location:     rec.Location,
				DocumentType: f.DocumentType,
				Date:         ev.Date,
				DateDisplay:  ev.Date.Format(DisplayLayout),
				DaysLeft:     ev.DaysLeft,
				Bucket:       bucket,
			})
		}
	}
	return out
}

// RowStatus returns the whole-row status of rec from its most urgent
// non-excluded field. The second return is false when no field has a date.
func (p *Processor) RowStatus(rec models.DocumentRecord, today time.Time) (models.Status, int, bool) {
	found := false
	minDays := 0
	for _, f := range rec.Fields {
		ev, ok := p.EvaluateField(rec, f, today)
		if !ok {
			continue
		}
		if !found || ev.DaysLeft < minDays {
			minDays = ev.DaysLeft
			found = true
		}
	}
	if !found {
		return "", 0, false
	}
	return ClassifyStatus(minDays), minDays, true
}

// isOnHold ORs the background color of the field with the presence of a
// valid inspection date on the row.
func isOnHold(rec models.DocumentRecord, f models.DateField, today time.Time) bool {
	if colors.IsHold(f.Color.Background) {
		return true
	}
	_, ok := ParseDate(rec.InspectionDate, today.Location())
	return ok
}
