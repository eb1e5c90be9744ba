package expiry

import (
	"sort"
	"strings"

	"expiry-notifier/internal/models"
)

// Section is one bucket of a digest.
type Section struct {
	Bucket     models.Bucket
	Candidates []models.Candidate
}

// Digest is everything one recipient receives in the daily summary.
type Digest struct {
	Recipient string
	Sections  []Section
}

// Count returns the number of candidates across all sections.
func (d Digest) Count() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Candidates)
	}
	return n
}

// Candidates returns every candidate of the digest in section order.
func (d Digest) Candidates() []models.Candidate {
	out := make([]models.Candidate, 0, d.Count())
	for _, s := range d.Sections {
		out = append(out, s.Candidates...)
	}
	return out
}

// Section returns the candidates of bucket b.
func (d Digest) Section(b models.Bucket) []models.Candidate {
	for _, s := range d.Sections {
		if s.Bucket == b {
			return s.Candidates
		}
	}
	return nil
}

// Partition splits candidates by bucket and sorts each bucket by days left,
// most urgent first. Equal keys keep their input order. Empty buckets are
// left out; the rest follow models.BucketOrder.
func Partition(candidates []models.Candidate) []Section {
	byBucket := make(map[models.Bucket][]models.Candidate, len(models.BucketOrder))
	for _, c := range candidates {
		byBucket[c.Bucket] = append(byBucket[c.Bucket], c)
	}
	var sections []Section
	for _, b := range models.BucketOrder {
		list := byBucket[b]
		if len(list) == 0 {
			continue
		}
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].DaysLeft < list[j].DaysLeft
		})
		sections = append(sections, Section{Bucket: b, Candidates: list})
	}
	return sections
}

// Aggregate fans every candidate out to every recipient. Recipients are
// trimmed and de-duplicated case-insensitively, keeping first-seen order.
// No digest is built when there are no candidates.
func Aggregate(candidates []models.Candidate, recipients []string) []Digest {
	if len(candidates) == 0 {
		return nil
	}
	var digests []Digest
	for _, r := range Recipients(recipients) {
		// each recipient owns its own copy so renderers can't alias
		own := make([]models.Candidate, len(candidates))
		copy(own, candidates)
		sections := Partition(own)
		if len(sections) == 0 {
			continue
		}
		digests = append(digests, Digest{Recipient: r, Sections: sections})
	}
	return digests
}

// Recipients trims list and drops blanks and case-insensitive duplicates,
// keeping first-seen order.
func Recipients(list []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(list))
	for _, r := range list {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		key := strings.ToLower(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
