package dedup

import "github.com/hyperjump/digest/internal/models"

// Deduplicator tracks fingerprints seen in prior runs and in the current one.
type Deduplicator struct {
	seen       map[string]struct{}
	duplicates int
}

// New returns a Deduplicator seeded with prior ids. The prior slice is copied, never modified.
func New(prior []string) *Deduplicator {
	seen := make(map[string]struct{}, len(prior))
	for _, id := range prior {
		if id != "" {
			seen[id] = struct{}{}
		}
	}
	return &Deduplicator{seen: seen}
}

// Keep reports whether e is new. A new entry's UniqueID is recorded; a repeated one
// counts as a duplicate.
func (d *Deduplicator) Keep(e models.Entry) bool {
	if _, ok := d.seen[e.UniqueID]; ok {
		d.duplicates++
		return false
	}
	d.seen[e.UniqueID] = struct{}{}
	return true
}

// Filter returns the entries of in that are new, in order.
func (d *Deduplicator) Filter(in []models.Entry) []models.Entry {
	out := make([]models.Entry, 0, len(in))
	for _, e := range in {
		if d.Keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Duplicates returns how many entries were rejected so far.
func (d *Deduplicator) Duplicates() int { return d.duplicates }

// Seen returns the number of distinct fingerprints known.
func (d *Deduplicator) Seen() int { return len(d.seen) }
