package models

// MatchType distinguishes exact keyword hits from fuzzy ones.
type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchFuzzy MatchType = "fuzzy"
)

// Weight returns the scoring weight of the match type.
func (t MatchType) Weight() float64 {
	switch t {
	case MatchExact:
		return 2
	case MatchFuzzy:
		return 1
	default:
		return 0
	}
}

// Match is evidence that a keyword occurs in a segment.
// SegmentIndex refers back to the segment; it does not own it.
type Match struct {
	SegmentIndex int       `json:"segment_index"`
	Keyword      string    `json:"keyword"`
	Type         MatchType `json:"type"`
	Score        float64   `json:"score"`
}

// SegmentMatches groups the matches found in one segment with its aggregate relevance score.
type SegmentMatches struct {
	Segment Segment `json:"segment"`
	Matches []Match `json:"matches"`
	Score   float64 `json:"score"`
}

// Keywords returns the matched keywords in match order.
func (sm *SegmentMatches) Keywords() []string {
	out := make([]string, 0, len(sm.Matches))
	for _, m := range sm.Matches {
		out = append(out, m.Keyword)
	}
	return out
}
