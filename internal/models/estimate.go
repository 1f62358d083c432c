package models

// Recommendation is the outcome of comparing an estimate against the budget.
type Recommendation string

const (
	RecommendProceed Recommendation = "proceed"
	RecommendWarn    Recommendation = "warn"
	RecommendBlock   Recommendation = "block"
)

// TokenEstimate tracks estimated token cost per segment and in total.
// Cumulative never decreases while segments are processed.
type TokenEstimate struct {
	PerSegment       map[int]int    `json:"per_segment,omitempty"`
	Cumulative       int            `json:"cumulative"`
	Budget           int            `json:"budget"`
	WarningThreshold float64        `json:"warning_threshold"`
	Recommendation   Recommendation `json:"recommendation,omitempty"`
}

// Usage returns Cumulative as a fraction of Budget, or 0 when no budget is set.
func (e *TokenEstimate) Usage() float64 {
	if e.Budget <= 0 {
		return 0
	}
	return float64(e.Cumulative) / float64(e.Budget)
}
