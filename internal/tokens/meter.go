package tokens

import "github.com/hyperjump/digest/internal/models"

// Decision is the meter's verdict for one charge.
type Decision int

const (
	// Continue means the segment may be processed.
	Continue Decision = iota
	// Warn means the segment may be processed and the warning threshold was crossed for the first time.
	Warn
	// Halt means the segment would reach the budget; it must not be processed.
	Halt
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case Warn:
		return "warn"
	case Halt:
		return "halt"
	default:
		return "unknown"
	}
}

// Meter is the live budget: it accumulates per-segment costs as segments are processed.
// The budget boundary is inclusive; a charge that brings the total to the budget halts.
type Meter struct {
	est    models.TokenEstimate
	warned bool
	halted bool
}

// NewMeter returns a meter for budget with the given warning fraction.
func NewMeter(budget int, warnThreshold float64) *Meter {
	return &Meter{est: models.TokenEstimate{
		PerSegment:       make(map[int]int),
		Budget:           budget,
		WarningThreshold: warnThreshold,
	}}
}

// Charge records cost for the segment at index. A halting charge is not committed,
// so the cumulative total only covers segments that were allowed through.
// Once halted, every further charge halts.
func (m *Meter) Charge(index, cost int) Decision {
	if m.halted || m.est.Cumulative+cost >= m.est.Budget {
		m.halted = true
		return Halt
	}
	m.est.Cumulative += cost
	m.est.PerSegment[index] = cost
	if !m.warned && float64(m.est.Cumulative) >= m.est.WarningThreshold*float64(m.est.Budget) {
		m.warned = true
		return Warn
	}
	return Continue
}

// Warned reports whether the warning threshold has been crossed.
func (m *Meter) Warned() bool { return m.warned }

// Halted reports whether a charge was refused.
func (m *Meter) Halted() bool { return m.halted }

// Snapshot returns a copy of the running estimate.
func (m *Meter) Snapshot() models.TokenEstimate {
	out := m.est
	out.PerSegment = make(map[int]int, len(m.est.PerSegment))
	for k, v := range m.est.PerSegment {
		out.PerSegment[k] = v
	}
	switch {
	case m.halted:
		out.Recommendation = models.RecommendBlock
	case m.warned:
		out.Recommendation = models.RecommendWarn
	default:
		out.Recommendation = models.RecommendProceed
	}
	return out
}
