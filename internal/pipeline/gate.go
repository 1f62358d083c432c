package pipeline

import (
	"context"

	"github.com/hyperjump/digest/internal/models"
)

// Approver decides whether to run despite a pre-pass estimate that reaches the budget.
type Approver interface {
	Approve(ctx context.Context, est models.TokenEstimate) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, est models.TokenEstimate) (bool, error)

// Approve calls f.
func (f ApproverFunc) Approve(ctx context.Context, est models.TokenEstimate) (bool, error) {
	return f(ctx, est)
}

// Gate decides where the budget is checked before extraction starts.
// The live meter applies to every gate once extraction runs.
type Gate interface {
	// PrePass reports whether the whole document is estimated before extraction.
	PrePass() bool
	// Admit is consulted with the pre-pass estimate; false halts the run.
	Admit(ctx context.Context, est models.TokenEstimate) (bool, error)
}

// LiveGate checks the budget only while extracting.
type LiveGate struct{}

// PrePass implements Gate.
func (LiveGate) PrePass() bool { return false }

// Admit implements Gate.
func (LiveGate) Admit(context.Context, models.TokenEstimate) (bool, error) { return true, nil }

// PrePassGate estimates the whole document first. When the estimate reaches the budget the
// Approver is asked; without one the run halts.
type PrePassGate struct {
	Approver Approver
}

// PrePass implements Gate.
func (PrePassGate) PrePass() bool { return true }

// Admit implements Gate.
func (g PrePassGate) Admit(ctx context.Context, est models.TokenEstimate) (bool, error) {
	if est.Recommendation != models.RecommendBlock {
		return true, nil
	}
	if g.Approver == nil {
		return false, nil
	}
	return g.Approver.Approve(ctx, est)
}
