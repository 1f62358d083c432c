package pipeline

import (
	"context"

	"github.com/hyperjump/digest/internal/models"
)

// Observer receives run events. Calls happen on the pipeline goroutine.
type Observer interface {
	StateChanged(from, to models.State)
	Estimated(est models.TokenEstimate)
	BudgetWarning(est models.TokenEstimate)
	BudgetExceeded(est models.TokenEstimate)
	SegmentProcessed(seg models.Segment, matched bool)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) StateChanged(models.State, models.State) {}
func (NopObserver) Estimated(models.TokenEstimate) {}
func (NopObserver) BudgetWarning(models.TokenEstimate) {}
func (NopObserver) BudgetExceeded(models.TokenEstimate) {}
func (NopObserver) SegmentProcessed(models.Segment, bool) {}

// PriorState supplies the unique ids already written by earlier runs.
type PriorState interface {
	KnownIDs(ctx context.Context) ([]string, error)
}
