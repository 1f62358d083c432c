package cli

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/digest/internal/models"
	"github.com/hyperjump/digest/internal/notify"
)

// TokenNotifier sends token-channel messages.
type TokenNotifier interface {
	NotifyTokens(ctx context.Context, msg string) error
}

// RunObserver forwards pipeline events to the progress reporter, the token channel and the log.
type RunObserver struct {
	ctx      context.Context
	reporter Reporter
	tokens   TokenNotifier
	logger   *zap.Logger
	total    int
	done     int
	started  bool
}

// NewRunObserver creates an observer. tokens may be nil.
func NewRunObserver(ctx context.Context, reporter Reporter, tokens TokenNotifier, logger *zap.Logger) *RunObserver {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunObserver{ctx: ctx, reporter: reporter, tokens: tokens, logger: logger, total: -1}
}

func (o *RunObserver) StateChanged(from, to models.State) {
	o.logger.Debug("pipeline state", zap.String("from", string(from)), zap.String("to", string(to)))
	switch to {
	case models.StateExtracting:
		o.reporter.Start(o.total)
		o.started = true
	case models.StateTagging, models.StateHalted:
		if o.started {
			o.reporter.Finish()
			o.started = false
		}
	}
}

func (o *RunObserver) Estimated(est models.TokenEstimate) {
	o.total = len(est.PerSegment)
}

func (o *RunObserver) BudgetWarning(est models.TokenEstimate) {
	o.send(notify.FormatBudgetWarning(est.Cumulative, est.Budget))
}

func (o *RunObserver) BudgetExceeded(est models.TokenEstimate) {
	if o.started {
		o.reporter.Finish()
		o.started = false
	}
}

func (o *RunObserver) SegmentProcessed(models.Segment, bool) {
	o.done++
	o.reporter.Update(o.done)
}

func (o *RunObserver) send(msg string) {
	if o.tokens == nil {
		return
	}
	if err := o.tokens.NotifyTokens(o.ctx, msg); err != nil {
		o.logger.Warn("token notification failed", zap.Error(err))
	}
}
