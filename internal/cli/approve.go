package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"

	"github.com/hyperjump/digest/internal/models"
	"github.com/hyperjump/digest/pkg/utils"
)

// PromptApprover asks on the terminal whether to run despite an over-budget estimate.
type PromptApprover struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

// Approve implements pipeline.Approver. Answering no or aborting the prompt declines.
func (a PromptApprover) Approve(_ context.Context, est models.TokenEstimate) (bool, error) {
	p := promptui.Prompt{
		Label:     ApprovalLabel(est),
		IsConfirm: true,
		Stdin:     a.Stdin,
		Stdout:    a.Stdout,
	}
	_, err := p.Run()
	if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("budget prompt: %w", err)
	}
	return true, nil
}

// ApprovalLabel is the confirmation question for est.
func ApprovalLabel(est models.TokenEstimate) string {
	return fmt.Sprintf("Estimated %d tokens is %.1f%% of the %d token budget. Continue anyway",
		est.Cumulative, utils.Percent(est.Cumulative, est.Budget), est.Budget)
}

// AutoApprover approves every estimate. It backs --yes.
type AutoApprover struct{}

// Approve implements pipeline.Approver.
func (AutoApprover) Approve(context.Context, models.TokenEstimate) (bool, error) {
	return true, nil
}
