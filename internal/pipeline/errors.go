package pipeline

import (
	"fmt"

	"github.com/hyperjump/digest/internal/models"
)

// StageError is a fatal failure in one pipeline stage. The run produces no entries.
// Invalid keywords fail in StateInit, loader errors in StateLoading or later reads, and
// prior-state reads in StateDeduplicating.
type StageError struct {
	Stage models.State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
