package models

import "time"

// State is a pipeline state.
type State string

const (
	StateInit          State = "init"
	StateLoading       State = "loading"
	StateEstimating    State = "estimating"
	StateHalted        State = "halted"
	StateExtracting    State = "extracting"
	StateTagging       State = "tagging"
	StateDeduplicating State = "deduplicating"
	StateDone          State = "done"
)

// Status is the outcome reported for a finished run.
type Status string

const (
	// StatusCompleted means every segment was processed.
	StatusCompleted Status = "completed"
	// StatusBudgetExceeded means the live budget stopped processing; entries are partial.
	StatusBudgetExceeded Status = "budget_exceeded"
	// StatusHalted means the pre-pass estimate exceeded the budget and the override was declined.
	StatusHalted Status = "halted"
	// StatusEstimated means the run was estimate-only.
	StatusEstimated Status = "estimated"
)

// Summary describes one run. It is the payload handed to notifiers.
type Summary struct {
	RunID              string        `json:"run_id"`
	Document           Document      `json:"document"`
	Keywords           []string      `json:"keywords"`
	State              State         `json:"state"`
	Status             Status        `json:"status"`
	TotalSegments      int           `json:"total_segments"`
	MatchedSegments    int           `json:"matched_segments"`
	EntriesKept        int           `json:"entries_kept"`
	DuplicatesSkipped  int           `json:"duplicates_skipped"`
	FinalTokenEstimate TokenEstimate `json:"token_estimate"`
	Warnings           []string      `json:"warnings,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	FinishedAt         time.Time     `json:"finished_at"`
}

// Duration returns the wall time of the run.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Result is what a run hands to the publishing stage: the ordered entries plus the summary.
type Result struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}
