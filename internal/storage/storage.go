// Package storage persists the run ledger: every entry ever written and a record of each run.
// The ledger doubles as prior state for deduplication.
package storage

import (
	"time"

	"github.com/hyperjump/digest/internal/models"
)

// RunRecord is a stored run summary.
type RunRecord struct {
	ID         string
	Source     string
	Status     models.Status
	Entries    int
	Tokens     int
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    models.Summary
}
