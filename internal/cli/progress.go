package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter provides progress feedback while segments are processed.
// A total of -1 means the segment count is not known in advance.
type Reporter interface {
	Start(total int)
	Update(current int)
	Finish()
}

// NewReporter returns a line-based reporter when running in CI, a progress bar otherwise.
// Progress goes to w so that stdout carries only the report.
func NewReporter(w io.Writer) Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &LineReporter{w: w, every: 50}
	}
	return &BarReporter{w: w}
}

// BarReporter draws a progress bar, or a spinner when the total is unknown.
type BarReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (r *BarReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *BarReporter) Update(current int) {
	if r.bar != nil {
		_ = r.bar.Set(current)
	}
}

func (r *BarReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// LineReporter prints a line every few segments, suitable for CI logs.
type LineReporter struct {
	w     io.Writer
	total int
	every int
	last  int
}

func (r *LineReporter) Start(total int) {
	r.total = total
	if total >= 0 {
		fmt.Fprintf(r.w, "Extracting %d segments\n", total)
	} else {
		fmt.Fprintln(r.w, "Extracting segments")
	}
}

func (r *LineReporter) Update(current int) {
	r.last = current
	if r.every > 0 && current%r.every != 0 {
		return
	}
	if r.total >= 0 {
		fmt.Fprintf(r.w, "[%d/%d]\n", current, r.total)
	} else {
		fmt.Fprintf(r.w, "[%d]\n", current)
	}
}

func (r *LineReporter) Finish() {
	fmt.Fprintf(r.w, "Processed %d segments\n", r.last)
}

// NopReporter discards progress.
type NopReporter struct{}

func (NopReporter) Start(int) {}
func (NopReporter) Update(int) {}
func (NopReporter) Finish() {}
