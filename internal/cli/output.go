// Package cli renders run results for the terminal and wires interactive pieces
// (budget confirmation, progress) into the pipeline.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/digest/internal/models"
	"github.com/hyperjump/digest/pkg/utils"
)

// OutputFormat is the format for run output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// contentPreview bounds entry content in text output.
const contentPreview = 200

// WriteResult writes the entries and summary of a run to w in the given format.
func WriteResult(w io.Writer, res *models.Result, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		writeResultText(w, res)
		return nil
	}
}

func writeResultText(w io.Writer, res *models.Result) {
	s := &res.Summary
	writeSummaryText(w, s)
	if len(res.Entries) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i, e := range res.Entries {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d %s | %s | %s\n", i+1, e.Title, e.Category, strings.Join(e.Tags, ", "))
		fmt.Fprintf(w, "ID: %s\n", e.UniqueID)
		if e.Notes != "" {
			fmt.Fprintf(w, "Notes: %s\n", e.Notes)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(e.Content, contentPreview))
	}
}

func writeSummaryText(w io.Writer, s *models.Summary) {
	est := s.FinalTokenEstimate
	fmt.Fprintf(w, "\nRun %s: %s\n", s.RunID, s.Status)
	fmt.Fprintf(w, "Source:     %s\n", s.Document.SourceName)
	fmt.Fprintf(w, "Keywords:   %s\n", strings.Join(s.Keywords, ", "))
	fmt.Fprintf(w, "Segments:   %d (%d matched)\n", s.TotalSegments, s.MatchedSegments)
	fmt.Fprintf(w, "Entries:    %d kept, %d duplicates skipped\n", s.EntriesKept, s.DuplicatesSkipped)
	fmt.Fprintf(w, "Tokens:     %d/%d (%.1f%%)\n", est.Cumulative, est.Budget, utils.Percent(est.Cumulative, est.Budget))
	if d := s.Duration(); d > 0 {
		fmt.Fprintf(w, "Duration:   %dms\n", d.Milliseconds())
	}
	for _, warn := range s.Warnings {
		fmt.Fprintf(w, "Warning:    %s\n", warn)
	}
}

// Estimate is the JSON shape of an estimate-only report.
type Estimate struct {
	Source         string                `json:"source"`
	SizeKB         float64               `json:"size_kb"`
	Segments       int                   `json:"segments"`
	Tokens         int                   `json:"tokens"`
	Budget         int                   `json:"budget"`
	Usage          float64               `json:"usage"`
	Recommendation models.Recommendation `json:"recommendation"`
}

// WriteEstimate writes an estimate-only report. sizeBytes is the document file size.
func WriteEstimate(w io.Writer, s *models.Summary, sizeBytes int64, format OutputFormat) error {
	est := s.FinalTokenEstimate
	report := Estimate{
		Source:         s.Document.SourceName,
		SizeKB:         float64(sizeBytes) / 1024,
		Segments:       s.TotalSegments,
		Tokens:         est.Cumulative,
		Budget:         est.Budget,
		Usage:          est.Usage(),
		Recommendation: est.Recommendation,
	}
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintf(w, "\nEstimate for %s (%.1f KB)\n", report.Source, report.SizeKB)
	fmt.Fprintf(w, "Segments:       %d\n", report.Segments)
	fmt.Fprintf(w, "Tokens:         %d/%d (%.1f%%)\n", report.Tokens, report.Budget, utils.Percent(report.Tokens, report.Budget))
	fmt.Fprintf(w, "Recommendation: %s\n", report.Recommendation)
	return nil
}
