package notify

import (
	"fmt"
	"strings"

	"github.com/hyperjump/digest/internal/models"
	"github.com/hyperjump/digest/pkg/utils"
)

// FormatStart announces the start of an extraction.
func FormatStart(doc models.Document, keywords []string) string {
	return fmt.Sprintf("🚀 **Starting extraction**\n- File: %s\n- Keywords: %s",
		doc.SourceName, strings.Join(keywords, ", "))
}

// FormatFound reports how many entries matched.
func FormatFound(n int) string {
	return fmt.Sprintf("📝 Found %d matching entries", n)
}

// FormatTokenStatus is the one-line usage report.
func FormatTokenStatus(used, budget int) string {
	return fmt.Sprintf("📊 Token Usage: %d/%d (%.1f%%)", used, budget, utils.Percent(used, budget))
}

// FormatBudgetWarning reports that usage crossed the warning threshold.
func FormatBudgetWarning(used, budget int) string {
	return fmt.Sprintf("⚠️ WARNING: %.1f%% of token budget used (%d/%d)", utils.Percent(used, budget), used, budget)
}

// FormatBudgetExceeded reports that the budget stopped the run.
func FormatBudgetExceeded(used, budget int) string {
	return fmt.Sprintf("⛔ BUDGET EXCEEDED: %d/%d tokens used. Task stopped.", used, budget)
}

// FormatEstimate is the pre-flight estimate report. sizeBytes is the document file size.
func FormatEstimate(doc models.Document, sizeBytes int64, est models.TokenEstimate) string {
	status := "✅ Within budget"
	switch est.Recommendation {
	case models.RecommendWarn:
		status = "⚠️ Close to budget"
	case models.RecommendBlock:
		status = "⚠️ May exceed budget"
	}
	return fmt.Sprintf("📄 **Task Estimation**\n- File: %s\n- Size: %.1f KB\n- Estimated tokens: %d\n- Budget: %d\n- Status: %s",
		doc.SourceName, float64(sizeBytes)/1024, est.Cumulative, est.Budget, status)
}

// FormatComplete is the final results report. sheetURL may be empty when no spreadsheet is configured.
func FormatComplete(s models.Summary, added int, sheetURL string) string {
	var b strings.Builder
	title := "✅ **Extraction Complete**"
	switch s.Status {
	case models.StatusBudgetExceeded:
		title = "⛔ **Extraction Stopped (budget exceeded)**"
	case models.StatusHalted:
		title = "🛑 **Extraction Halted**"
	}
	b.WriteString(title)
	fmt.Fprintf(&b, "\n- Entries found: %d", s.EntriesKept+s.DuplicatesSkipped)
	fmt.Fprintf(&b, "\n- New entries added: %d", added)
	fmt.Fprintf(&b, "\n- Duplicates skipped: %d", s.DuplicatesSkipped)
	fmt.Fprintf(&b, "\n- %s", FormatTokenStatus(s.FinalTokenEstimate.Cumulative, s.FinalTokenEstimate.Budget))
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "\n- ⚠️ %s", w)
	}
	if sheetURL != "" {
		fmt.Fprintf(&b, "\n\n📋 **Please review your Google Sheet:**\n%s", sheetURL)
	}
	return b.String()
}

// FormatFailure reports a run that aborted.
func FormatFailure(doc models.Document, err error) string {
	return fmt.Sprintf("❌ Failed to process %s: %v", doc.SourceName, err)
}
