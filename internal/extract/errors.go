package extract

import (
	"fmt"

	"github.com/hyperjump/digest/internal/models"
)

// UnsupportedFormatError is returned when a document is not PDF, EPUB, or plain text.
type UnsupportedFormatError struct {
	Path   string
	Format models.Format
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format == models.FormatUnknown {
		return fmt.Sprintf("unsupported document format: %s (want .pdf, .epub, or .txt)", e.Path)
	}
	return fmt.Sprintf("unsupported document format %q: %s", e.Format, e.Path)
}

// CorruptDocumentError is returned when the parser fails or no text can be extracted.
type CorruptDocumentError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptDocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt document %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt document %s: %s", e.Path, e.Reason)
}

func (e *CorruptDocumentError) Unwrap() error { return e.Err }
