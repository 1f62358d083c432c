// Package models defines core data structures for documents, segments, matches, and extracted entries.
package models

import (
	"path/filepath"
	"strings"
)

// Format identifies the container format of a source document.
type Format string

const (
	FormatPDF     Format = "pdf"
	FormatEPUB    Format = "epub"
	FormatTXT     Format = "txt"
	FormatUnknown Format = ""
)

// FormatFromPath infers the document format from the file extension (case-insensitive).
// Returns FormatUnknown for anything other than .pdf, .epub, and .txt.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".epub":
		return FormatEPUB
	case ".txt":
		return FormatTXT
	default:
		return FormatUnknown
	}
}

// Document is the raw input to a run. It is immutable once constructed.
type Document struct {
	Path       string `json:"path"`
	Format     Format `json:"format"`
	SourceName string `json:"source"`
	Author     string `json:"author,omitempty"`
}

// NewDocument builds a Document for path. The format is inferred from the extension and
// the source name defaults to the file name when empty.
func NewDocument(path, source, author string) Document {
	source = strings.TrimSpace(source)
	if source == "" {
		source = filepath.Base(path)
	}
	return Document{
		Path:       path,
		Format:     FormatFromPath(path),
		SourceName: source,
		Author:     strings.TrimSpace(author),
	}
}

// Block is a raw text unit produced by a loader: one PDF page, one EPUB chapter, or a whole text file.
type Block struct {
	Text   string
	Number int // 1-based page or chapter number
}

// Segment is an addressable unit of normalized text.
// Offset is the byte offset of Text within the normalized document text.
type Segment struct {
	Index  int    `json:"index"`
	Offset int    `json:"offset"`
	Block  int    `json:"block"`
	Text   string `json:"text"`
}
