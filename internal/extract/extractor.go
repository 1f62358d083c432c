// Package extract loads documents into ordered text blocks.
package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/digest/internal/models"
	"go.uber.org/zap"
)

// BlockReader yields the blocks of one document in order.
// Next returns io.EOF after the last block. Close releases the underlying file.
type BlockReader interface {
	Next() (models.Block, error)
	Close() error
}

// Extractor opens documents for block-wise reading.
type Extractor struct {
	logger *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets a logger for debug output (pages skipped, chapters read).
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open returns a BlockReader for doc. PDF pages and EPUB chapters become separate blocks;
// a plain text file is a single block. The returned reader reports a *CorruptDocumentError
// instead of io.EOF when the whole document yielded no text.
func (e *Extractor) Open(doc models.Document) (BlockReader, error) {
	if _, err := os.Stat(doc.Path); err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	var (
		r   BlockReader
		err error
	)
	switch doc.Format {
	case models.FormatPDF:
		r, err = openPDF(doc.Path, e.logger)
	case models.FormatEPUB:
		r, err = openEPUB(doc.Path, e.logger)
	case models.FormatTXT:
		r, err = openPlain(doc.Path)
	default:
		return nil, &UnsupportedFormatError{Path: doc.Path, Format: doc.Format}
	}
	if err != nil {
		return nil, err
	}
	return &textGuard{path: doc.Path, inner: r}, nil
}

// ReadAll drains r and returns every block. Used by tests and estimate reports.
func ReadAll(r BlockReader) ([]models.Block, error) {
	var blocks []models.Block
	for {
		b, err := r.Next()
		if errors.Is(err, io.EOF) {
			return blocks, nil
		}
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, b)
	}
}

// textGuard turns an all-empty document into a CorruptDocumentError at end of stream.
type textGuard struct {
	path    string
	inner   BlockReader
	hasText bool
}

func (g *textGuard) Next() (models.Block, error) {
	b, err := g.inner.Next()
	if errors.Is(err, io.EOF) {
		if !g.hasText {
			return models.Block{}, &CorruptDocumentError{Path: g.path, Reason: "no extractable text"}
		}
		return models.Block{}, io.EOF
	}
	if err != nil {
		return models.Block{}, err
	}
	if strings.TrimSpace(b.Text) != "" {
		g.hasText = true
	}
	return b, nil
}

func (g *textGuard) Close() error { return g.inner.Close() }
