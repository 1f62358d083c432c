package extract

import (
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/digest/internal/models"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// pdfReader yields one block per page. The file stays open until Close.
type pdfReader struct {
	path   string
	file   *os.File
	r      *pdf.Reader
	next   int
	pages  int
	logger *zap.Logger
}

func openPDF(path string, logger *zap.Logger) (*pdfReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	r, pages, err := newPDFReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, &CorruptDocumentError{Path: path, Reason: "open PDF", Err: err}
	}
	return &pdfReader{path: path, file: f, r: r, next: 1, pages: pages, logger: logger}, nil
}

// newPDFReader parses the cross-reference table and page tree. The PDF library panics on
// some malformed ones.
func newPDFReader(f *os.File, size int64) (r *pdf.Reader, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, pages, err = nil, 0, fmt.Errorf("%v", rec)
		}
	}()
	r, err = pdf.NewReader(f, size)
	if err != nil {
		return nil, 0, err
	}
	return r, r.NumPage(), nil
}

func (p *pdfReader) Next() (models.Block, error) {
	for p.next <= p.pages {
		num := p.next
		p.next++
		text, err := p.pageText(num)
		if err != nil {
			p.logger.Debug("pdf page skipped", zap.String("path", p.path), zap.Int("page", num), zap.Error(err))
			continue
		}
		if text == "" {
			continue
		}
		return models.Block{Text: text, Number: num}, nil
	}
	return models.Block{}, io.EOF
}

func (p *pdfReader) pageText(num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("extract page %d: %v", num, rec)
		}
	}()
	page := p.r.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page %d: %w", num, err)
	}
	return text, nil
}

func (p *pdfReader) Close() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}
